package model

import "time"

// Message 单聊消息记录。核心只转发引用，不修改不补写。
type Message struct {
	ID            string    `bson:"_id" json:"id"`
	SenderID      string    `bson:"sender_id" json:"sender_id"`
	RecipientID   string    `bson:"recipient_id" json:"recipient_id"`
	Text          string    `bson:"text,omitempty" json:"text,omitempty"`
	AttachmentRef string    `bson:"attachment_ref,omitempty" json:"attachment_ref,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
