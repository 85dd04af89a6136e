package model

import "time"

// User 用户主档（本核心只关心稳定ID，资料字段尽量少）
type User struct {
	UserID    string    `bson:"_id" json:"user_id"`
	Name      string    `bson:"name" json:"name"`
	AvatarURL string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
