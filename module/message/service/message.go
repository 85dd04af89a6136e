package service

import (
	"context"
	"encoding/json"
	"time"

	"DMCore/logger"
	msgmodel "DMCore/module/message/model"
	"DMCore/service/chat"
	"DMCore/service/kafka"
	"DMCore/service/natsx"
	errs "DMCore/tools/errs"
	"DMCore/tools/ids"
	"DMCore/tools/safe"
)

// DeliveryStatus 创建接口回给发送方的投递情况（仅供展示，
// 发送方客户端本地补显不依赖它）
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered" // 直连路径：已推到对方会话
	StatusOffline   DeliveryStatus = "offline"   // 直连路径：对方不在线
	StatusQueued    DeliveryStatus = "queued"    // 总线路径：已发布，结果不回查
)

// SendParams 创建消息入参
type SendParams struct {
	RecipientID   string `json:"recipient_id" binding:"required"`
	Text          string `json:"text"`
	AttachmentRef string `json:"attachment_ref"`
}

// Service 消息业务：先落库，再走一跳尽力投递。
// 配了 NATS 就发总线由网关消费，否则直接调路由器。
type Service struct {
	store   Store
	gateway *chat.Server
}

func NewService(store Store, gateway *chat.Server) *Service {
	return &Service{store: store, gateway: gateway}
}

func (s *Service) Send(ctx context.Context, senderID string, in SendParams) (*msgmodel.Message, DeliveryStatus, error) {
	if senderID == "" || in.RecipientID == "" {
		return nil, "", errs.ErrArgs.WrapMsg("sender/recipient empty")
	}
	if in.Text == "" && in.AttachmentRef == "" {
		return nil, "", errs.ErrArgs.WrapMsg("empty message body")
	}

	msg := &msgmodel.Message{
		ID:            ids.GenerateString(),
		SenderID:      senderID,
		RecipientID:   in.RecipientID,
		Text:          in.Text,
		AttachmentRef: in.AttachmentRef,
		CreatedAt:     time.Now(),
	}

	// 持久化在先，投递只是加速在线方的收取
	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, "", err
	}

	// 事件流：下游各取所需，失败不影响主链路
	if kafka.Ready() {
		safe.SafeGo(func() {
			if err := kafka.SendJSON(kafka.TopicMessagesCreated, msg.RecipientID, msg); err != nil {
				logger.Warnf("[MessageService] created event msg=%s err=%v", msg.ID, err)
			}
		})
	}

	status := s.dispatch(msg)
	return msg, status, nil
}

func (s *Service) dispatch(msg *msgmodel.Message) DeliveryStatus {
	// kafka 投递信道开着时，上面发出的创建事件就是投递本身
	if kafka.FeedActive() {
		return StatusQueued
	}
	if bus := natsx.Global(); bus != nil {
		data, err := json.Marshal(msg)
		if err == nil {
			if err := bus.Publish(chat.SubjectDeliver, data); err == nil {
				return StatusQueued
			}
			logger.Warnf("[MessageService] bus publish msg=%s failed, fallback direct", msg.ID)
		}
	}
	if s.gateway == nil {
		return StatusOffline
	}
	if s.gateway.Deliver(msg) == chat.Delivered {
		return StatusDelivered
	}
	return StatusOffline
}

// History 拉取与 partner 的会话历史
func (s *Service) History(ctx context.Context, userID, partner string, limit int64) ([]*msgmodel.Message, error) {
	if userID == "" || partner == "" {
		return nil, errs.ErrArgs.WrapMsg("userID/partner empty")
	}
	return s.store.History(ctx, userID, partner, limit)
}
