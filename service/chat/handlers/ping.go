package handlers

import (
	"context"
	"time"

	"DMCore/logger"
	"DMCore/service/chat"
	online "DMCore/service/storage"
)

// PingHandler 应用层心跳：回 pong，顺手给 presence 镜像续期
type PingHandler struct{}

func NewPingHandler() chat.Handler { return &PingHandler{} }

func (h *PingHandler) Event() string { return chat.EventPing }

func (h *PingHandler) Handle(_ *chat.ChatContext, _ *chat.Frame, sess *chat.Session) error {
	pong, err := chat.BuildPong()
	if err != nil {
		return err
	}
	if err := sess.Send(pong); err != nil {
		return err
	}

	if m := online.GetManager(); m != nil && sess.Identity() != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := m.Heartbeat(ctx, sess.Identity(), sess.ID); err != nil {
			logger.Warnf("[PingHandler] heartbeat user=%s err=%v", sess.Identity(), err)
		} else if !ok {
			// 镜像里已是更新的会话，无需处理（守卫生效）
			logger.Debug("[PingHandler] stale heartbeat " + sess.ID)
		}
	}
	return nil
}
