package chat

import (
	"DMCore/logger"
)

// Broadcaster 在线名单广播。每次注册/注销都全量推一次，
// 不做合并和去抖（小规模集群，简单优先）。
type Broadcaster struct{}

func NewBroadcaster() *Broadcaster { return &Broadcaster{} }

// Announce 把 identities 作为 getOnlineUsers 事件推给所有活跃会话
// （包括触发者自己）。逐会话 fire-and-forget：单个发送失败只记日志，
// 绝不影响其余会话。
func (b *Broadcaster) Announce(sessions []*Session, identities []string) {
	if len(sessions) == 0 {
		return
	}
	frame, err := BuildPresenceFrame(identities)
	if err != nil {
		logger.Errorf("[Broadcaster] build presence frame: %v", err)
		return
	}
	for _, s := range sessions {
		if s.State() != StateActive {
			continue
		}
		if err := s.Send(frame); err != nil {
			// 慢/死对端不能拖住其他人
			logger.Infof("[Broadcaster] send failed id=%s user=%s err=%v", s.ID, s.Identity(), err)
		}
	}
}
