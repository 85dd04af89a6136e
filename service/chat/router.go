package chat

import (
	"DMCore/logger"
	msgmodel "DMCore/module/message/model"
)

// DeliverResult 单次投递的结果
type DeliverResult int

const (
	Delivered DeliverResult = iota
	NotOnline
)

func (r DeliverResult) String() string {
	if r == Delivered {
		return "Delivered"
	}
	return "NotOnline"
}

// Router 把已落库的消息投递到接收方的活跃会话。
// 一跳、至多一次、尽力而为：失败不重试不排队，持久化在上游已完成，
// 离线方靠历史拉取兜底。
type Router struct {
	reg *SessionRegistry
}

func NewRouter(reg *SessionRegistry) *Router {
	return &Router{reg: reg}
}

// Deliver 投递时现查注册表（presence 只是参考，不做投递前置判断）。
// 传输层发送失败等同 NotOnline：记日志、关会话，不重发。
// 发送方自己的客户端在落库成功后本地补显，这里不回显。
func (rt *Router) Deliver(msg *msgmodel.Message) DeliverResult {
	if msg == nil || msg.RecipientID == "" {
		return NotOnline
	}
	sess, ok := rt.reg.Lookup(msg.RecipientID)
	if !ok || !sess.IsOpen() {
		return NotOnline
	}

	frame, err := BuildMessageFrame(msg)
	if err != nil {
		logger.Errorf("[Router] build message frame id=%s err=%v", msg.ID, err)
		return NotOnline
	}
	if err := sess.Send(frame); err != nil {
		logger.Infof("[Router] deliver failed msg=%s to=%s sess=%s err=%v",
			msg.ID, msg.RecipientID, sess.ID, err)
		// 写失败说明连接已坏，关掉让读循环走正常收尾
		sess.Close()
		return NotOnline
	}
	return Delivered
}
