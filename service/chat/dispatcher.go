package chat

import (
	"DMCore/logger"
)

// ChatContext 传给处理器的上下文
type ChatContext struct {
	S *Server
}

// Handler 客户端上行帧处理器（授权后的事件走这里）
type Handler interface {
	Event() string
	Handle(ctx *ChatContext, f *Frame, sess *Session) error
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) GetHandler(event string) Handler {
	h, ok := d.handlers[event]
	if !ok {
		logger.Infof("no handler for event=%s", event)
		return nil
	}
	return h
}

func (d *Dispatcher) Dispatch(ctx *ChatContext, f *Frame, sess *Session) error {
	h := d.GetHandler(f.Event)
	if h == nil {
		return nil // 未知事件直接忽略，不断连接
	}
	return h.Handle(ctx, f, sess)
}
