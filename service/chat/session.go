package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"DMCore/logger"
	errs "DMCore/tools/errs"

	"github.com/gorilla/websocket"
)

// SessionState 连接状态机：Connecting -> Active -> Closed
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	}
	return "Unknown"
}

// WireConn 传输句柄：核心只需要“发字节 + 关闭”。
// *websocket.Conn 天然满足；单测用假实现。
type WireConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// 写超时：挂死的对端最多拖住一次发送这么久
const writeWait = 5 * time.Second

// Session 一条活跃传输连接。identity 在 Activate 时设置一次，之后不变。
// gorilla 不允许并发写，所有下行统一走 Send（互斥 + 写超时）。
type Session struct {
	ID string // 会话ID（雪花）

	identity atomic.Value // string；激活前为空
	state    atomic.Int32

	wmu  sync.Mutex
	conn WireConn

	closeOnce sync.Once
	CreatedAt time.Time
}

func NewSession(id string, conn WireConn) *Session {
	s := &Session{
		ID:        id,
		conn:      conn,
		CreatedAt: time.Now(),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// Activate Connecting -> Active，绑定身份（仅一次）
func (s *Session) Activate(identity string) bool {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		return false
	}
	s.identity.Store(identity)
	return true
}

func (s *Session) Identity() string {
	if v, ok := s.identity.Load().(string); ok {
		return v
	}
	return ""
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) IsOpen() bool {
	return s.State() != StateClosed
}

// Send 同步发送，带写超时；失败由调用方决定收尾
func (s *Session) Send(data []byte) error {
	if s.State() == StateClosed {
		return errs.ErrSessionClosed.WrapMsg("send on closed session", "id", s.ID)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close 幂等：置 Closed、关底层连接。
// 注册表清理由生命周期管理做，这里只管自己的资源。
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		if err := s.conn.Close(); err != nil {
			logger.Debug("session close: " + err.Error())
		}
	})
}
