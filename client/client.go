// Package client 是客户端侧的会话协调层：每个身份只维护一条
// 逻辑连接，断线按固定间隔、限次重试，重连或切换会话对象后
// 重新建立消息订阅。
package client

import (
	"encoding/json"
	"sync"
	"time"

	"DMCore/logger"
	msgmodel "DMCore/module/message/model"
	"DMCore/service/chat"
	errs "DMCore/tools/errs"

	"github.com/gorilla/websocket"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// MessageHandler 收到当前会话对象的消息时回调
type MessageHandler func(msg *msgmodel.Message)

// PresenceHandler 在线名单变化时回调
type PresenceHandler func(identities []string)

type Config struct {
	URL    string // ws://host/ws
	UserID string
	Token  string

	RetryDelay  time.Duration // 固定重连间隔（不指数增长），默认 2s
	MaxRetries  int           // 单次连接流程的尝试上限，默认 5
	DialTimeout time.Duration // 默认 5s
	AuthTimeout time.Duration // 等 authAck 上限，默认 5s
}

func (c *Config) norm() {
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 5 * time.Second
	}
}

// subscription 一条逻辑订阅；换对象/重连时旧的先取消，
// 避免同一通道上重复回调
type subscription struct {
	partner   string
	fn        MessageHandler
	cancelled bool
}

type Client struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	state  connState
	closed bool

	sub        *subscription
	onPresence PresenceHandler
}

func New(cfg Config) *Client {
	cfg.norm()
	return &Client{cfg: cfg}
}

// OnPresence 注册在线名单回调
func (c *Client) OnPresence(fn PresenceHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPresence = fn
}

// Connect 发起连接。已连接/连接中是 no-op；没有身份令牌直接报错。
// 实际拨号在后台进行，按固定间隔重试，次数用尽后放弃。
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errs.New("client closed")
	}
	if c.cfg.Token == "" {
		return errs.ErrTokenMissing.WrapMsg("connect without identity")
	}
	if c.state != stateDisconnected {
		return nil
	}
	c.state = stateConnecting
	go c.connectLoop()
	return nil
}

// Subscribe 订阅与 partner 的新消息。旧订阅先取消。
// 没有活连接时触发一次连接，订阅挂起等连上自动生效；
// 若短延迟后仍没连上且已知身份，再补一次连接尝试。
func (c *Client) Subscribe(partner string, fn MessageHandler) error {
	if partner == "" || fn == nil {
		return errs.ErrArgs.WrapMsg("partner/fn empty")
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errs.New("client closed")
	}
	if c.sub != nil {
		c.sub.cancelled = true
	}
	c.sub = &subscription{partner: partner, fn: fn}
	needConnect := c.state == stateDisconnected
	hasIdentity := c.cfg.Token != ""
	c.mu.Unlock()

	if needConnect {
		if err := c.Connect(); err != nil {
			return err
		}
		if hasIdentity {
			time.AfterFunc(500*time.Millisecond, func() {
				c.mu.Lock()
				retry := !c.closed && c.state == stateDisconnected
				c.mu.Unlock()
				if retry {
					_ = c.Connect()
				}
			})
		}
	}
	return nil
}

// Unsubscribe 取消当前订阅（视图切走时）
func (c *Client) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.cancelled = true
		c.sub = nil
	}
}

// Close 终止客户端；后续 Connect/Subscribe 都报错
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = stateDisconnected
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// ---- 内部 ----

func (c *Client) connectLoop() {
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dialAndAuth()
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				_ = conn.Close()
				return
			}
			c.conn = conn
			c.state = stateConnected
			c.mu.Unlock()
			logger.Infof("[client] connected user=%s attempt=%d", c.cfg.UserID, attempt)
			go c.readLoop(conn)
			go c.pingLoop(conn)
			return
		}

		logger.Infof("[client] connect failed user=%s attempt=%d/%d err=%v",
			c.cfg.UserID, attempt, c.cfg.MaxRetries, err)
		if attempt < c.cfg.MaxRetries {
			time.Sleep(c.cfg.RetryDelay) // 固定间隔，不指数
		}
	}
	c.mu.Lock()
	c.state = stateDisconnected
	c.mu.Unlock()
	logger.Warnf("[client] gave up after %d attempts user=%s", c.cfg.MaxRetries, c.cfg.UserID)
}

func (c *Client) dialAndAuth() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	authData, _ := json.Marshal(map[string]any{
		"user_id": c.cfg.UserID,
		"token":   c.cfg.Token,
		"ts":      time.Now().UnixMilli(),
	})
	frame, _ := json.Marshal(&chat.Frame{Event: chat.EventAuth, Data: authData})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		_ = conn.Close()
		return nil, err
	}

	// 等 authAck
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.AuthTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		f, err := chat.ParseFrameJSON(data)
		if err != nil {
			continue
		}
		if f.Event != chat.EventAuthAck {
			continue
		}
		var ack chat.AuthAckPayload
		if err := json.Unmarshal(f.Data, &ack); err != nil || !ack.OK {
			_ = conn.Close()
			return nil, errs.ErrIdentityDenied.WrapMsg("auth rejected", "reason", ack.Reason)
		}
		_ = conn.SetReadDeadline(time.Time{})
		return conn, nil
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		f, perr := chat.ParseFrameJSON(data)
		if perr != nil {
			continue
		}
		switch f.Event {
		case chat.EventNewMessage:
			msg := &msgmodel.Message{}
			if err := json.Unmarshal(f.Data, msg); err != nil {
				continue
			}
			c.dispatchMessage(msg)
		case chat.EventOnlineUsers:
			var identities []string
			if err := json.Unmarshal(f.Data, &identities); err != nil {
				continue
			}
			c.mu.Lock()
			fn := c.onPresence
			c.mu.Unlock()
			if fn != nil {
				fn(identities)
			}
		}
	}
}

// pingLoop 应用层心跳，防止被网关按读空闲踢掉。
// 连接被替换或写失败就退出（掉线恢复由 readLoop 驱动）。
func (c *Client) pingLoop(conn *websocket.Conn) {
	frame, err := json.Marshal(&chat.Frame{Event: chat.EventPing})
	if err != nil {
		return
	}
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for range t.C {
		c.mu.Lock()
		cur := c.conn
		c.mu.Unlock()
		if cur != conn {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// dispatchMessage 客户端侧过滤：只把当前会话对象发来的消息交给视图，
// 其他会话的消息由角标等旁路消化（不归本层管）
func (c *Client) dispatchMessage(msg *msgmodel.Message) {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub == nil || sub.cancelled {
		return
	}
	if msg.SenderID != sub.partner {
		return
	}
	sub.fn(msg)
}

// handleDrop 服务端掉线：同一套固定间隔重试再拉起来，
// 连上后订阅仍在（sub 挂在 Client 上），天然完成重订阅
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	_ = conn.Close()
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.closed {
		c.state = stateDisconnected
		c.mu.Unlock()
		return
	}
	c.state = stateConnecting
	c.mu.Unlock()

	logger.Infof("[client] link dropped user=%s err=%v, reconnecting", c.cfg.UserID, err)
	go c.connectLoop()
}
