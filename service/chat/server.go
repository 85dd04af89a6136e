package chat

import (
	"context"
	"encoding/json"
	"time"

	"DMCore/logger"
	msgmodel "DMCore/module/message/model"
	"DMCore/service/natsx"
	online "DMCore/service/storage"
)

// IdentityValidator 身份服务协作方：token 有效 -> 身份，否则拒绝。
// 核心自己不签发也不解析凭证。
type IdentityValidator interface {
	Validate(token string) (string, error)
}

// SubjectDeliver 消息投递总线 subject（配置了 NATS 时生效）
const SubjectDeliver = "dm.deliver"

// ServerConf ===== 配置 =====
type ServerConf struct {
	AuthTimeout time.Duration // Connecting 阶段时限，超时未完成识别直接关
	ReadIdle    time.Duration // 授权后读空闲上限（心跳会续）
}

func (c *ServerConf) norm() {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.ReadIdle <= 0 {
		c.ReadIdle = 2 * time.Minute
	}
}

// Server 网关实例：注册表 + 广播器 + 路由器 + 上行分发
type Server struct {
	gwID string
	conf ServerConf

	reg      *SessionRegistry
	bc       *Broadcaster
	router   *Router
	disp     *Dispatcher
	identity IdentityValidator
}

func NewServer(gwID string, identity IdentityValidator, conf ServerConf) *Server {
	conf.norm()
	reg := NewSessionRegistry()
	return &Server{
		gwID:     gwID,
		conf:     conf,
		reg:      reg,
		bc:       NewBroadcaster(),
		router:   NewRouter(reg),
		disp:     NewDispatcher(),
		identity: identity,
	}
}

func (s *Server) GwID() string               { return s.gwID }
func (s *Server) Registry() *SessionRegistry { return s.reg }
func (s *Server) Router() *Router            { return s.router }
func (s *Server) Broadcaster() *Broadcaster  { return s.bc }
func (s *Server) Disp() *Dispatcher          { return s.disp }

// ActivateSession 识别完成：绑定身份、登记注册表、镜像到 redis、广播上线。
// 同身份的旧会话被覆盖（last-connect-wins），其延迟收尾会被实例守卫拒绝。
func (s *Server) ActivateSession(sess *Session, identity string) bool {
	if !sess.Activate(identity) {
		return false
	}
	s.reg.Register(identity, sess)
	s.mirrorOnline(identity, sess.ID)
	s.bc.Announce(s.reg.SnapshotSessions(), s.reg.SnapshotIdentities())
	return true
}

// Teardown 收尾，可重入：第二次调用全程无副作用。
// Connecting 阶段进来的（没身份）只关连接，不碰注册表也不广播。
func (s *Server) Teardown(sess *Session) {
	sess.Close()
	identity := sess.Identity()
	if identity == "" {
		return
	}
	if !s.reg.Unregister(identity, sess) {
		// 过期收尾：注册表已指向更新的会话，静默忽略
		return
	}
	s.mirrorOffline(identity, sess.ID)
	s.bc.Announce(s.reg.SnapshotSessions(), s.reg.SnapshotIdentities())
}

// Deliver 供消息模块直连调用（未配置总线时的路径）
func (s *Server) Deliver(msg *msgmodel.Message) DeliverResult {
	return s.router.Deliver(msg)
}

// AttachBus 订阅投递总线：消息 API 落库后发布，网关消费并路由。
// 同一队列组按网关分摊；投递失败不回 NACK（尽力而为）。
func (s *Server) AttachBus(client *natsx.NatsxClient) error {
	if client == nil {
		return nil
	}
	return client.QueueSubscribe(SubjectDeliver, "dm-gateway", func(data []byte) {
		msg := &msgmodel.Message{}
		if err := json.Unmarshal(data, msg); err != nil {
			logger.Warnf("[Server] bad deliver payload: %v", err)
			return
		}
		res := s.router.Deliver(msg)
		logger.Debug("[Server] bus deliver " + msg.ID + " -> " + res.String())
	})
}

// Shutdown 关停全部会话
func (s *Server) Shutdown() {
	s.reg.Close()
}

// ---- redis presence 镜像（可选外设，失败只记日志） ----

func (s *Server) mirrorOnline(identity, sessID string) {
	m := online.GetManager()
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Online(ctx, identity, sessID); err != nil {
		logger.Warnf("[Server] presence mirror online user=%s err=%v", identity, err)
	}
}

func (s *Server) mirrorOffline(identity, sessID string) {
	m := online.GetManager()
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := m.Offline(ctx, identity, sessID); err != nil {
		logger.Warnf("[Server] presence mirror offline user=%s err=%v", identity, err)
	}
}
