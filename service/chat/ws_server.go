package chat

import (
	"net"
	"net/http"
	"time"

	"DMCore/logger"
	"DMCore/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS ===== WebSocket 接入 =====
// 每条连接一个协程：识别（限时）-> 激活 -> 读循环 -> 收尾。
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	sess := NewSession(ids.GenerateString(), ws)
	defer s.Teardown(sess) // 幂等，读循环退出后唯一的收尾入口

	// ---- Connecting：限时等首帧 auth ----
	identity, ok := s.identify(ws, sess)
	if !ok {
		// 识别失败：直接 Closed，不碰注册表
		return
	}

	if !s.ActivateSession(sess, identity) {
		logger.Warnf("[HandleWS] activate failed sess=%s user=%s", sess.ID, identity)
		return
	}
	if ack, err := BuildAuthAck(true, identity, sess.ID, ""); err == nil {
		_ = sess.Send(ack)
	}
	logger.Infof("[HandleWS] session active sess=%s user=%s", sess.ID, identity)

	// ---- Active：读循环，只读不写（下行统一走 Session.Send） ----
	for {
		_ = ws.SetReadDeadline(time.Now().Add(s.conf.ReadIdle))
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[HandleWS] peer closed sess=%s err=%v", sess.ID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[HandleWS] read timeout sess=%s err=%v", sess.ID, rerr)
			} else {
				logger.Infof("[HandleWS] read err sess=%s err=%v", sess.ID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[HandleWS] parse frame err sess=%s err=%v sample=%q", sess.ID, perr, sample)
			continue
		}

		if err := s.disp.Dispatch(&ChatContext{S: s}, f, sess); err != nil {
			logger.Infof("[HandleWS] handler err sess=%s event=%s err=%v", sess.ID, f.Event, err)
		}
	}
}

// identify Connecting 阶段：读首帧，必须是 auth，token 过身份服务校验。
// 客户端自报的 user_id 只做交叉比对，不作数。
func (s *Server) identify(ws *websocket.Conn, sess *Session) (string, bool) {
	_ = ws.SetReadDeadline(time.Now().Add(s.conf.AuthTimeout))

	_, data, err := ws.ReadMessage()
	if err != nil {
		logger.Infof("[HandleWS] identify read err sess=%s err=%v", sess.ID, err)
		return "", false
	}
	f, err := ParseFrameJSON(data)
	if err != nil || f.Event != EventAuth {
		s.rejectAuth(sess, "auth frame expected")
		return "", false
	}
	ap, err := ExtractAuthPayload(f)
	if err != nil {
		s.rejectAuth(sess, "bad auth payload")
		return "", false
	}

	identity, err := s.identity.Validate(ap.Token)
	if err != nil {
		logger.Infof("[HandleWS] identity rejected sess=%s err=%v", sess.ID, err)
		s.rejectAuth(sess, "identity rejected")
		return "", false
	}
	if ap.UserID != "" && ap.UserID != identity {
		logger.Warnf("[HandleWS] claimed user mismatch sess=%s claimed=%s actual=%s",
			sess.ID, ap.UserID, identity)
		s.rejectAuth(sess, "identity mismatch")
		return "", false
	}
	return identity, true
}

func (s *Server) rejectAuth(sess *Session, reason string) {
	if ack, err := BuildAuthAck(false, "", "", reason); err == nil {
		_ = sess.Send(ack)
	}
}
