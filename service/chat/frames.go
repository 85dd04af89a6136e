package chat

import (
	"encoding/json"
	"time"

	msgmodel "DMCore/module/message/model"
	decode "DMCore/tools/decode"
	errs "DMCore/tools/errs"
)

// 线上事件名是互操作契约，改了就和既有客户端断交
const (
	EventAuth        = "auth"
	EventAuthAck     = "authAck"
	EventPing        = "ping"
	EventPong        = "pong"
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// Frame WebSocket 文本帧的统一信封
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errs.New("frame missing event")
	}
	return f, nil
}

// AuthPayload 握手帧负载。user_id 是客户端自报的，
// 只做交叉校验，身份以 token 验证结果为准。
type AuthPayload struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
	TS     int64  `json:"ts,omitempty"`
}

func ExtractAuthPayload(f *Frame) (*AuthPayload, error) {
	if f == nil || len(f.Data) == 0 {
		return nil, errs.New("auth frame has no data")
	}
	var m map[string]any
	if err := json.Unmarshal(f.Data, &m); err != nil {
		return nil, errs.WrapMsg(err, "auth payload")
	}
	return decode.DecodeMap[AuthPayload](m)
}

// ---- 服务端下行帧构造 ----

func BuildPresenceFrame(identities []string) ([]byte, error) {
	data, err := json.Marshal(identities)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: EventOnlineUsers, Data: data})
}

func BuildMessageFrame(msg *msgmodel.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: EventNewMessage, Data: data})
}

type AuthAckPayload struct {
	OK         bool   `json:"ok"`
	UserID     string `json:"user_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ServerTime int64  `json:"server_time"`
}

func BuildAuthAck(ok bool, userID, sessionID, reason string) ([]byte, error) {
	data, err := json.Marshal(&AuthAckPayload{
		OK:         ok,
		UserID:     userID,
		SessionID:  sessionID,
		Reason:     reason,
		ServerTime: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: EventAuthAck, Data: data})
}

func BuildPong() ([]byte, error) {
	return json.Marshal(&Frame{Event: EventPong})
}
