package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	msgmodel "DMCore/module/message/model"
	"DMCore/service/chat"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// fakeGateway 够测试用的最小服务端：校验 auth 帧后回 authAck，
// 把升级成功的连接丢进 channel 让用例自己驱动下行帧
type fakeGateway struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	dials atomic.Int32
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{conns: make(chan *websocket.Conn, 8)}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.dials.Add(1)
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, raw, err := ws.ReadMessage()
		if err != nil {
			_ = ws.Close()
			return
		}
		f, err := chat.ParseFrameJSON(raw)
		if err != nil || f.Event != chat.EventAuth {
			_ = ws.Close()
			return
		}
		var auth chat.AuthPayload
		_ = json.Unmarshal(f.Data, &auth)
		ack, _ := chat.BuildAuthAck(auth.Token != "", auth.UserID, "sess-test", "")
		if err := ws.WriteMessage(websocket.TextMessage, ack); err != nil {
			_ = ws.Close()
			return
		}
		g.conns <- ws
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-g.conns:
		return ws
	case <-time.After(3 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func (g *fakeGateway) push(t *testing.T, ws *websocket.Conn, msg *msgmodel.Message) {
	t.Helper()
	frame, err := chat.BuildMessageFrame(msg)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))
}

func newTestClient(g *fakeGateway, user string) *Client {
	return New(Config{
		URL:        g.wsURL(),
		UserID:     user,
		Token:      "tok-" + user,
		RetryDelay: 50 * time.Millisecond,
		MaxRetries: 3,
	})
}

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		ok := c.state == stateConnected
		c.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("client never connected")
}

func TestConnectRequiresIdentity(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws"})
	require.Error(t, c.Connect())
}

func TestConnectIsIdempotent(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestClient(g, "u1")
	defer c.Close()

	require.NoError(t, c.Connect())
	waitConnected(t, c)
	g.accept(t)

	// 已连上再 Connect 是 no-op，不会再拨号
	require.NoError(t, c.Connect())
	require.NoError(t, c.Connect())
	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, g.dials.Load())
}

func TestSubscribeFiltersByPartner(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestClient(g, "u1")
	defer c.Close()

	got := make(chan *msgmodel.Message, 8)
	require.NoError(t, c.Subscribe("u2", func(m *msgmodel.Message) { got <- m }))
	waitConnected(t, c)
	ws := g.accept(t)

	g.push(t, ws, &msgmodel.Message{ID: "m1", SenderID: "u3", RecipientID: "u1", Text: "noise"})
	g.push(t, ws, &msgmodel.Message{ID: "m2", SenderID: "u2", RecipientID: "u1", Text: "hello"})

	select {
	case m := <-got:
		require.Equal(t, "m2", m.ID)
		require.Equal(t, "u2", m.SenderID)
	case <-time.After(2 * time.Second):
		t.Fatal("partner message not delivered")
	}
	select {
	case m := <-got:
		t.Fatalf("unexpected message from %s", m.SenderID)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestResubscribeCancelsPrevious(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestClient(g, "u1")
	defer c.Close()

	oldGot := make(chan *msgmodel.Message, 8)
	require.NoError(t, c.Subscribe("u2", func(m *msgmodel.Message) { oldGot <- m }))
	waitConnected(t, c)
	ws := g.accept(t)

	newGot := make(chan *msgmodel.Message, 8)
	require.NoError(t, c.Subscribe("u3", func(m *msgmodel.Message) { newGot <- m }))

	g.push(t, ws, &msgmodel.Message{ID: "m1", SenderID: "u2", RecipientID: "u1"})
	g.push(t, ws, &msgmodel.Message{ID: "m2", SenderID: "u3", RecipientID: "u1"})

	select {
	case m := <-newGot:
		require.Equal(t, "m2", m.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("new subscription got nothing")
	}
	select {
	case <-oldGot:
		t.Fatal("cancelled subscription still firing")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestClient(g, "u1")
	defer c.Close()

	got := make(chan *msgmodel.Message, 8)
	require.NoError(t, c.Subscribe("u2", func(m *msgmodel.Message) { got <- m }))
	waitConnected(t, c)
	ws := g.accept(t)

	// 服务端踢掉连接，客户端应按固定间隔自动重连
	_ = ws.Close()
	ws2 := g.accept(t)
	waitConnected(t, c)
	require.GreaterOrEqual(t, g.dials.Load(), int32(2))

	// 重连后订阅仍然生效
	g.push(t, ws2, &msgmodel.Message{ID: "m9", SenderID: "u2", RecipientID: "u1", Text: "wb"})
	select {
	case m := <-got:
		require.Equal(t, "m9", m.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription lost after reconnect")
	}
}

func TestRetriesAreBounded(t *testing.T) {
	c := New(Config{
		URL:        "ws://127.0.0.1:1/ws", // 无人监听
		UserID:     "u1",
		Token:      "tok",
		RetryDelay: 20 * time.Millisecond,
		MaxRetries: 3,
	})
	defer c.Close()

	start := time.Now()
	require.NoError(t, c.Connect())

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		done := c.state == stateDisconnected
		c.mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.mu.Lock()
	require.Equal(t, stateDisconnected, c.state)
	c.mu.Unlock()
	// 3 次尝试夹 2 个固定间隔，但不会无限重试
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestPresenceCallback(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestClient(g, "u1")
	defer c.Close()

	got := make(chan []string, 4)
	c.OnPresence(func(ids []string) { got <- ids })
	require.NoError(t, c.Connect())
	waitConnected(t, c)
	ws := g.accept(t)

	frame, err := chat.BuildPresenceFrame([]string{"u1", "u2"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))

	select {
	case ids := <-got:
		require.Equal(t, []string{"u1", "u2"}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("presence callback not invoked")
	}
}
