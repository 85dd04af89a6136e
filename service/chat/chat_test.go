package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	errs "DMCore/tools/errs"
)

// fakeConn 内存传输桩：记录写出的帧，可按需模拟写失败
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	failSend bool
	closes   int
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return &fakeNetErr{}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeConn) setFail(v bool) {
	f.mu.Lock()
	f.failSend = v
	f.mu.Unlock()
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// sent 返回已写出帧的拷贝
func (f *fakeConn) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

// eventsOf 把写出的帧解成事件名序列
func (f *fakeConn) eventsOf(t *testing.T) []string {
	t.Helper()
	var events []string
	for _, raw := range f.sent() {
		fr, err := ParseFrameJSON(raw)
		if err != nil {
			t.Fatalf("bad frame on wire: %v", err)
		}
		events = append(events, fr.Event)
	}
	return events
}

func countEvent(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

// lastPresence 取最后一条 getOnlineUsers 的名单
func (f *fakeConn) lastPresence(t *testing.T) []string {
	t.Helper()
	var out []string
	found := false
	for _, raw := range f.sent() {
		fr, err := ParseFrameJSON(raw)
		if err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if fr.Event != EventOnlineUsers {
			continue
		}
		out = out[:0]
		if err := json.Unmarshal(fr.Data, &out); err != nil {
			t.Fatalf("bad presence payload: %v", err)
		}
		found = true
	}
	if !found {
		t.Fatal("no presence frame seen")
	}
	return out
}

type fakeNetErr struct{}

func (*fakeNetErr) Error() string { return "broken pipe" }

// okValidator token "tok-<user>" -> 身份 <user>
type okValidator struct{}

func (okValidator) Validate(token string) (string, error) {
	const p = "tok-"
	if len(token) > len(p) && token[:len(p)] == p {
		return token[len(p):], nil
	}
	return "", errs.ErrIdentityDenied.WrapMsg("bad token")
}

func newTestServer() *Server {
	return NewServer("gw-test", okValidator{}, ServerConf{})
}

func activeSession(t *testing.T, srv *Server, user string) (*Session, *fakeConn) {
	t.Helper()
	fc := &fakeConn{}
	sess := NewSession("sess-"+user+"-"+time.Now().Format("150405.000000000"), fc)
	if !srv.ActivateSession(sess, user) {
		t.Fatalf("activate %s failed", user)
	}
	return sess, fc
}
