package chat

import (
	"encoding/json"
	"testing"
	"time"

	msgmodel "DMCore/module/message/model"
)

func testMsg(id, from, to, text string) *msgmodel.Message {
	return &msgmodel.Message{
		ID: id, SenderID: from, RecipientID: to,
		Text: text, CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestDeliverToOnlineRecipient(t *testing.T) {
	reg := NewSessionRegistry()
	rt := NewRouter(reg)
	sess := NewSession("s1", &fakeConn{})
	fc := sess.conn.(*fakeConn)
	sess.Activate("u2")
	reg.Register("u2", sess)

	msg := testMsg("m1", "u1", "u2", "hello")
	if got := rt.Deliver(msg); got != Delivered {
		t.Fatalf("result = %v, want Delivered", got)
	}

	events := fc.eventsOf(t)
	if countEvent(events, EventNewMessage) != 1 {
		t.Fatalf("newMessage count = %d, want exactly 1", countEvent(events, EventNewMessage))
	}

	// 线上的负载必须与入参一字不差
	fr, _ := ParseFrameJSON(fc.sent()[0])
	var got msgmodel.Message
	if err := json.Unmarshal(fr.Data, &got); err != nil {
		t.Fatalf("unmarshal delivered payload: %v", err)
	}
	if got.ID != msg.ID || got.SenderID != msg.SenderID ||
		got.RecipientID != msg.RecipientID || got.Text != msg.Text ||
		!got.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("payload mutated: %+v vs %+v", got, msg)
	}
}

func TestDeliverOffline(t *testing.T) {
	rt := NewRouter(NewSessionRegistry())
	if got := rt.Deliver(testMsg("m1", "u1", "nobody", "hi")); got != NotOnline {
		t.Fatalf("result = %v, want NotOnline", got)
	}
}

func TestDeliverSendFailureClosesSession(t *testing.T) {
	reg := NewSessionRegistry()
	rt := NewRouter(reg)
	sess := NewSession("s1", &fakeConn{failSend: true})
	fc := sess.conn.(*fakeConn)
	sess.Activate("u2")
	reg.Register("u2", sess)

	if got := rt.Deliver(testMsg("m1", "u1", "u2", "hi")); got != NotOnline {
		t.Fatalf("result = %v, want NotOnline", got)
	}
	if sess.State() != StateClosed {
		t.Fatal("broken session left open")
	}
	if fc.closeCount() != 1 {
		t.Fatalf("close count = %d", fc.closeCount())
	}

	// 不重试：再投一次仍然 NotOnline（会话已 Closed）
	if got := rt.Deliver(testMsg("m2", "u1", "u2", "hi")); got != NotOnline {
		t.Fatalf("retry result = %v, want NotOnline", got)
	}
}

func TestDeliverNilAndEmpty(t *testing.T) {
	rt := NewRouter(NewSessionRegistry())
	if rt.Deliver(nil) != NotOnline {
		t.Fatal("nil message should be NotOnline")
	}
	if rt.Deliver(&msgmodel.Message{ID: "m1"}) != NotOnline {
		t.Fatal("empty recipient should be NotOnline")
	}
}
