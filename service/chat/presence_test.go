package chat

import (
	"testing"
)

func TestAnnounceReachesAllActive(t *testing.T) {
	bc := NewBroadcaster()
	s1 := NewSession("s1", &fakeConn{})
	c1 := s1.conn.(*fakeConn)
	s1.Activate("u1")
	s2 := NewSession("s2", &fakeConn{})
	c2 := s2.conn.(*fakeConn)
	s2.Activate("u2")

	bc.Announce([]*Session{s1, s2}, []string{"u1", "u2"})

	for i, c := range []*fakeConn{c1, c2} {
		got := c.lastPresence(t)
		if len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
			t.Fatalf("conn %d presence = %v", i, got)
		}
	}
}

func TestAnnounceSkipsNonActive(t *testing.T) {
	bc := NewBroadcaster()
	pending := NewSession("s1", &fakeConn{}) // 还在 Connecting
	closed := NewSession("s2", &fakeConn{})
	closed.Activate("u2")
	closed.Close()

	bc.Announce([]*Session{pending, closed}, []string{"u2"})

	if n := len(pending.conn.(*fakeConn).sent()); n != 0 {
		t.Fatalf("connecting session got %d frames", n)
	}
	if n := len(closed.conn.(*fakeConn).sent()); n != 0 {
		t.Fatalf("closed session got %d frames", n)
	}
}

func TestAnnounceFailureIsolated(t *testing.T) {
	bc := NewBroadcaster()
	bad := NewSession("s1", &fakeConn{failSend: true})
	bad.Activate("u1")
	good := NewSession("s2", &fakeConn{})
	gc := good.conn.(*fakeConn)
	good.Activate("u2")

	// 坏连接排前面，失败不能挡住后面的
	bc.Announce([]*Session{bad, good}, []string{"u1", "u2"})

	if got := gc.lastPresence(t); len(got) != 2 {
		t.Fatalf("healthy session presence = %v", got)
	}
}
