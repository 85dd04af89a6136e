package chat

import (
	"testing"
)

func TestSessionStateMachine(t *testing.T) {
	fc := &fakeConn{}
	s := NewSession("s1", fc)

	if got := s.State(); got != StateConnecting {
		t.Fatalf("new session state = %v, want Connecting", got)
	}
	if s.Identity() != "" {
		t.Fatalf("identity before activate = %q, want empty", s.Identity())
	}

	if !s.Activate("u1") {
		t.Fatal("first activate refused")
	}
	if got := s.State(); got != StateActive {
		t.Fatalf("state after activate = %v, want Active", got)
	}
	if s.Identity() != "u1" {
		t.Fatalf("identity = %q, want u1", s.Identity())
	}

	// 状态机只许走一次
	if s.Activate("u2") {
		t.Fatal("second activate accepted")
	}
	if s.Identity() != "u1" {
		t.Fatalf("identity changed to %q", s.Identity())
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	fc := &fakeConn{}
	s := NewSession("s1", fc)
	s.Activate("u1")

	s.Close()
	s.Close()
	s.Close()
	if n := fc.closeCount(); n != 1 {
		t.Fatalf("underlying close called %d times, want 1", n)
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", s.State())
	}

	// 关闭后不能再激活
	if s.Activate("u1") {
		t.Fatal("activate after close accepted")
	}
}

func TestSessionSendAfterClose(t *testing.T) {
	fc := &fakeConn{}
	s := NewSession("s1", fc)
	s.Activate("u1")
	s.Close()

	if err := s.Send([]byte(`{"event":"pong"}`)); err == nil {
		t.Fatal("send on closed session did not error")
	}
	if len(fc.sent()) != 0 {
		t.Fatalf("closed session still wrote %d frames", len(fc.sent()))
	}
}
