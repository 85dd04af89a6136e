package storage

import (
	"context"
	"os"
	"testing"
	"time"

	redisc "DMCore/service/storage/redis"
)

// 需要真实 Redis：DM_REDIS_ADDR=127.0.0.1:6379 go test ./service/storage/
func onlineStore(t *testing.T) *OnlineStore {
	addr := os.Getenv("DM_REDIS_ADDR")
	if addr == "" {
		t.Skip("DM_REDIS_ADDR not set, skipping redis integration test")
	}
	if err := redisc.Init(redisc.Config{Addr: addr}); err != nil {
		t.Fatalf("redis init: %v", err)
	}
	return Init(OnlineConfig{NodeID: "test-node", TTL: 30 * time.Second})
}

func TestOnlineOfflineGuard(t *testing.T) {
	m := onlineStore(t)
	ctx := context.Background()

	if err := m.Online(ctx, "u1", "s1"); err != nil {
		t.Fatalf("online s1: %v", err)
	}
	// 新会话覆盖
	if err := m.Online(ctx, "u1", "s2"); err != nil {
		t.Fatalf("online s2: %v", err)
	}

	// 旧会话的下线必须被拒绝
	removed, err := m.Offline(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("offline s1: %v", err)
	}
	if removed {
		t.Fatal("stale offline must not remove newer session")
	}

	on, err := m.IsOnline(ctx, "u1")
	if err != nil || !on {
		t.Fatalf("u1 should still be online: on=%v err=%v", on, err)
	}

	removed, err = m.Offline(ctx, "u1", "s2")
	if err != nil || !removed {
		t.Fatalf("offline s2 should remove: removed=%v err=%v", removed, err)
	}
}

func TestHeartbeatStaleSession(t *testing.T) {
	m := onlineStore(t)
	ctx := context.Background()

	if err := m.Online(ctx, "u2", "s1"); err != nil {
		t.Fatalf("online: %v", err)
	}
	if err := m.Online(ctx, "u2", "s2"); err != nil {
		t.Fatalf("online: %v", err)
	}
	ok, err := m.Heartbeat(ctx, "u2", "s1")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if ok {
		t.Fatal("stale heartbeat must be rejected")
	}
	if _, err := m.Offline(ctx, "u2", "s2"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
