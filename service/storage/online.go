package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	redisc "DMCore/service/storage/redis"
	errs "DMCore/tools/errs"

	"github.com/redis/go-redis/v9"
)

// OnlineConfig ===== 配置 =====
type OnlineConfig struct {
	NodeID    string        // 节点ID（参与key命名）
	TTL       time.Duration // 在线会话TTL
	SweepIdle time.Duration // 索引兜底TTL
}

func (c *OnlineConfig) norm() {
	if c.NodeID == "" {
		c.NodeID = "dm-gw-1"
	}
	if c.TTL <= 0 {
		c.TTL = 300 * time.Second
	}
	if c.SweepIdle <= 0 {
		c.SweepIdle = time.Hour
	}
}

// ===== Lua 脚本 =====
//
// 镜像遵循注册表语义：上线总是覆盖（last-connect-wins），
// 下线/续期必须带会话ID比对，避免旧连接的收尾挤掉新连接。

// 上线：覆盖写会话键 + 写用户索引
// KEYS[1] = session key   ARGV[1] = sessionID  ARGV[2] = ttlSec
// KEYS[2] = index zset    ARGV[3] = userID     ARGV[4] = expAtUnix  ARGV[5] = idxTtlSec
const luaOnline = `
redis.call("SET", KEYS[1], ARGV[1], "EX", tonumber(ARGV[2]))
redis.call("ZADD", KEYS[2], tonumber(ARGV[4]), ARGV[3])
redis.call("EXPIRE", KEYS[2], tonumber(ARGV[5]))
return 1
`

// 下线（带会话比对）：只有当前登记的会话才允许删除
// KEYS[1] = session key  KEYS[2] = index zset
// ARGV[1] = sessionID    ARGV[2] = userID
// 返回：1 删除；0 会话不匹配或已不存在（幂等）
const luaOfflineGuarded = `
local cur = redis.call("GET", KEYS[1])
if not cur or cur ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[2])
return 1
`

// 心跳续期（带会话比对）
// KEYS[1] = session key  KEYS[2] = index zset
// ARGV[1] = sessionID  ARGV[2] = ttlSec  ARGV[3] = userID  ARGV[4] = expAtUnix
// 返回：1 续期；0 会话不匹配（连接已被新会话顶掉）
const luaHeartbeat = `
local cur = redis.call("GET", KEYS[1])
if not cur or cur ~= ARGV[1] then
  return 0
end
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
redis.call("ZADD", KEYS[2], tonumber(ARGV[4]), ARGV[3])
return 1
`

// 清理过期并返回仍在线的用户集合
// KEYS[1] = index zset  ARGV[1] = nowUnix
const luaActiveAndSweep = `
local idx = KEYS[1]
local now = tonumber(ARGV[1])
redis.call("ZREMRANGEBYSCORE", idx, "-inf", now)
return redis.call("ZRANGEBYSCORE", idx, now + 1, "+inf")
`

// OnlineStore ===== Store =====
// Redis 里的在线状态只是注册表的镜像（重启恢复/旁路查询用），
// 投递路径永远以进程内注册表为准。
type OnlineStore struct {
	conf OnlineConfig

	luaOnline    *redis.Script
	luaOffline   *redis.Script
	luaHeartbeat *redis.Script
	luaActive    *redis.Script
}

var (
	mgrOnce sync.Once
	mgr     *OnlineStore
)

// Init 初始化全局 OnlineStore
func Init(conf OnlineConfig) *OnlineStore {
	mgrOnce.Do(func() {
		conf.norm()
		mgr = &OnlineStore{
			conf:         conf,
			luaOnline:    redis.NewScript(luaOnline),
			luaOffline:   redis.NewScript(luaOfflineGuarded),
			luaHeartbeat: redis.NewScript(luaHeartbeat),
			luaActive:    redis.NewScript(luaActiveAndSweep),
		}
	})
	return mgr
}

// GetManager 获取全局实例；未初始化返回 nil（presence 镜像可选）
func GetManager() *OnlineStore { return mgr }

// ===== Key 构造 =====

func (m *OnlineStore) sessionKey(userID string) string {
	return fmt.Sprintf("dm:online:%s:u:%s", m.conf.NodeID, userID)
}

func (m *OnlineStore) indexKey() string {
	return fmt.Sprintf("dm:onlineidx:%s", m.conf.NodeID)
}

// ===== API =====

// Online 登记在线：总是覆盖（镜像 last-connect-wins）
func (m *OnlineStore) Online(ctx context.Context, userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return errs.ErrArgs.WrapMsg("userID/sessionID empty")
	}
	expAt := time.Now().Add(m.conf.TTL).Unix()
	return m.luaOnline.Run(ctx, redisc.GetRedis(),
		[]string{m.sessionKey(userID), m.indexKey()},
		sessionID, int(m.conf.TTL.Seconds()), userID, expAt, int(m.conf.SweepIdle.Seconds()),
	).Err()
}

// Offline 下线：仅当登记的会话是 sessionID 时才删除，返回是否删除
func (m *OnlineStore) Offline(ctx context.Context, userID, sessionID string) (bool, error) {
	if userID == "" || sessionID == "" {
		return false, errs.ErrArgs.WrapMsg("userID/sessionID empty")
	}
	n, err := m.luaOffline.Run(ctx, redisc.GetRedis(),
		[]string{m.sessionKey(userID), m.indexKey()},
		sessionID, userID,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Heartbeat 续期：会话被新连接顶掉时返回 false
func (m *OnlineStore) Heartbeat(ctx context.Context, userID, sessionID string) (bool, error) {
	expAt := time.Now().Add(m.conf.TTL).Unix()
	n, err := m.luaHeartbeat.Run(ctx, redisc.GetRedis(),
		[]string{m.sessionKey(userID), m.indexKey()},
		sessionID, int(m.conf.TTL.Seconds()), userID, expAt,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IsOnline 在线判断（旁路查询，不用于投递判定）
func (m *OnlineStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := redisc.GetRedis().Exists(ctx, m.sessionKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveUsers 清理过期成员并返回本节点在线用户
func (m *OnlineStore) ActiveUsers(ctx context.Context) ([]string, error) {
	return m.luaActive.Run(ctx, redisc.GetRedis(),
		[]string{m.indexKey()}, time.Now().Unix(),
	).StringSlice()
}
