package chat

import (
	"sort"
	"sync"
)

// SessionRegistry 身份 -> 活跃会话。整个核心唯一的共享可变状态。
// 不变量：任一时刻每个身份至多一条会话（last-connect-wins）。
// 所有操作纯内存，锁内不做任何 I/O。
type SessionRegistry struct {
	mu       sync.RWMutex
	byUser   map[string]*Session
	bySessID map[string]*Session // 辅助索引：会话ID -> 会话
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser:   make(map[string]*Session),
		bySessID: make(map[string]*Session),
	}
}

// Register 登记会话，覆盖同身份的旧条目（旧会话由其自身的收尾清理，
// 收尾时的 Unregister 会因为实例不匹配而被拒绝）。
// 不触发广播，广播由调用方驱动。
func (r *SessionRegistry) Register(identity string, s *Session) {
	if identity == "" || s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byUser[identity]; ok && old != s {
		delete(r.bySessID, old.ID)
	}
	r.byUser[identity] = s
	r.bySessID[s.ID] = s
}

// Unregister 仅当登记的就是这条会话实例时才删除，防止旧连接的
// 延迟收尾挤掉新连接。返回是否真的删除了。
func (r *SessionRegistry) Unregister(identity string, s *Session) bool {
	if identity == "" || s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byUser[identity]
	if !ok || cur != s {
		return false
	}
	delete(r.byUser, identity)
	delete(r.bySessID, s.ID)
	return true
}

// Lookup 非阻塞读
func (r *SessionRegistry) Lookup(identity string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[identity]
	return s, ok
}

func (r *SessionRegistry) GetBySessionID(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.bySessID[id]
	return s, ok
}

// SnapshotIdentities 在线身份的时点拷贝，排序保证输出稳定。
// 调用方可在注册表并发变化时安全迭代。
func (r *SessionRegistry) SnapshotIdentities() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// SnapshotSessions 当前会话集合的时点拷贝
func (r *SessionRegistry) SnapshotSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byUser))
	for _, s := range r.byUser {
		out = append(out, s)
	}
	return out
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Close 关停所有会话（进程退出时用）；先拷贝再关，避免持锁关 socket
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byUser))
	for _, s := range r.byUser {
		sessions = append(sessions, s)
	}
	r.byUser = make(map[string]*Session)
	r.bySessID = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
