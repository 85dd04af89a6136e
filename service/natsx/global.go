package natsx

import "sync"

var (
	globalMu sync.RWMutex
	global   *NatsxClient
)

// SetGlobal 注册全局客户端（可选；未配置时业务走进程内直连路径）
func SetGlobal(c *NatsxClient) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = c
}

// Global 取全局客户端，可能为 nil
func Global() *NatsxClient {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}
