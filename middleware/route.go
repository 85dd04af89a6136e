package middleware

import (
	"github.com/gin-gonic/gin"
)

// RouteOpt 路由配置
type RouteOpt struct {
	IsAuth bool
}

var authMW gin.HandlerFunc

// SetAuth 注册鉴权中间件（main 启动时调用一次）
func SetAuth(mw gin.HandlerFunc) { authMW = mw }

// POST 封装：按 opt 决定是否挂鉴权
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth && authMW != nil {
		r.POST(path, authMW, handler)
	} else {
		r.POST(path, handler)
	}
}

// GET 封装
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth && authMW != nil {
		r.GET(path, authMW, handler)
	} else {
		r.GET(path, handler)
	}
}
