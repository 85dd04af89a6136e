package middleware

import (
	"time"

	"DMCore/logger"

	"github.com/gin-gonic/gin"
)

// AccessLog 请求日志：方法、路径、状态码、耗时
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("[HTTP] %s %s %d %v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
