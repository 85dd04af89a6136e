package security

import (
	"net/http"
	"strings"

	errs "DMCore/tools/errs"

	"github.com/gin-gonic/gin"
)

// CtxUserIDKey 下游统一用这个 key 读取已验证的身份
const CtxUserIDKey = "user_id"

// TokenValidator 与网关同一个身份服务协作方
type TokenValidator interface {
	Validate(token string) (string, error)
}

type Options struct {
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
	}
}

// Middleware 解析并校验令牌，身份写入 gin 上下文
func Middleware(v TokenValidator, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		// 兼容 Authorization: Bearer xxx
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusOK, errs.ErrTokenMissing)
			return
		}

		userID, err := v.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, errs.ErrTokenExpired)
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}
