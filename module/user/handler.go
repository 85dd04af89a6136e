package user

import (
	"net/http"
	"time"

	service "DMCore/module/user/service"
	errs "DMCore/tools/errs"

	"github.com/gin-gonic/gin"
)

type loginReq struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name"`
}

// Handlers 登录/校验接口。凭证体系（密码、验证码等）不在本核心范围，
// 这里只负责把外部认定的 user_id 换成访问令牌。
type Handlers struct {
	Identity *service.Identity
}

func NewHandlers(identity *service.Identity) *Handlers {
	return &Handlers{Identity: identity}
}

func (h *Handlers) HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	u, err := service.EnsureUser(c.Request.Context(), req.UserID, req.Name)
	if err != nil {
		c.JSON(http.StatusOK, errs.ErrInternalServer.WithDetail(err.Error()))
		return
	}

	token, exp, err := h.Identity.Issue(req.UserID, []string{"chat"})
	if err != nil {
		c.JSON(http.StatusOK, errs.ErrInternalServer.WithDetail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expire_at": exp.UnixMilli(),
		"user":      u,
	})
}

// HandlerCheck 校验当前令牌（走认证中间件后 user_id 已在上下文里）
func (h *Handlers) HandlerCheck(c *gin.Context) {
	userID := c.GetString("user_id")
	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"server_time": time.Now().UnixMilli(),
	})
}
