package message

import (
	"net/http"
	"strconv"

	service "DMCore/module/message/service"
	errs "DMCore/tools/errs"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Svc *service.Service
}

func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{Svc: svc}
}

// HandlerSend POST /messages 创建消息（认证后），落库 + 一跳投递
func (h *Handlers) HandlerSend(c *gin.Context) {
	senderID := c.GetString("user_id")
	if senderID == "" {
		c.JSON(http.StatusOK, errs.ErrTokenMissing)
		return
	}

	var in service.SendParams
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusOK, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	msg, status, err := h.Svc.Send(c.Request.Context(), senderID, in)
	if err != nil {
		c.JSON(http.StatusOK, errs.ErrInternalServer.WithDetail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "delivery": status})
}

// HandlerHistory GET /messages/history?partner=xx&limit=50
func (h *Handlers) HandlerHistory(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusOK, errs.ErrTokenMissing)
		return
	}
	partner := c.Query("partner")
	if partner == "" {
		c.JSON(http.StatusOK, errs.ErrArgs.WithDetail("partner required"))
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	msgs, err := h.Svc.History(c.Request.Context(), userID, partner, limit)
	if err != nil {
		c.JSON(http.StatusOK, errs.ErrInternalServer.WithDetail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
