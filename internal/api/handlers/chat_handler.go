package handlers

import (
	"errors"
	"net/http"

	"github.com/deltapoly/assistant/internal/assistant"
	"github.com/deltapoly/assistant/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	orch *assistant.Orchestrator
}

func NewChatHandler(orch *assistant.Orchestrator) *ChatHandler {
	return &ChatHandler{orch: orch}
}

type ChatRequest struct {
	Message    string               `json:"message" binding:"required,max=4000"`
	SessionID  string               `json:"sessionId" binding:"omitempty,uuid"`
	CustomerID string               `json:"customerId" binding:"omitempty,uuid"`
	Locale     string               `json:"locale" binding:"required,oneof=ar en"`
	CartItems  []assistant.CartItem `json:"cartItems" binding:"omitempty,dive"`
}

// Chat answers one user turn as a server-sent event stream. Quota and
// validation rejections come back as plain JSON because no stream has been
// committed yet; every later failure travels as an error frame.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Chat", "invalid request payload", err))
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	cust := customerID(c)
	if cust == nil && req.CustomerID != "" {
		cust = &req.CustomerID
	}

	areq := assistant.Request{
		Message:    req.Message,
		SessionKey: req.SessionID,
		CustomerID: cust,
		Locale:     req.Locale,
		CartItems:  req.CartItems,
	}

	started := false
	emit := func(f assistant.Frame) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		if !started {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.WriteHeader(http.StatusOK)
			started = true
		}
		c.SSEvent("message", f)
		c.Writer.Flush()
		return nil
	}

	err := h.orch.Run(c.Request.Context(), areq, emit)
	if err == nil || started {
		return
	}

	var qe *assistant.QuotaError
	if errors.As(err, &qe) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":           utils.CodeResourceExhausted,
			"message":        "too many requests",
			"retry_after_ms": qe.RetryAfter.Milliseconds(),
		})
		return
	}
	writeError(c, err)
}
