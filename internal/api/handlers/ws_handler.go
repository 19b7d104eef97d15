package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/deltapoly/assistant/internal/assistant"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler serves the same chat frames over a websocket for clients that
// keep one long-lived connection across turns.
type WSHandler struct {
	orch     *assistant.Orchestrator
	upgrader websocket.Upgrader
}

func NewWSHandler(orch *assistant.Orchestrator) *WSHandler {
	return &WSHandler{
		orch: orch,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (h *WSHandler) Chat(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	cust := customerID(c)

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
			_ = wc.writeJSON(assistant.Frame{Error: "invalid request payload"})
			continue
		}
		if req.Locale != "ar" && req.Locale != "en" {
			_ = wc.writeJSON(assistant.Frame{Error: "locale must be ar or en"})
			continue
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		turnCust := cust
		if turnCust == nil && req.CustomerID != "" {
			turnCust = &req.CustomerID
		}

		areq := assistant.Request{
			Message:    req.Message,
			SessionKey: req.SessionID,
			CustomerID: turnCust,
			Locale:     req.Locale,
			CartItems:  req.CartItems,
		}

		err := h.orch.Run(ctx, areq, func(f assistant.Frame) error {
			return wc.writeJSON(f)
		})
		if err != nil {
			var qe *assistant.QuotaError
			if errors.As(err, &qe) {
				_ = wc.writeJSON(gin.H{
					"error":          "too many requests",
					"retry_after_ms": qe.RetryAfter.Milliseconds(),
				})
				continue
			}
			_ = wc.writeJSON(assistant.Frame{Error: "request failed"})
		}
	}
}
