package handlers

import (
	"net/http"
	"strconv"

	"github.com/deltapoly/assistant/internal/services"
	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 50

type HistoryHandler struct {
	convos services.ConversationService
}

func NewHistoryHandler(convos services.ConversationService) *HistoryHandler {
	return &HistoryHandler{convos: convos}
}

// BySession returns the conversation identity and its ordered non-system
// messages for one session key.
func (h *HistoryHandler) BySession(c *gin.Context) {
	sessionID := c.Param("session_id")

	limit := maxHistoryLimit
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= maxHistoryLimit {
			limit = n
		}
	}

	conv, msgs, err := h.convos.HistoryBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conv.ID,
		"session_id":      conv.SessionKey,
		"locale":          conv.Locale,
		"status":          conv.Status,
		"messages":        msgs,
	})
}
