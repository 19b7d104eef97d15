package routes

import (
	"github.com/deltapoly/assistant/internal/api/handlers"
	"github.com/deltapoly/assistant/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Chat    *handlers.ChatHandler
	History *handlers.HistoryHandler
	WS      *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth())

	api.POST("/chat", d.Chat.Chat)
	api.GET("/chat/history/:session_id", d.History.BySession)

	// WebSocket transport for long-lived chat clients
	r.GET("/ws/chat", middleware.OptionalAuth(), d.WS.Chat)
}
