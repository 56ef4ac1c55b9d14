package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"drawdash_backend/internal/config"
	"drawdash_backend/internal/http/handlers"
	"drawdash_backend/internal/http/middleware"
	"drawdash_backend/internal/ws"
)

// RegisterRoutes wires the HTTP surface: websocket endpoint, room discovery
// and health.
func RegisterRoutes(r *gin.Engine, deps ws.Deps, cfg *config.Config) {
	rooms := handlers.NewRoomHandler(deps.Store, deps.Rooms)

	limit := middleware.RateLimit(cfg.RoomRateLimit, time.Duration(cfg.RoomRateWindow)*time.Second)

	r.GET("/health", handlers.Health)
	r.GET("/rooms", limit, rooms.List)
	r.POST("/rooms", limit, rooms.Create)
	r.GET("/ws", ws.HandleWS(deps, cfg.AllowedOrigin))
}
