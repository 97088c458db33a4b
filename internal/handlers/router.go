package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mossy-p/webrtc-relay/config"
	"github.com/mossy-p/webrtc-relay/internal/metrics"
	"github.com/mossy-p/webrtc-relay/internal/signaling"
)

// NewRouter builds the HTTP surface: the signaling websocket on "/" and
// "/ws", health and metrics, and the read-only room API.
func NewRouter(cfg *config.Config, log *slog.Logger, hub *signaling.Hub, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	// Global CORS middleware (runs before routing)
	origins := NewOrigins(cfg.AllowedOrigins)
	router.Use(origins.Filter())

	router.GET("/health", Health(hub))
	router.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/rooms", ListRooms(hub))
		apiGroup.GET("/rooms/:roomId", GetRoom(hub))
	}

	signal := HandleSignaling(hub, WebSocketOptions{
		SendBuffer:      cfg.SendBuffer,
		MaxMessageBytes: cfg.MaxMessageBytes,
		CheckOrigin:     origins.Allowed,
	}, log)
	router.GET("/", signal)
	router.GET("/ws", signal)

	return router
}
