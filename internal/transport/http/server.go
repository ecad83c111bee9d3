package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/config"
	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/metrics"
)

// loginAttemptsPerMinute bounds /api/login per client IP.
const loginAttemptsPerMinute = 30

// NewServer builds the status, operator API and WebSocket server.
func NewServer(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(metrics.GinMiddleware())

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsHandler := NewWSHandler(hub, WSOptions{
		MaxLineBytes: cfg.MaxLineBytes,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	apiHandlers := NewAPIHandlers(authService, newIPRateLimiter(loginAttemptsPerMinute), logger)
	roomHandlers := NewRoomHandlers(hub, logger)
	userHandlers := NewUserHandlers(hub, logger)

	api := router.Group("/api")
	api.POST("/login", apiHandlers.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))
	protected.GET("/rooms", roomHandlers.ListRooms)
	protected.GET("/groups/:name", roomHandlers.GetGroup)
	protected.GET("/users", userHandlers.ListOnline)

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
