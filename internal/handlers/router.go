package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/middleware"
	"chat-client/internal/observability"
	"chat-client/internal/telemetry"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Service     string
	Token       string
	Audit       *telemetry.AuditEmitter
	DebugRoutes bool
}

// NewRouter builds the control API engine.
func NewRouter(h *ControlHandler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.Service))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(requestID())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connection": h.chat.ConnectionState()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.Register(router.Group("/", middleware.TokenAuth(opts.Token)))
	RegisterDebugRoutes(router, opts.Audit, h.session, opts.DebugRoutes)
	return router
}
