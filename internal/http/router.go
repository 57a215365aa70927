package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/english-trainer-backend/internal/http/handlers"
	httpMW "github.com/yungbote/english-trainer-backend/internal/http/middleware"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	ExposeMetrics  bool
	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler  *httpH.SessionHandler
	TurnHandler     *httpH.TurnHandler
	TemplateHandler *httpH.TemplateHandler
	UsageHandler    *httpH.UsageHandler
	ReportHandler   *httpH.ReportHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.ExposeMetrics {
		r.GET("/metrics", gin.WrapH(observability.Handler()))
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Sessions
		if cfg.SessionHandler != nil {
			protected.POST("/sessions", cfg.SessionHandler.Create)
			protected.GET("/sessions", cfg.SessionHandler.List)
			protected.GET("/sessions/:id", cfg.SessionHandler.Get)
			protected.POST("/sessions/:id/archive", cfg.SessionHandler.Archive)
			protected.GET("/sessions/:id/turns", cfg.SessionHandler.ListTurns)
		}

		// Turns
		if cfg.TurnHandler != nil {
			protected.POST("/sessions/:id/turns", cfg.TurnHandler.Submit)
		}

		// Templates
		if cfg.TemplateHandler != nil {
			protected.POST("/sessions/:id/templates", cfg.TemplateHandler.SaveFromSession)
			protected.GET("/templates", cfg.TemplateHandler.List)
			protected.GET("/templates/:id", cfg.TemplateHandler.Get)
			protected.DELETE("/templates/:id", cfg.TemplateHandler.Delete)
		}

		// Usage / reports
		if cfg.UsageHandler != nil {
			protected.GET("/usage", cfg.UsageHandler.Get)
		}
		if cfg.ReportHandler != nil {
			protected.GET("/reports/latest", cfg.ReportHandler.Latest)
		}
	}

	return r
}
