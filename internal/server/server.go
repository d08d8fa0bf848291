package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/cubridge/voiceline/internal/audit"
	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	"github.com/cubridge/voiceline/internal/call"
	calldomain "github.com/cubridge/voiceline/internal/call/domain"
	"github.com/cubridge/voiceline/internal/config"
	"github.com/cubridge/voiceline/internal/escalation"
	"github.com/cubridge/voiceline/internal/event"
	eventdomain "github.com/cubridge/voiceline/internal/event/domain"
	"github.com/cubridge/voiceline/internal/member"
	"github.com/cubridge/voiceline/internal/observability"
	obsmiddleware "github.com/cubridge/voiceline/internal/observability/logger"
	obsmetrics "github.com/cubridge/voiceline/internal/observability/metrics"
	obstracing "github.com/cubridge/voiceline/internal/observability/tracing"
	"github.com/cubridge/voiceline/internal/providers"
	"github.com/cubridge/voiceline/internal/ratelimit"
	"github.com/cubridge/voiceline/internal/session"
	"github.com/cubridge/voiceline/internal/tenant"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	tenant.Module,
	member.Module,
	session.Module,
	escalation.Module,
	providers.Module,
	ratelimit.Module,
	call.Module,
	event.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		StrippedMode:    cfg.StrippedMode,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config

	callSvc   calldomain.Service
	eventSvc  eventdomain.Service
	tenantSvc tenantdomain.Service
	auditSvc  auditdomain.Service

	obsMetrics      *obsmetrics.Metrics
	initiateLimiter *ratelimit.CallInitiateLimiter
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config

	CallSvc   calldomain.Service
	EventSvc  eventdomain.Service
	TenantSvc tenantdomain.Service
	AuditSvc  auditdomain.Service

	ObsMetrics      *obsmetrics.Metrics            `optional:"true"`
	InitiateLimiter *ratelimit.CallInitiateLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		callSvc:         p.CallSvc,
		eventSvc:        p.EventSvc,
		tenantSvc:       p.TenantSvc,
		auditSvc:        p.AuditSvc,
		obsMetrics:      p.ObsMetrics,
		initiateLimiter: p.InitiateLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/calls", s.InitiateCall)
	api.GET("/tenants/:id/ivr-config", s.GetIvrConfig)
	api.GET("/tenants/:id/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks/voice")

	hooks.POST("/events", s.HandleVoiceEvent)
	hooks.GET("/events", s.VerifyVoiceWebhook)
	hooks.POST("/status", s.HandleStatusCallback)
}
