package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/vendora/refundcore/internal/audit/domain"
	"github.com/vendora/refundcore/internal/config"
	creditnotedomain "github.com/vendora/refundcore/internal/creditnote/domain"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	"github.com/vendora/refundcore/internal/observability/logger"
	"github.com/vendora/refundcore/internal/observability/metrics"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	RefundSvc     refunddomain.Service
	CreditNoteSvc creditnotedomain.Service
	GatewaySvc    gatewaydomain.Service
	Recorder      recondomain.Recorder
	AuditSvc      auditdomain.Service
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	refundSvc     refunddomain.Service
	creditNoteSvc creditnotedomain.Service
	gatewaySvc    gatewaydomain.Service
	recorder      recondomain.Recorder
	auditSvc      auditdomain.Service
	webhookLimit  *rateLimiter
}

func New(p Params) *Server {
	return &Server{
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("server"),
		refundSvc:     p.RefundSvc,
		creditNoteSvc: p.CreditNoteSvc,
		gatewaySvc:    p.GatewaySvc,
		recorder:      p.Recorder,
		auditSvc:      p.AuditSvc,
		webhookLimit:  newRateLimiter(p.Cfg.WebhookRateLimit, p.Cfg.WebhookRateLimitWindow),
	}
}

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{SkipPaths: []string{"/healthz"}}))

	httpMetrics, err := metrics.NewHTTPMetrics()
	if err != nil {
		log.Warn("http metrics disabled", zap.Error(err))
	}
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway callbacks authenticate by signature, not bearer token.
	engine.POST("/v1/webhooks/:provider", s.IngestWebhook)

	v1 := engine.Group("/v1", s.Authenticate)
	{
		v1.POST("/refunds", s.CreateRefund)
		v1.GET("/refunds", s.ListRefunds)
		v1.GET("/refunds/:id", s.GetRefund)
		v1.POST("/refunds/:id/transitions", s.TransitionRefund)
		v1.GET("/refunds/:id/transactions", s.ListRefundTransactions)

		v1.GET("/credit-notes/:id", s.GetCreditNote)
		v1.POST("/credit-notes/:id/consume", s.ConsumeCreditNote)
		v1.GET("/customers/:id/credit-balance", s.GetCreditBalance)

		v1.GET("/reconciliation/stale", s.StaleTransactions)
	}
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Run),
)

// Run starts the HTTP listener under the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	engine := NewEngine(cfg, log)
	s.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
