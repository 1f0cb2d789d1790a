package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/drivelane/paycore/internal/audit"
	auditdomain "github.com/drivelane/paycore/internal/audit/domain"
	"github.com/drivelane/paycore/internal/clock"
	"github.com/drivelane/paycore/internal/config"
	"github.com/drivelane/paycore/internal/fraud"
	frauddomain "github.com/drivelane/paycore/internal/fraud/domain"
	"github.com/drivelane/paycore/internal/gateway"
	"github.com/drivelane/paycore/internal/migration"
	"github.com/drivelane/paycore/internal/observability"
	obslogger "github.com/drivelane/paycore/internal/observability/logger"
	obstracing "github.com/drivelane/paycore/internal/observability/tracing"
	"github.com/drivelane/paycore/internal/payment"
	paymentdomain "github.com/drivelane/paycore/internal/payment/domain"
	"github.com/drivelane/paycore/internal/refund"
	refunddomain "github.com/drivelane/paycore/internal/refund/domain"
	"github.com/drivelane/paycore/internal/signals"
	"github.com/drivelane/paycore/pkg/db"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	config.FraudModule,
	observability.Module,
	db.Module,
	clock.Module,
	migration.Module,
	fx.Provide(NewSnowflakeNode),
	fx.Provide(NewEngine),
	audit.Module,
	fraud.Module,
	gateway.Module,
	signals.Module,
	payment.Module,
	refund.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(obslogger.GinMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	auditSvc   auditdomain.Service
	fraudSvc   frauddomain.Service
	paymentSvc paymentdomain.Service
	refundSvc  refunddomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	AuditSvc   auditdomain.Service
	FraudSvc   frauddomain.Service
	PaymentSvc paymentdomain.Service
	RefundSvc  refunddomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		auditSvc:   p.AuditSvc,
		fraudSvc:   p.FraudSvc,
		paymentSvc: p.PaymentSvc,
		refundSvc:  p.RefundSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/payments", s.CreatePayment)
	v1.GET("/payments/:id", s.GetPayment)
	v1.POST("/payments/:id/refunds", s.CreateRefund)
	v1.POST("/fraud/checks", s.CheckFraud)
	v1.GET("/audit-logs", s.ListAuditLogs)
}
