package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/netbill/internal/authorization"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	"github.com/smallbiznis/netbill/internal/config"
	customerdomain "github.com/smallbiznis/netbill/internal/customer/domain"
	"github.com/smallbiznis/netbill/internal/observability"
	obsmiddleware "github.com/smallbiznis/netbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/netbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/netbill/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/netbill/internal/payment/domain"
	"github.com/smallbiznis/netbill/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine      *gin.Engine
	cfg         config.Config
	authzSvc    authorization.Service
	billSvc     billdomain.Service
	paymentSvc  paymentdomain.Service
	customerSvc customerdomain.Service
	limiter     *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	AuthzSvc    authorization.Service
	BillSvc     billdomain.Service
	PaymentSvc  paymentdomain.Service
	CustomerSvc customerdomain.Service
	Limiter     *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		authzSvc:    p.AuthzSvc,
		billSvc:     p.BillSvc,
		paymentSvc:  p.PaymentSvc,
		customerSvc: p.CustomerSvc,
		limiter:     p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(ActorContext())

	bills := api.Group("/bills")
	{
		bills.POST("/generate", s.authorize(authorization.ObjectBill, authorization.ActionBillGenerate), s.limitWrites(), s.GenerateBills)
		bills.GET("", s.authorize(authorization.ObjectBill, authorization.ActionBillView), s.ListBills)
		bills.GET("/stats", s.authorize(authorization.ObjectBill, authorization.ActionBillView), s.GetBillStats)
		bills.GET("/overdue", s.authorize(authorization.ObjectBill, authorization.ActionBillView), s.ListOverdueBills)
		bills.GET("/:id", s.authorize(authorization.ObjectBill, authorization.ActionBillView), s.GetBillByID)
		bills.GET("/:id/document", s.authorize(authorization.ObjectBill, authorization.ActionBillView), s.GetBillDocument)
		bills.PATCH("/:id/compensation", s.authorize(authorization.ObjectBill, authorization.ActionBillAdjust), s.limitWrites(), s.SetBillCompensation)
		bills.PATCH("/:id/previous-debt", s.authorize(authorization.ObjectBill, authorization.ActionBillAdjust), s.limitWrites(), s.SetBillPreviousDebt)
		bills.POST("/:id/reminder", s.authorize(authorization.ObjectBill, authorization.ActionBillRemind), s.limitWrites(), s.SendBillReminder)
		bills.POST("/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.limitWrites(), s.RecordPayment)
		bills.GET("/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListBillPayments)
	}

	api.GET("/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListPayments)

	customers := api.Group("/customers")
	{
		customers.POST("", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerCreate), s.CreateCustomer)
		customers.GET("", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerView), s.ListCustomers)
		customers.GET("/:id", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerView), s.GetCustomerByID)
		customers.PATCH("/:id/carried-debt", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerUpdate), s.SetCustomerCarriedDebt)
		customers.PATCH("/:id/status", s.authorize(authorization.ObjectCustomer, authorization.ActionCustomerUpdate), s.SetCustomerStatus)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")
	admin.Use(ActorContext())

	admin.POST("/reset", s.authorize(authorization.ObjectBilling, authorization.ActionBillingReset), s.ResetBilling)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
