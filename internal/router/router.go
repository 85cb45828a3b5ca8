// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/commission-backend/internal/archive"
	"github.com/javajoker/commission-backend/internal/config"
	"github.com/javajoker/commission-backend/internal/handlers"
	"github.com/javajoker/commission-backend/internal/middleware"
	"github.com/javajoker/commission-backend/internal/repository"
	"github.com/javajoker/commission-backend/internal/services"
	"github.com/javajoker/commission-backend/internal/utils"
)

const Version = "1.0.0"

// Deps are the services exposed over HTTP.
type Deps struct {
	Ledger      handlers.LedgerReader
	Commissions handlers.CommissionOperator
	Wallets     services.WalletChecker
	Reconciler  handlers.EventHandler
	Archiver    archive.Archiver
	Audit       repository.AuditRepository
	Checks      map[string]handlers.Check
	Logger      logrus.FieldLogger
}

// Router is the HTTP engine plus the background resources of its middleware.
type Router struct {
	Engine   *gin.Engine
	limiters []*middleware.RateLimiter
}

// Stop releases the rate limiter cleanup goroutines.
func (r *Router) Stop() {
	for _, l := range r.limiters {
		l.Stop()
	}
}

func Initialize(cfg *config.Config, deps Deps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Initialize handlers
	commissionHandler := handlers.NewCommissionHandler(deps.Ledger, deps.Commissions, deps.Wallets, logger)
	webhookHandler := handlers.NewWebhookHandler(deps.Reconciler, deps.Archiver, cfg.Payment.Asaas.WebhookToken, logger)
	healthHandler := handlers.NewHealthHandler(Version, deps.Checks)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	generalLimiter := middleware.NewRateLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	webhookLimiter := middleware.NewRateLimiter(rate.Limit(cfg.Server.WebhookRateLimitRPS), cfg.Server.WebhookRateLimitBurst)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.I18nMiddleware())
	if deps.Audit != nil {
		r.Use(middleware.AuditLogMiddleware(deps.Audit, logger))
	}

	// Health check
	r.GET("/health", healthHandler.Health)

	// Payment processor callbacks
	webhooks := r.Group("/webhooks")
	webhooks.Use(webhookLimiter.Middleware())
	{
		webhooks.POST("/asaas", webhookHandler.HandleAsaas)
	}

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(generalLimiter.Middleware(), middleware.AuthRequired())
	{
		// Affiliate routes
		me := v1.Group("/me")
		me.Use(middleware.AffiliateRequired())
		{
			me.GET("/commissions", commissionHandler.GetMyCommissions)
		}

		// Admin routes
		admin := v1.Group("")
		admin.Use(middleware.AdminRequired())
		{
			admin.GET("/commissions", commissionHandler.ListCommissions)
			admin.GET("/commissions/payments/:id", commissionHandler.GetPaymentCommissions)
			admin.POST("/commissions/payments/:id/process", commissionHandler.ProcessPayment)
			admin.POST("/commissions/preview", commissionHandler.Preview)
			admin.GET("/splits/:order_id", commissionHandler.GetSplit)
			admin.POST("/splits/:order_id/retry", commissionHandler.RetrySplit)
			admin.GET("/wallets/:wallet_id/validation", commissionHandler.ValidateWallet)
		}
	}

	return &Router{Engine: r, limiters: []*middleware.RateLimiter{generalLimiter, webhookLimiter}}
}
