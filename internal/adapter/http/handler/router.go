package handler

import (
	"salon-magik-hub/internal/adapter/http/middleware"
	redisStore "salon-magik-hub/internal/adapter/storage/redis"
	"salon-magik-hub/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	WithdrawalSvc  ports.WithdrawalService
	SettlementSvc  ports.SettlementService
	DestRepo       ports.DestinationRepository
	TokenSvc       ports.TokenService
	PlatformKey    string
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Provider callbacks (authenticated by HMAC signature, not JWT)
	settlementHandler := NewSettlementHandler(deps.SettlementSvc, deps.Logger)
	r.POST("/webhooks/transfer", settlementHandler.HandleWebhook)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (platform-key authenticated) ---
	authHandler := NewAuthHandler(deps.TokenSvc, deps.PlatformKey)
	auth := v1.Group("/auth")
	{
		auth.POST("/token", rl("auth_login"), authHandler.Token)
	}

	// --- JWT-authenticated routes (tenant API) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc, deps.DestRepo)

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.GET("/:id/balance", rl("statement"), walletHandler.GetBalance)
		wallets.GET("/:id/entries", rl("statement"), walletHandler.ListEntries)
		wallets.POST("/booking-credit", rl("ledger"), walletHandler.BookingCredit)
		wallets.POST("/credit-purchase", rl("ledger"), walletHandler.CreditPurchase)
	}

	purses := v1.Group("/purses", jwtAuth)
	{
		purses.POST("/topup", rl("ledger"), walletHandler.Topup)
	}

	withdrawals := v1.Group("/withdrawals", jwtAuth)
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Create)
		withdrawals.GET("", rl("statement"), withdrawalHandler.List)
		withdrawals.GET("/:id", rl("statement"), withdrawalHandler.Get)
	}

	destinations := v1.Group("/destinations", jwtAuth)
	{
		destinations.POST("", rl("withdrawals"), withdrawalHandler.CreateDestination)
		destinations.GET("", rl("statement"), withdrawalHandler.ListDestinations)
	}

	return r
}
