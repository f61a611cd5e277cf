package router

import (
	"fmt"

	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/logger"
	"github.com/erp/shopledger/internal/infrastructure/telemetry"
	"github.com/erp/shopledger/internal/interfaces/http/handler"
	"github.com/erp/shopledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handlers bundles the handlers served by the engine
type Handlers struct {
	Sales      *handler.SaleHandler
	Recoveries *handler.RecoveryHandler
	Health     *handler.HealthHandler
}

// EngineConfig configures NewEngine
type EngineConfig struct {
	HTTP        config.HTTPConfig
	Production  bool
	ServiceName string
	// Tracing enables otelgin spans; TracerProvider overrides the global one
	Tracing        bool
	TracerProvider trace.TracerProvider
	MeterProvider  *telemetry.MeterProvider
	Logger         *zap.Logger
}

// SalesRoutes returns the /sales group
func SalesRoutes(h *handler.SaleHandler) *RouteGroup {
	return NewRouteGroup("/sales").
		POST("", h.CreateSale).
		GET("/:id", h.GetSale).
		PATCH("/:id/notes", h.UpdateSaleNotes).
		GET("/:id/recoveries", h.GetRecoveryHistory)
}

// RecoveryRoutes returns the /recoveries group
func RecoveryRoutes(h *handler.RecoveryHandler) *RouteGroup {
	return NewRouteGroup("/recoveries").
		POST("", h.AddRecovery).
		PATCH("/:id/status", h.UpdateRecoveryStatus).
		GET("/outstanding", h.ListOutstanding).
		GET("/overdue", h.ListOverdue).
		GET("/fully-paid", h.ListFullyPaid).
		GET("/customers/:id/summary", h.GetCustomerSummary).
		GET("/dashboard", h.GetDashboard).
		POST("/migrate", h.MigrateExistingSales).
		POST("/refresh-overdue", h.RefreshOverdue)
}

// NewEngine builds the gin engine with the full middleware stack.
// Probes sit outside /api so rate limiting and body limits never fail them.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	metrics, err := middleware.HTTPMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create http metrics: %w", err)
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    cfg.ServiceName,
			Enabled:        cfg.Tracing,
			TracerProvider: cfg.TracerProvider,
		}),
		middleware.SpanAttributes(),
		metrics,
		middleware.Secure(middleware.SecurityOptions(cfg.Production)),
		middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)),
	)

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
		engine.GET("/ready", h.Health.Ready)
	}

	apiMiddleware := []gin.HandlerFunc{
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	}
	if cfg.HTTP.RateLimitEnabled && cfg.HTTP.RateLimitRequests > 0 {
		apiMiddleware = append([]gin.HandlerFunc{
			middleware.RateLimit(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow),
		}, apiMiddleware...)
	}

	r := NewRouter(engine, WithAPIMiddleware(apiMiddleware...))
	var groups []*RouteGroup
	if h.Sales != nil {
		groups = append(groups, SalesRoutes(h.Sales))
	}
	if h.Recoveries != nil {
		groups = append(groups, RecoveryRoutes(h.Recoveries))
	}
	for _, g := range groups {
		r.Register(g)
		for _, ep := range g.Endpoints(r.BasePath()) {
			log.Debug("Route registered", zap.String("endpoint", ep))
		}
	}
	r.Setup()

	return engine, nil
}
