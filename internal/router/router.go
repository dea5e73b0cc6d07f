package router

import (
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/infra"
	"stockledger/internal/middleware"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services is the service layer shared by the HTTP surface and the
// background consumers.
type Services struct {
	Auth        service.AuthService
	Ledger      service.LedgerService
	Mappings    service.MappingService
	Tracker     service.TrackerService
	OrderEvents service.OrderEventService
}

// NewServices wires repositories into services.
// Dependency graph: Service ← Repository ← DB. catalog and notifier may be nil.
func NewServices(cfg *config.Config, db *gorm.DB, catalog *infra.CatalogClient, notifier service.Notifier) *Services {
	codeRepo := repository.NewStockCodeRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// A nil *CatalogClient must not become a non-nil interface.
	var lookup service.CatalogLookup
	if catalog != nil {
		lookup = catalog
	}

	ledger := service.NewLedgerService(codeRepo, mappingRepo, historyRepo)
	mappings := service.NewMappingService(codeRepo, mappingRepo, lookup)
	tracker := service.NewTrackerService(trackingRepo)
	statuses := service.OrderStatuses{Ship: cfg.OrderShipStatus, Return: cfg.OrderReturnStatus}

	return &Services{
		Auth:        service.NewAuthService(operatorRepo, cfg),
		Ledger:      ledger,
		Mappings:    mappings,
		Tracker:     tracker,
		OrderEvents: service.NewOrderEventService(db, ledger, mappings, tracker, notifier, statuses),
	}
}

// Options carries the optional collaborators of the HTTP surface.
type Options struct {
	Redis     *redis.Client           // nil disables caching and dead letter endpoints
	Queue     handler.OrderEventQueue // nil processes order events inline
	CatalogCB *infra.CircuitBreaker   // reported by /health
}

// New returns a configured Gin engine.
func New(cfg *config.Config, db *gorm.DB, svcs *Services, opts Options) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	operatorsH := handler.NewOperatorsHandler(svcs.Auth)
	codesH := handler.NewStockCodesHandler(svcs.Ledger)
	mappingsH := handler.NewMappingsHandler(svcs.Mappings)
	historyH := handler.NewHistoryHandler(svcs.Ledger)
	lookupH := handler.NewVariantLookupHandler(svcs.Mappings, opts.Redis)
	eventsH := handler.NewOrderEventsHandler(svcs.OrderEvents, svcs.Tracker, opts.Queue, opts.Redis)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, opts.Redis, opts.CatalogCB))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Order system integration, authenticated by body signature.
	r.POST("/v1/order-events", middleware.VerifySignature(cfg.OrderWebhookSecret), eventsH.Receive)
	r.GET("/v1/variants/:variant_ref/code", lookupH.CodeForVariant)

	// Protected routes
	readers := []string{model.RoleViewer, model.RoleOperator, model.RoleAdmin}
	writers := []string{model.RoleOperator, model.RoleAdmin}

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/stock-codes", middleware.RequireRole(readers...), codesH.List)
		v1.GET("/stock-codes/by-code/:code", middleware.RequireRole(readers...), codesH.GetByCode)
		v1.GET("/stock-codes/:id", middleware.RequireRole(readers...), codesH.Get)
		v1.GET("/stock-codes/:id/mappings", middleware.RequireRole(readers...), mappingsH.List)
		v1.POST("/stock-codes/:id/adjust", middleware.RequireRole(writers...), codesH.Adjust)
		v1.POST("/stock-codes/:id/mappings", middleware.RequireRole(writers...), mappingsH.Add)
		v1.DELETE("/mappings/:mapping_id", middleware.RequireRole(writers...), mappingsH.Remove)

		codes := v1.Group("/stock-codes", middleware.RequireRole(model.RoleAdmin))
		{
			codes.POST("", codesH.Create)
			codes.PUT("/:id", codesH.Update)
			codes.DELETE("/:id", codesH.Delete)
		}

		v1.GET("/history", middleware.RequireRole(readers...), historyH.List)
		v1.GET("/history/export", middleware.RequireRole(readers...), historyH.Export)

		v1.GET("/orders/:order_ref/tracking", middleware.RequireRole(readers...), eventsH.Tracking)

		dlq := v1.Group("/order-events/dead-letters", middleware.RequireRole(model.RoleAdmin))
		{
			dlq.GET("", eventsH.DeadLetters)
			dlq.POST("/requeue", eventsH.RequeueDeadLetters)
		}

		operators := v1.Group("/operators", middleware.RequireRole(model.RoleAdmin))
		{
			operators.POST("", operatorsH.Create)
			operators.GET("", operatorsH.List)
			operators.PUT("/:id", operatorsH.Update)
			operators.DELETE("/:id", operatorsH.Deactivate)
			operators.PATCH("/:id/reactivate", operatorsH.Reactivate)
		}
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
