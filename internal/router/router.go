package router

import (
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/config"
	"github.com/dyaogo/pos-superette-sub002/internal/handler"
	"github.com/dyaogo/pos-superette-sub002/internal/infra"
	"github.com/dyaogo/pos-superette-sub002/internal/middleware"
	"github.com/dyaogo/pos-superette-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are built in cmd/server. DB, Redis and StockBreaker are only used by
// /health and may be nil.
type Deps struct {
	Cash         service.CashService
	Inventory    service.InventoryService
	DB           *gorm.DB
	Redis        *redis.Client
	StockBreaker *infra.CircuitBreaker
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger("/health", "/metrics"))
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins...))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // per IP, claims are not parsed yet

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(d.Cash)
	inventarioH := handler.NewInventarioHandler(d.Inventory)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.StockBreaker))
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	todos := middleware.RequireRole(middleware.RolCajero, middleware.RolSupervisor, middleware.RolAdministrador)
	supervision := middleware.RequireRole(middleware.RolSupervisor, middleware.RolAdministrador)

	// Second limiter runs after JWTAuth, so it keys on the operator.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RateLimiter(300, time.Minute))
	{
		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", todos, cajaH.Abrir)
			caja.POST("/movimiento", todos, cajaH.RegistrarMovimiento)
			caja.POST("/cerrar", todos, cajaH.Cerrar)
			caja.GET("/activa", todos, cajaH.GetActiva)
			caja.GET("/historial", supervision, cajaH.Historial)
		}

		inv := v1.Group("/inventario")
		{
			inv.POST("/sesiones", supervision, inventarioH.IniciarSesion)
			inv.GET("/sesiones/activa", todos, inventarioH.SesionActiva)
			inv.DELETE("/sesiones/activa", supervision, inventarioH.Descartar)

			// Counting is open to every role; applying adjustments is not.
			inv.POST("/conteos", todos, inventarioH.RegistrarConteo)
			inv.PUT("/conteos/borrador", todos, inventarioH.BorradorConteo)
			inv.POST("/flush", todos, inventarioH.Flush)

			inv.POST("/finalizar/preview", supervision, inventarioH.PreviewFinalizar)
			inv.POST("/finalizar/commit", supervision, inventarioH.CommitFinalizar)
			inv.POST("/finalizar", supervision, inventarioH.Finalizar)
			inv.GET("/historial", supervision, inventarioH.Historial)
		}

		admin := v1.Group("/admin", middleware.RequireRole(middleware.RolAdministrador))
		{
			admin.POST("/dlq/:cola/replay", handler.ReplayDLQ(d.Redis))
		}
	}

	return r
}
