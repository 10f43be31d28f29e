package router

import (
	"bersapos/internal/cobro"
	"bersapos/internal/config"
	"bersapos/internal/handler"
	"bersapos/internal/middleware"
	"bersapos/internal/realtime"
	"bersapos/internal/repository"
	"bersapos/internal/service"
	"bersapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// rolesOperacion may run a register: open, sell, void and close.
var rolesOperacion = []string{middleware.RolCajero, middleware.RolSupervisor, middleware.RolAdministrador}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
//
// With rdb, events go through Redis pub/sub (the caller runs
// realtime.Reenviar into hub) and tickets are queued for the worker pool.
// Without it, events go straight to hub and no tickets are produced.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, hub *realtime.Hub) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter, err := middleware.RateLimiter(cfg.RateLimitSpec, rdb)
	if err != nil {
		return nil, err
	}
	tabla, err := cobro.TablaPorPolitica(cfg.PoliticaRedondeo)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigenes))
	r.Use(middleware.ErrorHandler())
	r.Use(limiter)

	// ── Infrastructure ───────────────────────────────────────────────────────
	var pub realtime.Publicador = hub
	var dispatcher *worker.Dispatcher
	if rdb != nil {
		pub = realtime.NewRedisPublicador(rdb, cfg.RealtimeCanal)
		dispatcher = worker.NewDispatcher(rdb)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	cajaRepo := repository.NewCajaRepository(db)
	ventaRepo := repository.NewVentaRepository(db)
	productoRepo := repository.NewProductoRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	cajaSvc := service.NewCajaService(cajaRepo, pub)
	ventaSvc := service.NewVentaService(ventaRepo, cajaRepo, productoRepo, cobro.NewCalculadora(tabla), pub, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc, ventaSvc)
	ventasH := handler.NewVentasHandler(ventaSvc)
	eventosH := handler.NewEventosHandler(hub)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, hub))

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(rolesOperacion...))
	{
		cajas := v1.Group("/cajas")
		{
			cajas.GET("", cajaH.Listar)
			cajas.GET("/:id/apertura", cajaH.AperturaActiva)
			cajas.POST("/:id/abrir", cajaH.Abrir)
			cajas.GET("/:id/resumen-previo", cajaH.ResumenPrevio)
			cajas.POST("/:id/cerrar", cajaH.Cerrar)
			cajas.GET("/:id/ventas", cajaH.Ventas)
		}

		v1.POST("/ventas", ventasH.RegistrarVenta)
		v1.POST("/ventas/:id/anular", ventasH.AnularVenta)
		v1.GET("/sucursales/:id/stock", ventasH.StockSucursal)

		v1.GET("/eventos", eventosH.Suscribir)
	}

	// Swagger UI, outside production only
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}
