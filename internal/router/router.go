package router

import (
	"time"

	"mesapos/internal/config"
	"mesapos/internal/handler"
	"mesapos/internal/infra"
	"mesapos/internal/middleware"
	"mesapos/internal/model"
	"mesapos/internal/repository"
	"mesapos/internal/service"
	"mesapos/internal/ws"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services is the service layer shared by the HTTP router and the background
// workers.
type Services struct {
	Stock        service.StockService
	Mesas        service.MesaService
	Ventas       service.VentaService
	Conciliacion service.ConciliacionService
}

// NewServices wires Service ← Repository ← DB. pub receives committed events.
func NewServices(cfg *config.Config, db *gorm.DB, pub service.Publicador) *Services {
	txr := service.NewTxRunner(db, cfg.TxTimeout, cfg.TxMaxRetries)

	// ── Repositories ─────────────────────────────────────────────────────────
	productoRepo := repository.NewProductoRepository(db)
	sucursalRepo := repository.NewSucursalRepository(db)
	stockRepo := repository.NewStockRepository(db)
	movimientoRepo := repository.NewMovimientoStockRepository(db)
	mesaRepo := repository.NewMesaRepository(db)
	prefacturaRepo := repository.NewPrefacturaRepository(db)
	ventaRepo := repository.NewVentaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	limites := service.LimitesDefault{Minimo: cfg.StockMinimoDefault, Maximo: cfg.StockMaximoDefault}
	stockSvc := service.NewStockService(txr, stockRepo, movimientoRepo, productoRepo, sucursalRepo, limites)
	conciliacionSvc := service.NewConciliacionService(txr, mesaRepo, ventaRepo)
	mesaSvc := service.NewMesaService(txr, mesaRepo, prefacturaRepo, ventaRepo, conciliacionSvc, pub)
	ventaSvc := service.NewVentaService(txr, ventaRepo, productoRepo, sucursalRepo, stockSvc, mesaSvc, pub)

	return &Services{
		Stock:        stockSvc,
		Mesas:        mesaSvc,
		Ventas:       ventaSvc,
		Conciliacion: conciliacionSvc,
	}
}

// New returns a configured Gin engine. rdb and cb may be nil; /health then
// reports redis as down.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, cb *infra.CircuitBreaker, hub *ws.Hub, svcs *Services) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimit, time.Minute))

	// ── Handlers ─────────────────────────────────────────────────────────────
	stockH := handler.NewStockHandler(svcs.Stock)
	mesasH := handler.NewMesasHandler(svcs.Mesas, svcs.Conciliacion)
	ventasH := handler.NewVentasHandler(svcs.Ventas)

	const (
		mozo   = model.RolMozo
		cajero = model.RolCajero
		cocina = model.RolCocina
		admin  = model.RolAdministrador
	)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, cb))

	// Live events; authenticates with ?token= since browsers cannot send headers
	r.GET("/ws/sucursales/:id/eventos", handler.EventosSucursal(hub, cfg.JWTSecret))

	// Protected routes. RequireRole rejects early; services enforce the gates.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		ventas := v1.Group("/ventas")
		{
			ventas.POST("", middleware.RequireRole(mozo, cajero, admin), ventasH.CrearVenta)
			ventas.GET("", ventasH.ListarVentas)
			ventas.GET("/:id", ventasH.ObtenerVenta)
			ventas.POST("/:id/aprobar", middleware.RequireRole(cajero, admin), ventasH.AprobarVenta)
			ventas.POST("/:id/rechazar", middleware.RequireRole(cajero, admin), ventasH.RechazarVenta)
			ventas.PATCH("/:id/estado", middleware.RequireRole(cocina, cajero, admin), ventasH.CambiarEstado)
			ventas.POST("/:id/cancelar", middleware.RequireRole(cajero, admin), ventasH.CancelarVenta)
		}

		v1.GET("/sucursales/:id/mesas", mesasH.ListarMesas)
		mesas := v1.Group("/mesas")
		{
			mesas.GET("/:id", mesasH.ObtenerMesa)
			mesas.POST("/:id/abrir", middleware.RequireRole(mozo, cajero, admin), mesasH.AbrirSesion)
			mesas.POST("/:id/cuenta", middleware.RequireRole(mozo, cajero, admin), mesasH.SolicitarCuenta)
			mesas.POST("/:id/cerrar", middleware.RequireRole(cajero, admin), mesasH.CerrarSesion)
			mesas.GET("/:id/conciliacion", middleware.RequireRole(cajero, admin), mesasH.Conciliacion)
			mesas.GET("/:id/sesiones", middleware.RequireRole(cajero, admin), mesasH.HistorialSesiones)
		}

		stock := v1.Group("/stock")
		{
			stock.GET("/productos/:id", stockH.StockGlobal)
			stock.GET("/sucursales/:id", stockH.SnapshotSucursal)
			stock.GET("/sucursales/:id/alertas", middleware.RequireRole(cajero, admin), stockH.Alertas)
			stock.GET("/movimientos", middleware.RequireRole(cajero, admin), stockH.ListarMovimientos)
			stock.POST("/compras", middleware.RequireRole(cajero, admin), stockH.RegistrarCompra)
			stock.POST("/ajustes", middleware.RequireRole(cajero, admin), stockH.AjustarStock)
			stock.POST("/transferencias", middleware.RequireRole(cajero, admin), stockH.Transferir)
			stock.PUT("/limites", middleware.RequireRole(cajero, admin), stockH.ConfigurarLimites)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
