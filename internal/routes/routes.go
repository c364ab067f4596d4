package routes

import (
	"time"

	"byteshop/internal/handlers"
	"byteshop/internal/handlers/admin"
	"byteshop/internal/handlers/order"
	"byteshop/internal/handlers/product"
	"byteshop/internal/handlers/user"
	"byteshop/internal/logging"
	"byteshop/internal/metrics"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Dependencies are the collaborators the router binds to. Optional ones may
// be nil: Events, AuditLog, Webhooks and Limiter.
type Dependencies struct {
	Log         logrus.FieldLogger
	Production  bool
	Environment string
	FrontendURL string

	DB       handlers.Pinger
	Auth     *services.AuthService
	Products *services.ProductService
	Cart     *services.CartService
	Orders   *services.OrderService

	Audit    middleware.AuditLogger
	AuditLog admin.AuditLister
	Events   user.Subscriber
	Webhooks order.WebhookVerifier
	Limiter  *middleware.RateLimiter
}

// corsConfig allows the storefront origin, or any origin when none is configured.
func corsConfig(frontendURL string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if frontendURL == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{frontendURL}
	}
	return cfg
}

func NewRouter(d Dependencies) *gin.Engine {
	if d.Audit == nil {
		d.Audit = services.Nop{}
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(d.Log, d.Production),
		middleware.RequestMeta(),
		logging.RequestLogger(d.Log),
		metrics.Middleware(),
		middleware.SecurityHeaders(),
		cors.New(corsConfig(d.FrontendURL)),
		middleware.ErrorHandler(d.Log, d.Production),
	)
	r.NoRoute(middleware.NotFound())

	r.GET("/health", handlers.NewHealthHandler(d.DB, d.Environment, d.Log).Check)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authenticate := middleware.Authenticate(d.Auth)
	requireAdmin := middleware.RequireAdmin()

	api := r.Group("/api", d.Limiter.API())

	authH := user.NewAuthHandler(d.Auth)
	authG := api.Group("/auth")
	{
		authG.POST("/register", d.Limiter.Register(), authH.Register)
		authG.POST("/login", d.Limiter.Login(), middleware.AuditFailures(d.Audit, models.ActionUserLogin, models.ResourceUser), authH.Login)
		authG.GET("/oauth/:provider", authH.BeginOAuth)
		authG.GET("/oauth/:provider/callback", authH.OAuthCallback)

		authG.POST("/logout", authenticate, authH.Logout)
		authG.GET("/me", authenticate, authH.Me)
		authG.PUT("/me", authenticate, authH.UpdateMe)
		authG.GET("/users", authenticate, requireAdmin, authH.ListUsers)
		authG.PATCH("/users/:id/promote", authenticate,
			middleware.AuditFailures(d.Audit, models.ActionUserPromote, models.ResourceUser),
			requireAdmin, authH.Promote)
	}

	productH := product.NewProductHandler(d.Products)
	productG := api.Group("/products")
	{
		productG.GET("", middleware.OptionalAuth(d.Auth), productH.List)
		productG.GET("/search", d.Limiter.Search(), productH.Search)
		productG.GET("/suggestions", d.Limiter.Search(), productH.Suggestions)

		productAdmin := productG.Group("", authenticate, requireAdmin)
		productAdmin.GET("/inventory/stats", productH.InventoryStats)
		productAdmin.GET("/inventory/low-stock", productH.LowStock)
		productAdmin.GET("/inventory/movements", productH.Movements)
		productAdmin.GET("/categories/summary", productH.CategorySummary)
		productAdmin.GET("/images/:category", productH.ListImages)
		productAdmin.POST("", productH.Create)
		productAdmin.PUT("/:id", productH.Update)
		productAdmin.DELETE("/:id", productH.Delete)
		productAdmin.POST("/:id/image", productH.UploadImage)
		productAdmin.PATCH("/:id/stock", productH.AdjustStock)

		productG.GET("/:id", middleware.OptionalAuth(d.Auth), productH.Get)
	}

	cartH := user.NewCartHandler(d.Cart)
	cartG := api.Group("/cart", authenticate)
	{
		cartG.GET("", cartH.Get)
		cartG.GET("/summary", cartH.Summary)
		cartG.POST("", d.Limiter.Cart(), cartH.Add)
		cartG.PUT("/:itemId", cartH.Update)
		cartG.DELETE("/:itemId", cartH.Remove)
		cartG.DELETE("", cartH.Clear)
	}

	orderH := order.NewOrderHandler(d.Orders)
	paymentH := order.NewPaymentHandler(d.Orders, d.Webhooks, d.Log)
	orderG := api.Group("/orders", authenticate)
	{
		orderG.POST("", orderH.Create)
		orderG.GET("", orderH.ListMine)

		orderAdmin := orderG.Group("", requireAdmin)
		orderAdmin.GET("/all", orderH.ListAll)
		orderAdmin.GET("/dashboard/sales", orderH.SalesDashboard)
		orderAdmin.GET("/dashboard/customers", orderH.CustomerHistory)
		orderAdmin.GET("/export", orderH.Export)

		orderG.PATCH("/:id/status",
			middleware.AuditFailures(d.Audit, models.ActionOrderStatus, models.ResourceOrder),
			requireAdmin, orderH.UpdateStatus)
		orderG.GET("/:id", orderH.Get)
		orderG.POST("/:id/payment", paymentH.CreateIntent)
		orderG.GET("/:id/invoice", paymentH.Invoice)
	}
	api.POST("/payments/webhook", paymentH.Webhook)

	adminH := admin.NewAdminHandler(d.AuditLog, d.Products)
	adminG := api.Group("/admin", authenticate, requireAdmin)
	{
		adminG.GET("/audit-logs", adminH.AuditLogs)
		adminG.POST("/search/reindex", adminH.Reindex)
	}

	if d.Events != nil {
		eventsH := user.NewEventsHandler(d.Events, d.FrontendURL, d.Log)
		api.GET("/events/ws", middleware.AuthenticateQuery(d.Auth), eventsH.Stream)
	}

	return r
}
