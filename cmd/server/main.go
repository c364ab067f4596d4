package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"byteshop/internal/audit"
	"byteshop/internal/auth"
	"byteshop/internal/cache"
	"byteshop/internal/config"
	"byteshop/internal/database"
	"byteshop/internal/invoice"
	"byteshop/internal/jobs"
	"byteshop/internal/logging"
	"byteshop/internal/middleware"
	"byteshop/internal/notify"
	"byteshop/internal/payment"
	"byteshop/internal/routes"
	"byteshop/internal/search"
	"byteshop/internal/services"
	"byteshop/internal/storage"
	"byteshop/internal/store"
	"byteshop/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conns, err := database.Connect(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("❌ database connection failed")
	}
	defer conns.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(conns.Postgres); err != nil {
			log.WithError(err).Fatal("❌ migrations failed")
		}
		log.Info("✅ migrations applied")
	}

	deps := routes.Dependencies{
		Log:         log,
		Production:  cfg.IsProduction(),
		Environment: cfg.Env,
		FrontendURL: cfg.FrontendURL,
	}
	authDeps := services.AuthDeps{}
	productDeps := services.ProductDeps{LowStockThreshold: cfg.LowStockThreshold}
	orderDeps := services.OrderDeps{}

	if conns.Scylla != nil {
		if err := audit.EnsureSchema(conns.Scylla); err != nil {
			log.WithError(err).Warn("⚠️ audit schema setup failed, audit log disabled")
		} else {
			auditLog := audit.NewScyllaLogger(conns.Scylla, log)
			defer auditLog.Close()
			deps.Audit, deps.AuditLog = auditLog, auditLog
			authDeps.Audit, productDeps.Audit, orderDeps.Audit = auditLog, auditLog, auditLog
		}
	}

	if conns.Redis != nil {
		rc := cache.New(conns.Redis, log)
		authDeps.Roles, authDeps.Revoked = rc, rc
		productDeps.Cache, orderDeps.Cache = rc, rc
		orderDeps.Events = rc
		deps.Events = rc
		deps.Limiter = middleware.NewRateLimiter(rc, log)
	}

	if conns.Elastic != nil {
		index := search.New(conns.Elastic, cfg.ElasticIndex)
		if err := index.EnsureIndex(ctx); err != nil {
			log.WithError(err).Warn("⚠️ search index setup failed, search falls back to SQL")
		} else {
			productDeps.Search = index
		}
	}

	if conns.MinIO != nil {
		productDeps.Images = storage.New(conns.MinIO, cfg.MinIOBucket, cfg.MinIOPublicURL)
	}

	if cfg.SMTPEnabled() {
		mailer, err := notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, log)
		if err != nil {
			log.WithError(err).Warn("⚠️ SMTP client setup failed, emails disabled")
		} else {
			orderDeps.Notifier = notify.NewEmailNotifier(mailer, cfg.CompanyName, cfg.FrontendURL, cfg.AdminEmail)
		}
	}

	if cfg.StripeEnabled() {
		gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.PaymentCurrency)
		orderDeps.Payments = gateway
		if cfg.StripeWebhookSecret != "" {
			deps.Webhooks = gateway
		}
		log.Info("✅ Stripe payments enabled")
	}

	renderer := invoice.NewRenderer(invoice.Company{Name: cfg.CompanyName, IBAN: cfg.CompanyIBAN, BIC: cfg.CompanyBIC})
	defer renderer.Close()
	orderDeps.Invoices = renderer

	if providers := auth.SetupOAuth(cfg); len(providers) > 0 {
		log.WithField("providers", providers).Info("✅ OAuth enabled")
	}

	st := store.NewPostgresStore(conns.Postgres)
	deps.DB = st
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())
	products := services.NewProductService(st, productDeps, log)

	deps.Auth = services.NewAuthService(st, tokens, authDeps, log)
	deps.Products = products
	deps.Cart = services.NewCartService(st, products, orderDeps.Events, log)
	deps.Orders = services.NewOrderService(st, orderDeps, log)

	scheduler := jobs.NewScheduler(products, orderDeps.Notifier, log)
	if err := scheduler.Register(cfg.LowStockCron, cfg.ReindexCron); err != nil {
		log.WithError(err).Fatal("❌ invalid job schedule")
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("🚀 ByteShop API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("❌ server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	scheduler.Stop(shutdownCtx)
}
