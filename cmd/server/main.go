package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/burgerbuilder/internal"
	"github.com/dukerupert/burgerbuilder/internal/contactform"
	"github.com/dukerupert/burgerbuilder/internal/cookie"
	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/email"
	"github.com/dukerupert/burgerbuilder/internal/events"
	"github.com/dukerupert/burgerbuilder/internal/handler"
	"github.com/dukerupert/burgerbuilder/internal/handler/storefront"
	"github.com/dukerupert/burgerbuilder/internal/memstore"
	"github.com/dukerupert/burgerbuilder/internal/middleware"
	"github.com/dukerupert/burgerbuilder/internal/postgres"
	"github.com/dukerupert/burgerbuilder/internal/router"
	"github.com/dukerupert/burgerbuilder/internal/routes"
	"github.com/dukerupert/burgerbuilder/internal/service"
	"github.com/dukerupert/burgerbuilder/internal/session"
	"github.com/dukerupert/burgerbuilder/internal/shipping"
	"github.com/dukerupert/burgerbuilder/internal/telemetry"
	"github.com/dukerupert/burgerbuilder/internal/worker"
	"github.com/dukerupert/burgerbuilder/web"
)

const metricsNamespace = "burgerbuilder"

// eventPublisher is an order event publisher that holds a connection.
type eventPublisher interface {
	domain.OrderEventPublisher
	Close()
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	telemetry.InitBusinessMetrics(metricsNamespace)

	// ==========================================================================
	// Storage
	// ==========================================================================

	orders, closeStorage, err := openOrderRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	publisher, err := openEventPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	orderEvents, err := withOrderMail(publisher, cfg, logger)
	if err != nil {
		return err
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	shippingProvider := shipping.NewFlatRateProvider(shipping.DefaultRates())
	orderService := service.NewOrderService(orders, orderEvents, shippingProvider, logger)

	options, err := deliveryOptions(ctx, shippingProvider)
	if err != nil {
		return fmt.Errorf("failed to load delivery options: %w", err)
	}

	store := session.NewStore(nil,
		session.WithTTL(cfg.Session.TTL),
		session.WithFormOptions(contactform.WithDeliveryOptions(options)),
		session.WithLogger(logger),
	)

	orderWorker := worker.NewWorker(orderService, store, worker.Config{
		MaxConcurrency: cfg.Worker.Concurrency,
		QueueSize:      cfg.Worker.QueueSize,
		JobTimeout:     cfg.Worker.JobTimeout,
	}, logger)
	store.SetDispatcher(orderWorker)

	// Load templates with renderer
	logger.Info("Loading templates...")
	renderer, err := handler.NewRenderer(web.Templates(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}
	logger.Info("Templates loaded successfully")

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	metrics := middleware.NewMetrics(metricsNamespace)

	// Configure security headers
	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0 // Disable HSTS in development
	}

	cookieConfig := cookie.NewConfig("", cfg.Session.CookieSecure)

	// Configure CSRF protection
	csrfConfig := middleware.DefaultCSRFConfig(cookieConfig)

	// Configure rate limiting
	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()
	submitRateLimiter := middleware.NewRateLimiter(middleware.SubmitRateLimiterConfig())
	defer submitRateLimiter.Stop()

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		telemetry.SentryMiddleware(),
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(64*middleware.KB),
		middleware.Timeout(middleware.DefaultTimeout),
		defaultRateLimiter.Middleware,
		router.Logger(logger),
	)

	// Static files
	r.StaticFS("/static/", web.Static())

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Metrics: promhttp.Handler(),
		Health: func(w http.ResponseWriter, req *http.Request) {
			handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"status":   "ok",
				"sessions": store.Len(),
			})
		},
	})

	shop := r.Group(
		middleware.Session(middleware.SessionConfig{
			Store:        store,
			CookieConfig: cookieConfig,
			CookieName:   cfg.Session.CookieName,
			TTL:          cfg.Session.TTL,
		}),
		middleware.WithRequestLogger(logger),
		telemetry.SentryContextMiddleware(func(ctx context.Context) string {
			if id := domain.SessionIDFromContext(ctx); id != uuid.Nil {
				return id.String()
			}
			return ""
		}),
		middleware.CSRF(csrfConfig),
	)

	routes.RegisterStorefrontRoutes(shop, routes.StorefrontDeps{
		BuilderHandler:  storefront.NewBuilderHandler(renderer),
		CheckoutHandler: storefront.NewCheckoutHandler(renderer),
		OrderHandler:    storefront.NewOrderHandler(orderService, renderer),
		// Order submission gets the stricter limit on top of the default one
		SubmitMiddleware: []router.Middleware{submitRateLimiter.Middleware},
	})

	// ==========================================================================
	// Start background work and server
	// ==========================================================================

	var wg sync.WaitGroup
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := orderWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("order worker stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		store.RunJanitor(workerCtx, cfg.Session.SweepInterval)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Let in-flight orders finish before storage closes
	stopWorker()
	wg.Wait()
	logger.Info("Shutdown complete")

	return nil
}

// openOrderRepository selects PostgreSQL when DATABASE_URL is set and the
// in-memory repository otherwise.
func openOrderRepository(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (domain.OrderRepository, func(), error) {
	if cfg.DatabaseUrl == "" {
		logger.Warn("DATABASE_URL not set, orders are kept in memory")
		return memstore.NewOrderRepository(), func() {}, nil
	}

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(ctx, sqlDB, logger); err != nil {
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return postgres.NewOrderRepository(pool), pool.Close, nil
}

// openEventPublisher connects to NATS when NATS_URL is set. Without it
// order events are dropped.
func openEventPublisher(cfg *internal.Config, logger *slog.Logger) (eventPublisher, error) {
	if cfg.NATS.URL == "" {
		logger.Info("NATS_URL not set, order events are not published")
		return events.NopPublisher{}, nil
	}

	pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// withOrderMail adds confirmation mail to the order events when SMTP_HOST
// is set.
func withOrderMail(publisher domain.OrderEventPublisher, cfg *internal.Config, logger *slog.Logger) (domain.OrderEventPublisher, error) {
	if cfg.Mail.SMTPHost == "" {
		logger.Info("SMTP_HOST not set, order confirmations are not mailed")
		return publisher, nil
	}

	sender, err := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.SMTPUsername,
		Password: cfg.Mail.SMTPPassword,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	}, logger)
	if err != nil {
		return nil, err
	}
	mailer, err := email.NewOrderMailer(sender)
	if err != nil {
		return nil, err
	}

	logger.Info("order confirmations enabled", "smtp_host", cfg.Mail.SMTPHost, "smtp_port", cfg.Mail.SMTPPort)
	return events.Fanout{publisher, mailer}, nil
}

// deliveryOptions turns the provider's delivery methods into select options
// for the contact form.
func deliveryOptions(ctx context.Context, p shipping.Provider) ([]contactform.SelectOption, error) {
	rates, err := p.GetRates(ctx, shipping.RateParams{})
	if err != nil {
		return nil, err
	}

	options := make([]contactform.SelectOption, 0, len(rates))
	for _, rate := range rates {
		options = append(options, contactform.SelectOption{
			Value:        rate.ServiceCode,
			DisplayValue: rate.ServiceName,
		})
	}
	return options, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
