package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/analytics"
	"github.com/bookverse/storefront/internal/catalogclient"
	"github.com/bookverse/storefront/internal/domain/checkout"
	"github.com/bookverse/storefront/internal/httpapi"
	"github.com/bookverse/storefront/internal/paypal"
	"github.com/bookverse/storefront/internal/session"
	"github.com/bookverse/storefront/internal/storage"
	"github.com/bookverse/storefront/internal/storage/postgres"
	"github.com/bookverse/storefront/pkg/health"
	"github.com/bookverse/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Cart persistence: PostgreSQL when configured, local files otherwise.
	// Order archiving needs the database; without one orders are not kept.
	var (
		slot   storage.Slot
		orders checkout.Archiver
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})

		slot = postgres.NewSlotRepository(pool)
		orders = postgres.NewOrderRepository(pool, cfg.Catalog.CurrencyExponent)
	} else {
		fileSlot, err := storage.NewFileSlot(cfg.DataDir)
		if err != nil {
			return errors.Wrap(err, "create file slot")
		}
		slot = fileSlot
		lg.Info("No database configured, persisting carts to files",
			zap.String("dir", cfg.DataDir))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Analytics pipeline: Kafka sink when brokers are configured, with a
	// compressed on-disk spool for events that fail to publish.
	var sink analytics.Sink
	if len(cfg.Analytics.Brokers) > 0 {
		kafkaSink, err := analytics.NewKafkaSink(cfg.Analytics.Brokers, cfg.Analytics.Topic, lg)
		if err != nil {
			return errors.Wrap(err, "create kafka sink")
		}
		sink = kafkaSink
	}
	var spool *analytics.Spool
	if cfg.Analytics.SpoolDir != "" {
		sp, err := analytics.NewSpool(cfg.Analytics.SpoolDir)
		if err != nil {
			return errors.Wrap(err, "create analytics spool")
		}
		spool = sp
	}
	dispatcher := analytics.NewDispatcher(sink, spool, cfg.Analytics.Buffer, lg)
	dispatcher.Replay(ctx)

	// Sessions.
	sessions := session.NewManager(slot, dispatcher, cfg.Session.TTL, lg)
	sessions.StartEviction(ctx, cfg.Session.EvictionInterval)

	// Upstream clients.
	books := catalogclient.New(catalogclient.Config{
		BaseURL:          cfg.Catalog.BaseURL,
		ImageBaseURL:     cfg.Catalog.ImageBaseURL,
		CurrencyExponent: cfg.Catalog.CurrencyExponent,
	}, nil)
	gateway := paypal.New(paypal.Config{
		BaseURL:          cfg.PayPal.BaseURL,
		ClientID:         cfg.PayPal.ClientID,
		Secret:           cfg.PayPal.Secret,
		Currency:         cfg.Catalog.Currency,
		CurrencyExponent: cfg.Catalog.CurrencyExponent,
	}, nil)

	// HTTP surface: health endpoints + API routes on one server.
	h := httpapi.NewHandler(sessions, books, gateway, orders, dispatcher, lg)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-Session-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := dispatcher.Close(); err != nil {
			lg.Error("Analytics shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
