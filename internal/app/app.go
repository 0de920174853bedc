package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/customer"
	"github.com/xenking/warung-pos/internal/domain/menu"
	"github.com/xenking/warung-pos/internal/domain/order"
	"github.com/xenking/warung-pos/internal/domain/report"
	"github.com/xenking/warung-pos/internal/domain/staff"
	"github.com/xenking/warung-pos/internal/events"
	"github.com/xenking/warung-pos/internal/handler"
	"github.com/xenking/warung-pos/internal/qris"
	"github.com/xenking/warung-pos/internal/storage/postgres"
	"github.com/xenking/warung-pos/internal/storage/redis"
	"github.com/xenking/warung-pos/pkg/health"
	"github.com/xenking/warung-pos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) (rerr error) {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return errors.Wrap(err, "load timezone")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Order events: the in-process hub feeds websocket watchers, brokers are optional.
	hub := events.NewHub()
	publishers := events.Multi{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		k := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { multierr.AppendInto(&rerr, k.Close()) }()
		publishers = append(publishers, k)
		lg.Info("Publishing order events to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	if cfg.AMQP.URL != "" {
		a, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return errors.Wrap(err, "dial amqp")
		}
		defer func() { multierr.AppendInto(&rerr, a.Close()) }()
		publishers = append(publishers, a)
		lg.Info("Publishing order events to AMQP", zap.String("exchange", cfg.AMQP.Exchange))
	}

	orderOpts := []order.Option{
		order.WithPublisher(publishers),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { multierr.AppendInto(&rerr, rdb.Close()) }()

		idem := redis.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(idem))
		orderOpts = append(orderOpts, order.WithIdempotency(idem))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	menuRepo := postgres.NewMenuRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	cancellationRepo := postgres.NewCancellationRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// Domain services.
	menuService := menu.NewService(menuRepo)
	orderService := order.NewService(menuRepo, customer.NewResolver(customerRepo), orderRepo, orderOpts...)
	reportService := report.NewService(reportRepo, loc)
	ledger := cancellation.NewLedger(cancellationRepo)
	staffService := staff.NewService(userRepo, []byte(cfg.APIKeyPepper))
	authenticator := auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			Merchant: qris.Merchant{
				Name:       cfg.Merchant.Name,
				City:       cfg.Merchant.City,
				ID:         cfg.Merchant.ID,
				Category:   cfg.Merchant.Category,
				PostalCode: cfg.Merchant.PostalCode,
			},
			Location: loc,
			QRSize:   cfg.QRSize,
		},
		menuService,
		orderService,
		reportService,
		ledger,
		staffService,
		authenticator,
		hub,
	)

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})
	go limiter.Run(ctx)

	// Mux: health endpoints + API routes on one server.
	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			cors.New(cors.Options{
				AllowedOrigins:   cfg.CORS.Origins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
				AllowedHeaders:   []string{"Content-Type", handler.HeaderAPIKey, handler.HeaderIdempotencyKey, httpmiddleware.HeaderRequestID},
				ExposedHeaders:   []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}).Handler,
			limiter.Middleware(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("pos-api", m),
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
