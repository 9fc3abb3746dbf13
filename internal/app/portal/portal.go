package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/worksmart-portal/internal/cache"
	"github.com/magabrotheeeer/worksmart-portal/internal/config"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/metrics"
	"github.com/magabrotheeeer/worksmart-portal/internal/migrations"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/worksmart-portal/internal/reconcile"
	checkoutservice "github.com/magabrotheeeer/worksmart-portal/internal/services/checkout"
	"github.com/magabrotheeeer/worksmart-portal/internal/services/entitlement"
	"github.com/magabrotheeeer/worksmart-portal/internal/storage"
)

const (
	shutdownTimeout = 15 * time.Second
	providerTimeout = 30 * time.Second
)

// App HTTP-сервер портала и его ресурсы.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *storage.Storage
	serviceDB *storage.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	ch        *amqp.Channel
}

// New подключает хранилища, кэш и брокер и собирает маршруты.
// Redis и RabbitMQ необязательны: без адреса кэш и публикация событий отключаются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "portal.New"
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("%s: %w: auth jwt secret is not set", op, models.ErrConfigurationMissing)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	app := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	var err error
	app.serviceDB, err = storage.New(cfg.ServiceStorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(app.serviceDB.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err = storage.CheckDatabaseReady(app.serviceDB); err != nil {
		return nil, err
	}
	app.db, err = storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}

	healthChecks := map[string]health.Pinger{"postgres": app.db}

	var entCache entitlement.Cache
	if cfg.AddressRedis != "" {
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		entCache = app.cache
		healthChecks["redis"] = app.cache
	}

	var publisher entitlement.EventPublisher
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, err
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.EntitlementsExchange, rabbitmq.GetCRMQueues())
		if err != nil {
			return nil, err
		}
		publisher = rabbitmq.NewPublisher(app.ch, rabbitmq.EntitlementsExchange)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	provider := paymentprovider.NewClient(cfg.Stripe, &http.Client{Timeout: providerTimeout})
	checkoutService := checkoutservice.New(provider, m, logger)
	writer := entitlement.NewWriter(app.serviceDB, entCache, publisher, m, logger)
	reader := entitlement.NewReader(app.db, entCache, cfg.EntitlementsTTL, logger)
	poller := reconcile.New(reader, cfg.Grace, m, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Dependencies{
		Tokens:        jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		Checkout:      checkoutService,
		Writer:        writer,
		Entitlements:  reader,
		Reconciler:    poller,
		WebhookSecret: cfg.WebhookSecret,
		Metrics:       m,
		HealthChecks:  healthChecks,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if cfg.TimeoutHTTP > 0 && cfg.TimeoutHTTP <= poller.Grace {
		logger.Warn("http timeout is shorter than reconcile grace, checkout return may time out",
			slog.Duration("timeout", cfg.TimeoutHTTP), slog.Duration("grace", poller.Grace))
	}

	ok = true
	return app, nil
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	for _, db := range []*storage.Storage{a.db, a.serviceDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}
