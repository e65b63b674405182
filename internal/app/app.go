package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/config"
	"github.com/Freeeeeet/appointment_service/internal/controller"
	"github.com/Freeeeeet/appointment_service/internal/directory"
	"github.com/Freeeeeet/appointment_service/internal/lock"
	"github.com/Freeeeeet/appointment_service/internal/metrics"
	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/notify"
	"github.com/Freeeeeet/appointment_service/internal/repository"
	"github.com/Freeeeeet/appointment_service/internal/repository/memory"
	"github.com/Freeeeeet/appointment_service/internal/service"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// App собранный сервис: хранилище, блокировки, уведомления и HTTP сервер
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      redis.UniversalClient
	dispatcher *notify.Dispatcher
	server     *http.Server
}

// New создаёт все зависимости по конфигу
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	buckets, err := model.NewBucketPolicy(loc, model.BucketMode(cfg.BucketMode))
	if err != nil {
		return nil, err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	notifier, err := a.newNotifier(ctx, loc, bookingMetrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	agenda := service.NewAgendaService(store, locker, buckets, bookingMetrics, logger)
	booking := service.NewBookingService(store, agenda, locker, buckets, notifier, bookingMetrics, logger)

	router := controller.NewRouter(controller.RouterConfig{
		Handler:   controller.NewHandler(agenda, booking, logger),
		JWTSecret: cfg.JWTSecret,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:    logger,
	})

	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Application initialized",
		zap.String("storage", cfg.Storage),
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("notifier", cfg.Notifier),
		zap.String("timezone", loc.String()),
		zap.String("bucket_mode", cfg.BucketMode))

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.Storage == "memory" {
		a.logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(), nil
	}

	pool, err := pgxpool.New(ctx, a.cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	a.pool = pool

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := NewMigrator(pool, a.cfg.MigrationsDir, a.logger)
	if err != nil {
		return nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		return nil, err
	}

	return repository.NewPostgresStore(pool), nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.LockBackend != "redis" {
		return lock.NewLocal(a.cfg.LockWait), nil
	}

	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	a.redis = client

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return lock.NewRedis(client, a.cfg.LockTTL, a.cfg.LockWait, a.logger), nil
}

func (a *App) newSender(ctx context.Context) (notify.Sender, error) {
	switch a.cfg.Notifier {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), a.cfg.EmailFrom, a.logger), nil
	case "sendgrid":
		return notify.NewSendGridSender(a.cfg.SendGridAPIKey, a.cfg.EmailFrom, "Agendamento", a.logger), nil
	case "telegram":
		sender, err := notify.NewTelegramSender(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.logger)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return notify.NewStubSender(a.logger), nil
	}
}

// newNotifier возвращает nil, если справочник врачей не настроен
func (a *App) newNotifier(ctx context.Context, loc *time.Location, m *metrics.BookingMetrics) (*service.BookingNotifier, error) {
	if a.cfg.DirectoryBaseURL == "" {
		a.logger.Warn("DIRECTORY_BASE_URL is not set, booking notifications are disabled")
		return nil, nil
	}

	sender, err := a.newSender(ctx)
	if err != nil {
		return nil, err
	}

	a.dispatcher = notify.NewDispatcher(a.cfg.NotifyWorkers, a.cfg.NotifyQueue, 2*a.cfg.DirectoryTimeout, a.logger)
	a.dispatcher.OnResult(func(name string, err error) {
		m.ObserveNotification(err)
	})

	doctors := directory.NewClient(a.cfg.DirectoryBaseURL, a.cfg.DirectoryTimeout)
	return service.NewBookingNotifier(doctors, sender, a.dispatcher, loc, a.logger), nil
}

// Run обслуживает HTTP до отмены ctx, затем мягко останавливается
func (a *App) Run(ctx context.Context) error {
	if a.dispatcher != nil {
		a.dispatcher.Start(context.WithoutCancel(ctx))
		defer a.dispatcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	a.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close освобождает соединения с базой и redis
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
