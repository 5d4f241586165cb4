package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GlebRadaev/casino-wallet/internal/config"
	"github.com/GlebRadaev/casino-wallet/internal/handlers"
	"github.com/GlebRadaev/casino-wallet/internal/notify"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/GlebRadaev/casino-wallet/internal/repo"
	"github.com/GlebRadaev/casino-wallet/internal/service"
	"github.com/GlebRadaev/casino-wallet/pkg/clients"
	"github.com/GlebRadaev/casino-wallet/pkg/logger"
	"github.com/GlebRadaev/casino-wallet/pkg/ratelimit"
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg  *config.Config
	api  *handlers.Handlers
	srv  *service.Services
	repo *repo.Repositories

	notifier  *notifier
	redis     *redis.Client
	scheduler *notify.Scheduler

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return err
	}

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	if err := pg.RunMigrations(pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run migrations: %w", err)
	}
	txManager := pg.NewTXManager(pool)

	conn := pg.New(pool)
	a.cfg = cfg
	a.notifier = newNotifier(cfg, clients.NewHTTPClient())
	a.repo = repo.New(conn)
	a.srv, err = service.New(a.repo, txManager, cfg, a.notifier.dispatcher)
	if err != nil {
		return fmt.Errorf("can't build services: %w", err)
	}

	var limiter ratelimit.Consumer
	a.redis, limiter = getLimiter(ctx, cfg)
	a.api = handlers.New(a.srv, limiter, cfg.RateLimitPerMinute)

	if a.notifier.telegram != nil {
		digest := notify.NewDigest(a.srv.AdminService, a.notifier.telegram)
		a.scheduler, err = notify.NewScheduler(cfg.DigestSchedule, digest)
		if err != nil {
			return fmt.Errorf("can't build digest scheduler: %w", err)
		}
		a.scheduler.Start()
	}

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		a.shutdown()
		pool.Close()
	}()

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		return nil, err
	}
	return dbpool, nil
}

// getLimiter returns a nil consumer when Redis is not configured or not
// reachable; the wallet endpoints then run without rate limiting.
func getLimiter(ctx context.Context, cfg *config.Config) (*redis.Client, ratelimit.Consumer) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("redis unavailable, rate limiting disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return nil, nil
	}
	return client, ratelimit.NewRedisLimiter(client, ratelimit.DefaultPrefix)
}

type notifier struct {
	workers    *notify.WorkerPool
	publisher  notify.Publisher
	telegram   *notify.TelegramSink
	dispatcher *notify.Dispatcher
}

func newNotifier(cfg *config.Config, client clients.HTTPClientI) *notifier {
	n := &notifier{
		workers:   notify.NewWorkerPool(cfg.NotifyWorkers, cfg.NotifyQueue),
		publisher: notify.NewPublisher(cfg.AMQPURL),
	}
	sinks := []notify.Sink{notify.NewAMQPSink(n.publisher, cfg.EventsExchange)}
	if cfg.TelegramEnabled() {
		n.telegram = notify.NewTelegramSink(client, cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramOperatorChat)
		sinks = append(sinks, n.telegram)
	} else {
		zap.L().Info("telegram notifications disabled")
	}
	n.dispatcher = notify.NewDispatcher(n.workers, 0, sinks...)
	return n
}

// close drains queued notifications before the publisher goes away.
func (n *notifier) close() {
	n.workers.Close()
	n.publisher.Close()
}

func (a *Application) shutdown() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.notifier != nil {
		a.notifier.close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			zap.L().Warn("redis close failed", zap.Error(err))
		}
	}
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:    a.cfg.Address,
		Handler: router,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(sCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	return appErr
}
