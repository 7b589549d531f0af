package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"trailgate/internal/api"
	"trailgate/internal/config"
	"trailgate/internal/domain/ratelimit"
	authinfra "trailgate/internal/infra/auth"
	metricsinfra "trailgate/internal/infra/metrics"
	ratelimitinfra "trailgate/internal/infra/ratelimit"
	redisinfra "trailgate/internal/infra/redis"
	"trailgate/internal/infra/redislock"
	"trailgate/internal/repository"
	"trailgate/internal/service"
	"trailgate/pkg/nethttp/runner"
)

const (
	startupPingTimeout = 3 * time.Second
	retentionInterval  = time.Hour
	retentionLockKey   = "trailgate:lock:violation-retention"
	retentionLockTTL   = 5 * time.Minute
)

type Application struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metricsinfra.Metrics
	router  *api.Router

	presets    ratelimit.Table
	memory     *ratelimitinfra.Memory
	limiter    ratelimit.Limiter
	redis      *redisinfra.Client
	locker     *redislock.Locker
	db         *sqlx.DB
	violations *repository.ViolationRepository
	limits     *service.LimitService

	errChan chan error
	wg      sync.WaitGroup
	ready   bool
}

func New() *Application {
	return &Application{errChan: make(chan error)}
}

func (a *Application) Ready() bool {
	return a.ready
}

func (a *Application) Start(ctx context.Context, build string) error {
	if err := a.initCoreComponents(); err != nil {
		return fmt.Errorf("initCoreComponents(): %w", err)
	}

	if err := a.initStorage(ctx); err != nil {
		return fmt.Errorf("initStorage(): %w", err)
	}

	a.initLimiter()
	a.startBackgroundJobs(ctx)

	if err := a.initPublicRouter(ctx); err != nil {
		return fmt.Errorf("initPublicRouter(): %w", err)
	}

	a.logger.Info("application started",
		slog.String("build", build),
		slog.Bool("redis", a.redis != nil),
		slog.Bool("mysql", a.db != nil),
	)
	a.ready = true
	return nil
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	errWg := sync.WaitGroup{}
	errWg.Add(1)

	go func() {
		defer errWg.Done()
		for err := range a.errChan {
			cancel()
			if err != nil {
				a.logger.Error("error in Wait", slog.String("error", err.Error()))
				appErr = err
			}
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errChan)
	errWg.Wait()

	a.closeStorage()
	return appErr
}

func (a *Application) initCoreComponents() error {
	if err := a.initConfig(); err != nil {
		return fmt.Errorf("initConfig(): %w", err)
	}

	a.initLogger()
	a.metrics = metricsinfra.New()

	presets, err := a.cfg.RateLimit.PresetTable()
	if err != nil {
		return fmt.Errorf("preset table: %w", err)
	}
	a.presets = presets
	return nil
}

func (a *Application) initConfig() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *Application) initLogger() {
	a.logger = NewLogger(a.cfg.Log.LevelStr)
}

func (a *Application) initStorage(ctx context.Context) error {
	if a.cfg.Redis.Enabled {
		a.redis = redisinfra.New(a.cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
		if !a.redis.Ping(pingCtx, a.logger) {
			a.logger.Warn("redis unreachable at startup, limiter serves from memory until it recovers")
		}
		cancel()
		a.locker = redislock.New(a.redis.Redis, a.logger, a.metrics)
	}

	if a.cfg.MySQL.Enabled {
		dbCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
		db, err := repository.NewMySQL(dbCtx, a.cfg.MySQL)
		cancel()
		if err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		a.db = db
		a.violations = repository.NewViolationRepository(db)
	}
	return nil
}

func (a *Application) initLimiter() {
	a.memory = ratelimitinfra.NewMemory(nil)
	a.limiter = a.memory
	if a.redis != nil {
		a.limiter = ratelimitinfra.NewRedis(a.redis.Redis, a.cfg.Redis.Prefix, a.cfg.RateLimit.Breaker, a.memory, a.logger, a.metrics)
	}

	var store service.ViolationStore
	if a.violations != nil {
		store = a.violations
	}
	a.limits = service.NewLimitService(a.limiter, a.presets, store, a.cfg.MySQL.WriteTimeout, a.logger, a.metrics)
	a.limits.SetCustomCeiling(a.cfg.RateLimit.MaxCustomWindow)
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	maxWindow := max(config.MaxWindow(a.presets), a.limits.CustomCeiling())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.memory.Run(ctx, a.cfg.RateLimit.SweepInterval, maxWindow, a.logger, a.metrics.SetTrackedKeys)
	}()

	if a.violations == nil || a.cfg.RateLimit.ViolationRetention <= 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pruneViolations(ctx, retentionInterval, a.cfg.RateLimit.ViolationRetention)
	}()
}

// pruneViolations deletes audit rows older than retention. With Redis
// configured only the replica holding the retention lease prunes.
func (a *Application) pruneViolations(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prune := func(ctx context.Context) error {
		n, err := a.violations.DeleteBefore(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			a.logger.Info("violations pruned", "deleted", n)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var err error
			if a.locker != nil {
				var ran bool
				ran, err = a.locker.Do(ctx, retentionLockKey, retentionLockTTL, prune)
				if !ran && err == nil {
					a.logger.Debug("violation retention held by another replica")
				}
			} else {
				err = prune(ctx)
			}
			if err != nil {
				a.logger.Warn("violation retention failed", "err", err)
			}
		}
	}
}

func (a *Application) initPublicRouter(ctx context.Context) error {
	tokens, err := authinfra.NewTokens(a.cfg.JWT)
	if err != nil {
		return fmt.Errorf("admin tokens: %w", err)
	}

	a.router, err = api.New(a.cfg, a.logger, a.metrics, a.limits, tokens)
	if err != nil {
		return err
	}

	opts := runner.Options{
		Addr:            a.cfg.HTTP.Addr,
		ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
		Logger:          a.logger,
	}
	return runner.Run(ctx, a.router.Server, opts, a.errChan, &a.wg)
}

func (a *Application) closeStorage() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "err", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("mysql close failed", "err", err)
		}
	}
}
