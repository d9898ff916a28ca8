package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/questboard-api/internal/config"
	"github.com/phrazzld/questboard-api/internal/job"
	"github.com/phrazzld/questboard-api/internal/platform/cache"
	"github.com/phrazzld/questboard-api/internal/platform/postgres"
	"github.com/phrazzld/questboard-api/internal/platform/scorer"
	"github.com/phrazzld/questboard-api/internal/service"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/service/auth"
	"github.com/phrazzld/questboard-api/internal/service/calibration"
	"github.com/phrazzld/questboard-api/internal/service/completion"
	"github.com/phrazzld/questboard-api/internal/service/recommendation"
	"github.com/phrazzld/questboard-api/internal/store"
)

// storeSet is every persistence dependency the services need.
type storeSet struct {
	tx          store.Transactor
	tasks       store.TaskStore
	users       store.UserStore
	completions store.CompletionStore
	invites     store.InviteStore
}

// serviceSet is the wired service layer.
type serviceSet struct {
	jwt        auth.JWTService
	users      service.UserService
	tasks      service.TaskService
	boards     service.BoardService
	invites    service.InviteService
	manager    assignment.Manager
	processor  completion.Processor
	calibrator calibration.Calibrator
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	stores   storeSet
	services serviceSet

	// nil when caching is disabled or Redis was unreachable at startup
	rankingCache *cache.RankingCache
}

// newApplication creates a new application instance with all dependencies
// initialized on top of an open database.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		stores: storeSet{
			tx: postgres.NewTransactor(db, store.TxOptions{
				AcquireTimeout: cfg.Database.AcquireTimeout,
				Isolation:      sql.LevelReadCommitted,
			}, logger),
			tasks:       postgres.NewPostgresTaskStore(db, logger),
			users:       postgres.NewPostgresUserStore(db, logger),
			completions: postgres.NewPostgresCompletionStore(db, logger),
			invites:     postgres.NewPostgresInviteStore(db, logger),
		},
	}

	var ranker recommendation.Ranker
	if cfg.Scorer.URL != "" {
		ranker = scorer.NewClient(cfg.Scorer.URL, scorer.WithTimeout(cfg.Scorer.Timeout))
		logger.Info("recommendation scorer configured", slog.Duration("timeout", cfg.Scorer.Timeout))
	}

	var rankingCache recommendation.Cache
	if cfg.Cache.RedisAddr != "" && ranker != nil {
		c, err := cache.Connect(ctx, cache.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			logger.Warn("ranking cache unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			app.rankingCache = c
			rankingCache = c
			logger.Info("ranking cache connected", slog.Duration("ttl", cfg.Cache.TTL))
		}
	}

	services, err := wireServices(cfg, app.stores, ranker, rankingCache, logger)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.services = services

	logger.Info("application initialized")
	return app, nil
}

// wireServices builds the service layer over the given stores. A nil ranker
// disables recommendations and a nil cache disables ranking caching.
func wireServices(
	cfg *config.Config,
	stores storeSet,
	ranker recommendation.Ranker,
	rankingCache recommendation.Cache,
	logger *slog.Logger,
) (serviceSet, error) {
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return serviceSet{}, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	calibrator := calibration.NewCalibrator(stores.tx, logger)
	recommender := recommendation.NewService(ranker, rankingCache, stores.completions, logger)

	return serviceSet{
		jwt:        jwtService,
		users:      service.NewUserService(stores.tx, stores.users, auth.NewBcryptHasher(cfg.Auth.BCryptCost), logger),
		tasks:      service.NewTaskService(stores.tasks, stores.users, logger),
		boards:     service.NewBoardService(stores.tasks, stores.users, stores.completions, recommender, logger),
		invites:    service.NewInviteService(stores.invites, stores.users, logger),
		manager:    assignment.NewManager(stores.tx, logger),
		processor:  completion.NewProcessor(stores.tx, calibrator, logger),
		calibrator: calibrator,
	}, nil
}

// Run serves HTTP and runs the scheduled calibration sweep until ctx is
// cancelled.
func (app *application) Run(ctx context.Context) error {
	scheduler := job.NewScheduler(app.logger)
	sweep := job.NewCalibrationSweep(
		app.stores.completions,
		app.services.calibrator,
		app.config.Calibration.SweepConcurrency,
		app.logger,
	)
	if err := scheduler.Schedule(app.config.Calibration.SweepSchedule, "calibration_sweep", sweep.RunScheduled); err != nil {
		return fmt.Errorf("failed to schedule calibration sweep: %w", err)
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			app.logger.Warn("calibration sweep did not stop in time", slog.String("error", err.Error()))
		}
	}()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// ready reports whether the backing services answer. The ranking cache is
// optional and only degrades readiness in the logs.
func (app *application) ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if app.db != nil {
		if err := app.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if app.rankingCache != nil {
		if err := app.rankingCache.Ping(ctx); err != nil {
			app.logger.Warn("ranking cache ping failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// cleanup releases resources owned by the application. The database is
// owned by the caller.
func (app *application) cleanup() {
	if app.rankingCache != nil {
		if err := app.rankingCache.Close(); err != nil {
			app.logger.Error("error closing ranking cache", slog.String("error", err.Error()))
		}
		app.rankingCache = nil
	}
	app.logger.Info("application shutdown completed")
}
