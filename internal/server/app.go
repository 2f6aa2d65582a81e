package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/evolearn/studyhub/internal/ai"
	"github.com/evolearn/studyhub/internal/auth"
	"github.com/evolearn/studyhub/internal/cache"
	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/config"
	"github.com/evolearn/studyhub/internal/events"
	"github.com/evolearn/studyhub/internal/extract"
	"github.com/evolearn/studyhub/internal/jobs"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/queue"
	"github.com/evolearn/studyhub/internal/service"
	"github.com/evolearn/studyhub/internal/share"
	"github.com/evolearn/studyhub/internal/storage"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/evolearn/studyhub/internal/summary"
	"github.com/evolearn/studyhub/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds every service of a running studyhub process.
type App struct {
	Config *config.Config
	Clock  clock.Clock

	DB    *gorm.DB
	Store *store.GormStore
	Redis *redis.Client
	Queue queue.JobQueue
	Paths *storage.Paths

	Locks       *lock.Manager
	Permissions *permission.Resolver
	Events      *events.Log
	Summaries   *summary.Service
	Shares      *share.Service
	Directories *service.DirectoryService
	Documents   *service.DocumentService
	Auth        auth.Authenticator
	Worker      *worker.Worker
}

// NewApp connects to the database, and to redis when configured, and wires
// the services on top.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := config.OpenDb(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Clock: clock.New(), DB: db, Store: store.NewGormStore(db)}
	if err = app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// wire builds the services over the app's store. Config, Clock and Store
// must be set.
func (a *App) wire(ctx context.Context) error {
	cfg, clk := a.Config, a.Clock
	if err := a.Store.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var activity cache.Activity
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = client
		a.Queue = queue.NewRedisJobQueue(client)
		activity = cache.NewRedisActivity(client)
	} else {
		logrus.Info("REDIS_ADDR not set, using in process job queue")
		a.Queue = queue.NewMemoryJobQueue(0)
		activity = cache.NewMemoryActivity()
	}

	a.Paths = storage.NewPaths(cfg.Storage.Root)
	blobs, err := newBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	a.Locks = lock.NewManager(a.Store, clk, lock.Options{
		TTL:           cfg.Lock.TTL,
		SweepInterval: cfg.Lock.SweepInterval,
	})
	a.Permissions = permission.NewResolver(a.Store)
	a.Events = events.NewLog(a.Store, a.Permissions, activity, clk)
	a.Summaries = summary.NewService(a.Store, a.Locks, a.Permissions, a.Queue, clk, summary.Options{
		DedupWindow:   cfg.Job.DedupWindow,
		ProcessingDir: cfg.Storage.ProcessingDir,
	})
	a.Shares = share.NewService(a.Store, a.Permissions, a.Events, clk)
	a.Directories = service.NewDirectoryService(a.Store, a.Permissions, a.Locks, a.Events, clk)
	a.Documents = service.NewDocumentService(a.Store, a.Permissions, a.Locks, a.Events, clk)

	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		a.Auth, err = auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, clk)
		if err != nil {
			return err
		}
	default:
		a.Auth = auth.NewTokenAuthenticator(a.Store, clk)
	}

	a.Worker = worker.New(
		a.Store,
		a.Locks,
		a.Paths,
		blobs,
		extract.New(),
		newSummarizer(cfg, clk),
		clk,
		worker.Config{
			Throttle:            cfg.Worker.Throttle,
			PollInterval:        cfg.Worker.PollInterval,
			MaxTextChars:        cfg.Worker.MaxTextChars,
			MaxRateLimitRetries: cfg.Worker.MaxRateLimitRetries,
			ProcessingDir:       cfg.Storage.ProcessingDir,
		},
	)

	return nil
}

func newBlobs(ctx context.Context, cfg *config.Config) (storage.Blobs, error) {
	if cfg.Storage.Backend != config.BlobBackendMinio {
		return storage.NewLocalBlobs(cfg.Storage.Root), nil
	}

	blobs, err := storage.NewMinioBlobs(ctx, storage.MinioConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	return blobs, nil
}

func newSummarizer(cfg *config.Config, clk clock.Clock) *ai.Summarizer {
	var gemini, anthropic ai.Generator
	if len(cfg.AI.GeminiAPIKeys) > 0 {
		gemini = ai.NewGeminiGenerator(ai.NewCredentialPool(cfg.AI.GeminiAPIKeys, cfg.AI.KeyCooldown, clk))
	} else {
		logrus.Warn("GEMINI_API_KEYS not set, gemini models are unavailable")
	}
	if cfg.AI.AnthropicAPIKey != "" {
		anthropic = ai.NewAnthropicGenerator(cfg.AI.AnthropicAPIKey)
	}
	return ai.NewSummarizer(gemini, anthropic, clk)
}

// Tasks are the scheduled jobs of the serve command. The summary worker is
// only scheduled when withWorker is set; otherwise it is expected to run in
// loop mode or in a separate process.
func (a *App) Tasks(withWorker bool) []jobs.CronJob {
	sweep := a.Config.Lock.SweepInterval
	if sweep <= 0 {
		sweep = lock.DefaultSweepInterval
	}

	tasks := []jobs.CronJob{
		jobs.NewStaleJobReaper(a.Store, a.Clock, jobs.ReaperOptions{
			ProcessingDir: a.Config.Storage.ProcessingDir,
			QuotaWait:     a.Config.Job.QuotaWait,
			StaleAfter:    a.Config.Job.StaleAfter,
			Schedule:      a.Config.Job.ReaperSchedule,
		}),
		jobs.NewLockSweepTask(a.Locks, "@every "+sweep.String()),
	}
	if withWorker {
		tasks = append(tasks, jobs.NewWorkerTask(a.Worker, a.Config.Worker.Schedule))
	}
	return tasks
}

func (a *App) Close() {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		logrus.Warnf("error closing app: %v", err)
	}
}
