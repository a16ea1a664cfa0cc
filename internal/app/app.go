// Package app holds the wiring shared by the api, worker and pmctl
// binaries.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projecthub/config"
	"projecthub/internal/repository"
	"projecthub/internal/service"
	"projecthub/internal/workflow"
	pkgconfig "projecthub/pkg/config"
	"projecthub/pkg/db"
	"projecthub/pkg/otel"
	"projecthub/pkg/outbox"
	redisclient "projecthub/pkg/redis"
	"projecthub/pkg/util"
)

type Repositories struct {
	Users         *repository.UserRepository
	Projects      *repository.ProjectRepository
	Phases        *repository.PhaseRepository
	Deliverables  *repository.DeliverableRepository
	Activities    *repository.ActivityRepository
	Notifications *repository.NotificationRepository
	Templates     *repository.TemplateRepository
	Outbox        *outbox.Repository
}

func NewRepositories(pool *pgxpool.Pool, logger *zap.Logger) *Repositories {
	return &Repositories{
		Users:         repository.NewUserRepository(pool, logger),
		Projects:      repository.NewProjectRepository(pool, logger),
		Phases:        repository.NewPhaseRepository(pool, logger),
		Deliverables:  repository.NewDeliverableRepository(pool, logger),
		Activities:    repository.NewActivityRepository(pool, logger),
		Notifications: repository.NewNotificationRepository(pool, logger),
		Templates:     repository.NewTemplateRepository(pool, logger),
		Outbox:        outbox.NewRepository(pool, logger),
	}
}

// Core is the engine plus the notification sink it writes through.
type Core struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Repos    *Repositories
	Notifier *service.NotificationService
	Engine   *workflow.Engine
}

// Open connects to Postgres and, when configured, Redis, and builds the
// engine. Without Redis the deadline sweep runs without a reminder gate.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Core, error) {
	pool, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, reminders will not be deduplicated", zap.Error(err))
			rdb = nil
		}
	}

	repos := NewRepositories(pool, logger)
	notifier := service.NewNotificationService(service.PoolTx(pool), repos.Notifications, repos.Outbox, logger)

	opts := []workflow.Option{workflow.WithDeadlineWindow(cfg.Workflow.DeadlineWindow)}
	if rdb != nil {
		opts = append(opts, workflow.WithReminderGate(util.NewDeduper(rdb, cfg.Workflow.ReminderTTL, logger)))
	}
	engine := workflow.NewEngine(workflow.Stores{
		Projects:     repos.Projects,
		Phases:       repos.Phases,
		Deliverables: repos.Deliverables,
		Activities:   repos.Activities,
	}, notifier, logger, opts...)

	return &Core{
		Pool:     pool,
		Redis:    rdb,
		Repos:    repos,
		Notifier: notifier,
		Engine:   engine,
	}, nil
}

func (c *Core) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	c.Pool.Close()
}

// InitTracing converts the config section and starts the exporter.
func InitTracing(cfg *config.Config, version string, logger *zap.Logger) (func(), error) {
	return otel.Init(otel.Config{
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
		SampleRatio:    cfg.OTel.SampleRatio,
	}, logger)
}

// LoadConfig uses the layered loader when CONFIG_DIR is set and config.yaml
// otherwise.
func LoadConfig(path string) (*config.Config, error) {
	if dir := pkgconfig.GetEnv("CONFIG_DIR", ""); dir != "" {
		return config.LoadLayered(pkgconfig.GetConfigEnv(), dir)
	}
	return config.Load(path)
}
