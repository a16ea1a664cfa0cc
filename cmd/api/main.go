package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"projecthub/internal/api"
	"projecthub/internal/app"
	"projecthub/internal/service"
	"projecthub/migrations"
	"projecthub/pkg/logger"
	"projecthub/pkg/outbox"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	migrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	shutdownTracing, err := app.InitTracing(cfg, version, log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer shutdownTracing()
	}

	ctx := context.Background()
	core, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer core.Close()

	if *migrate {
		n, err := migrations.Apply(ctx, core.Pool, log)
		if err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Migrations applied", zap.Int("count", n))
	}

	repos := core.Repos
	tx := service.PoolTx(core.Pool)

	authService := service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.TTL, log)
	templateService := service.NewTemplateService(repos.Templates, log)
	projectService := service.NewProjectService(tx, repos.Projects, repos.Phases, repos.Deliverables, repos.Templates, repos.Activities, log)
	deliverableService := service.NewDeliverableService(repos.Deliverables, repos.Phases, core.Engine, log)
	agent := service.NewAgentClient(cfg.Agent.URL, cfg.Agent.Timeout, log)
	generationService := service.NewGenerationService(repos.Deliverables, repos.Phases, repos.Projects, agent, core.Engine, core.Notifier, log)

	router := api.NewRouter(api.Handlers{
		Auth:          api.NewAuthHandler(authService, log),
		Projects:      api.NewProjectHandler(projectService, core.Engine, log),
		Phases:        api.NewPhaseHandler(core.Engine, projectService, deliverableService, log),
		Deliverables:  api.NewDeliverableHandler(deliverableService, generationService, log),
		Templates:     api.NewTemplateHandler(templateService, log),
		Notifications: api.NewNotificationHandler(core.Notifier, log),
		Admin:         api.NewAdminHandler(outbox.NewReplayService(repos.Outbox, log), log),
	}, cfg.JWT.Secret, core.Pool.Ping, log)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server started", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API server")

	// generation calls may hold a request open for the agent timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second+cfg.Agent.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("API server exited")
}
