package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mqcontracts "projecthub/contracts/mq"
	"projecthub/internal/app"
	"projecthub/internal/mqhandler"
	"projecthub/internal/service"
	"projecthub/pkg/logger"
	"projecthub/pkg/mq"
	"projecthub/pkg/outbox"
	"projecthub/pkg/util"
)

const notificationQueue = "notification.created.q"

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	healthAddr := flag.String("health-addr", ":8081", "address for /healthz and /metrics")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer core.Close()
	if core.Redis == nil {
		log.Fatal("Worker requires Redis for event deduplication")
	}

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := outbox.NewDispatcher(core.Repos.Outbox, publisher, log).
		WithMaxRetries(8).
		WithInterval(time.Second).
		WithBatchSize(100)

	handler := mqhandler.NewNotificationCreatedHandler(
		core.Repos.Notifications,
		service.NewNotificationSender(core.Repos.Users, log),
		util.NewDeduper(core.Redis, 24*time.Hour, log),
		util.NewRetryCounter(core.Redis, time.Hour),
		log,
	)

	consumer, err := mq.NewConsumer(cfg.MQ.URL, notificationQueue, mqcontracts.RoutingKeyNotificationCreated, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(handler.Handle)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !consumer.IsConnected() || !publisher.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("mq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: *healthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("Starting notification consumer", zap.String("queue", notificationQueue))
		return consumer.StartConsuming()
	})

	g.Go(func() error {
		<-gctx.Done()
		consumer.Stop()
		return nil
	})

	g.Go(func() error {
		runSweep(gctx, core.Engine.CheckDeadlines, cfg.Workflow.SweepInterval, log)
		return nil
	})

	g.Go(func() error {
		log.Info("Health server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
	}
	log.Info("Worker exited")
}

// runSweep checks deadlines once at start and then every interval.
func runSweep(ctx context.Context, check func(context.Context) error, interval time.Duration, log *zap.Logger) {
	sweep := func() {
		if err := check(ctx); err != nil && ctx.Err() == nil {
			log.Error("Deadline sweep failed", zap.Error(err))
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
