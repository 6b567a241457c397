package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/event"
	"github.com/richardliu001/location-service/internal/logger"
	"github.com/richardliu001/location-service/internal/metrics"
	"github.com/richardliu001/location-service/internal/outbox"
	"github.com/richardliu001/location-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	kw := outbox.NewKafkaWriter(cfg.Kafka)
	publisher := outbox.NewKafkaPublisher(kw)
	defer publisher.Close()

	// the poller never touches the distance cache
	repository := repo.NewRepository(gdb, nil, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dispatcher := outbox.NewDispatcher(cfg, repository, event.NewRouter(cfg.Kafka.Topics), publisher,
		metrics.NewOutboxMetrics(reg), log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("location-poller metrics on %s", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Infow("location-poller started", "workers", cfg.Outbox.Workers, "batch_size", cfg.Outbox.BatchSize)
		return dispatcher.Start(gctx, cfg.Outbox.Workers)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("poller stopped: %v", err)
	}
	log.Info("location-poller stopped")
}
