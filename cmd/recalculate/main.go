// Command recalculate re-derives every distance pair once and exits. With
// --republish it also re-announces every aggregate whose current version has
// no outbox row yet.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/geo"
	"github.com/richardliu001/location-service/internal/logger"
	"github.com/richardliu001/location-service/internal/repo"
	"github.com/richardliu001/location-service/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/urfave/cli/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// exitPartial is returned when the run finished but some pairs or aggregates failed.
const exitPartial = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "recalculate",
		Usage: "Re-derive every distance pair",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "republish",
				Aliases: []string{"r"},
				Value:   false,
				Usage:   "Also write outbox events for aggregates whose current version was never announced",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.Bool("republish"))
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		code := 1
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(code)
	}
}

func run(ctx context.Context, republish bool) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	repository := repo.NewRepository(gdb, rdb, log).WithCacheTTL(cfg.Redis.TTL)
	distances := service.NewDistanceService(repository, nil, log)

	sum, err := distances.RecalculateAll(ctx)
	if err != nil {
		return fmt.Errorf("recalculate: %w", err)
	}
	log.Infow("recalculate done", "pairs", sum.Pairs, "failed", sum.Failed)
	failed := sum.Failed

	if republish {
		// addresses are never geocoded here
		sites := service.NewSiteService(repository, geo.NopResolver{}, distances, log)
		counterparts := service.NewCounterpartService(repository, geo.NopResolver{}, distances, log)
		rsum, err := service.NewRepublisher(repository, sites, counterparts, distances, log).RepublishAll(ctx)
		if err != nil {
			return fmt.Errorf("republish: %w", err)
		}
		log.Infow("republish done", "written", rsum.Written, "skipped", rsum.Skipped, "failed", rsum.Failed)
		failed += rsum.Failed
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d pairs or aggregates failed", failed), exitPartial)
	}
	return nil
}
