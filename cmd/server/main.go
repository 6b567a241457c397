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
	"github.com/richardliu001/location-service/internal/geo"
	"github.com/richardliu001/location-service/internal/logger"
	"github.com/richardliu001/location-service/internal/metrics"
	"github.com/richardliu001/location-service/internal/repo"
	"github.com/richardliu001/location-service/internal/service"
	httptransport "github.com/richardliu001/location-service/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := repo.AutoMigrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis, optional
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		defer rdb.Close()
	} else {
		log.Warn("redis.addr empty, distance cache disabled")
	}

	// 5. geocoder
	var resolver geo.Resolver = geo.NopResolver{}
	if cfg.Geocoder.KakaoAPIKey != "" {
		resolver = geo.NewKakaoResolver(cfg.Geocoder.KakaoAPIKey, cfg.Geocoder.Timeout, log,
			geo.WithBaseURL(cfg.Geocoder.BaseURL),
			geo.WithRateLimit(cfg.Geocoder.RPS),
		)
	} else {
		log.Warn("geocoder.kakao_api_key empty, addresses will not be geocoded")
	}

	// 6. repo & services
	repository := repo.NewRepository(gdb, rdb, log).WithCacheTTL(cfg.Redis.TTL)
	distances := service.NewDistanceService(repository, metrics.NewFanoutMetrics(prometheus.DefaultRegisterer), log)
	svc := httptransport.Services{
		Sites:        service.NewSiteService(repository, resolver, distances, log),
		Counterparts: service.NewCounterpartService(repository, resolver, distances, log),
		Distances:    distances,
	}

	// 7. gin router
	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8. serve until signalled
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("location-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
