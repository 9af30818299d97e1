package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ecofinds/greencore/config"
	"github.com/ecofinds/greencore/internal/broker/kafka"
	"github.com/ecofinds/greencore/internal/cache/rediscache"
	"github.com/ecofinds/greencore/internal/integrations/carrier"
	"github.com/ecofinds/greencore/internal/integrations/carrier/fake"
	"github.com/ecofinds/greencore/internal/integrations/carrier/shipglide"
	"github.com/ecofinds/greencore/internal/services/sweeper"
	"github.com/ecofinds/greencore/internal/storage/pgmarket"
)

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo sweeper.Repository, closeFn func(), err error)
	newProducer      func(cfg *config.Config) sweeper.Producer
	newRateLimiter   func(cfg *config.Config) sweeper.RateLimiter
	newCarrierClient func(cfg *config.Config) carrier.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (sweeper.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgmarket.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) sweeper.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) sweeper.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCarrierClient: func(cfg *config.Config) carrier.Client {
			// ShipGlide when configured, local deterministic fake otherwise
			// (dev and demo environments).
			if cfg.Carrier.Mode == "shipglide" && cfg.Carrier.BaseURL != "" {
				return shipglide.New(cfg.Carrier.BaseURL, cfg.Carrier.APIKey)
			}
			return fake.New()
		},
	}
}

func plannerConfigFrom(cfg *config.Config) sweeper.PlannerConfig {
	pc := sweeper.PlannerConfig{
		MovingMinDelay: time.Duration(cfg.GreenCore.WorkerNextCheckMovingMinSeconds) * time.Second,
		MovingMaxDelay: time.Duration(cfg.GreenCore.WorkerNextCheckMovingMaxSeconds) * time.Second,
		PendingDelay:   time.Duration(cfg.GreenCore.WorkerNextCheckPendingSeconds) * time.Second,
		Backoff1:       time.Duration(cfg.GreenCore.WorkerBackoff1Seconds) * time.Second,
		Backoff2:       time.Duration(cfg.GreenCore.WorkerBackoff2Seconds) * time.Second,
		Backoff3:       time.Duration(cfg.GreenCore.WorkerBackoff3Seconds) * time.Second,
		Backoff4:       time.Duration(cfg.GreenCore.WorkerBackoff4Seconds) * time.Second,
	}
	return pc
}

func RunGreenWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.ShipmentUpdatedTopicName
	if topic == "" {
		topic = "shipment.updated"
	}

	pollInterval := time.Duration(cfg.GreenCore.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.GreenCore.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.GreenCore.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.GreenCore.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.GreenCore.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	carrierClient := f.newCarrierClient(cfg)

	sw := sweeper.New(repo, carrierClient, producer, rl, topic).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithPlanner(plannerConfigFrom(cfg))

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.GreenCore.WorkerHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			sweeper:     sw,
			cfg:         cfg,
		})
	}()

	sweepErr := make(chan error, 1)
	go func() { sweepErr <- sw.Run(ctx) }()

	slog.Info("green-worker started", "topic", topic, "pollInterval", pollInterval.String())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-sweepErr:
		return err
	case err := <-httpErr:
		return err
	}
}
