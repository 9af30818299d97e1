package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecofinds/greencore/config"
	"github.com/ecofinds/greencore/internal/api/greenapi"
	"github.com/ecofinds/greencore/internal/broker/kafka"
	"github.com/ecofinds/greencore/internal/cache/rediscache"
	"github.com/ecofinds/greencore/internal/integrations/carrier"
	carrierfake "github.com/ecofinds/greencore/internal/integrations/carrier/fake"
	"github.com/ecofinds/greencore/internal/integrations/carrier/shipglide"
	"github.com/ecofinds/greencore/internal/integrations/emissions"
	"github.com/ecofinds/greencore/internal/integrations/emissions/climatiqhttp"
	emissionsfake "github.com/ecofinds/greencore/internal/integrations/emissions/fake"
	"github.com/ecofinds/greencore/internal/services/estimator"
	"github.com/ecofinds/greencore/internal/services/reconciler"
	"github.com/ecofinds/greencore/internal/storage/pgmarket"
)

type greenAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     greenAPIOpts
	api      *greenapi.API
	rec      *reconciler.Service
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapGreenAPI() *greenAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse failed: %v", err))
	}

	httpAddr := cfg.GreenCore.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.GreenCore.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "green-api"
	}
	topic := cfg.Kafka.ShipmentUpdatedTopicName
	if topic == "" {
		topic = "shipment.updated"
	}
	cacheTTL := time.Duration(cfg.GreenCore.EstimateCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	est := estimator.New(newEmissionsClient(cfg), rc, cacheTTL, cfg.GreenCore.SavingsMultiplier)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	rec := reconciler.New(st, newCarrierClient(cfg), producer, topic)

	api := greenapi.New(est, rec, st)

	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &greenAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: greenAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		api:      api,
		rec:      rec,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func newEmissionsClient(cfg *config.Config) emissions.Client {
	if cfg.Emissions.Mode == "http" && cfg.Emissions.APIKey != "" {
		return climatiqhttp.New(cfg.Emissions.BaseURL, cfg.Emissions.APIKey, cfg.Emissions.DataVersion)
	}
	return emissionsfake.New()
}

func newCarrierClient(cfg *config.Config) carrier.Client {
	if cfg.Carrier.Mode == "shipglide" && cfg.Carrier.BaseURL != "" {
		return shipglide.New(cfg.Carrier.BaseURL, cfg.Carrier.APIKey)
	}
	return carrierfake.New()
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgmarket.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgmarket.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *greenAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *greenAPIApp) Run() error {
	return runGreenAPI(a.ctx, a.opts, a.api, a.rec, a.consumer)
}
