package di

import (
	"context"
	"fmt"
	"time"

	"VolStack/internal/domain/models"
	"VolStack/internal/domain/repository"
	"VolStack/internal/handler/api"
	internalrepo "VolStack/internal/repository"
	"VolStack/internal/services/align"
	"VolStack/internal/services/backfill"
	"VolStack/internal/services/features"
	"VolStack/internal/services/model"
	"VolStack/internal/services/signal"
	"VolStack/internal/usecase"
	"VolStack/pkg/cache"
	pkgch "VolStack/pkg/clickhouse"
	"VolStack/pkg/config"
	xhttp "VolStack/pkg/http"
	pkgkafka "VolStack/pkg/kafka"
	applogger "VolStack/pkg/logger"
	"VolStack/pkg/metrics"
	pkgpg "VolStack/pkg/postgres"
	"VolStack/pkg/server"
)

// ProvideLogger creates the application logger. Development gets console
// output, everything else structured JSON.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{
		Level:  "info",
		Format: format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePostgresClient creates the Postgres client.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithHost(cfg.Postgres.Host),
		pkgpg.WithPort(cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpg.WithMaxConnections(cfg.Postgres.MaxOpenConns, 2),
		pkgpg.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the ClickHouse-backed bar reader.
func ProvideBarStore(ch *pkgch.Client, l *applogger.Logger) repository.BarStore {
	store := internalrepo.NewCHBarStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideFeatureStore creates the ClickHouse-backed feature table writer.
func ProvideFeatureStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.FeatureStore {
	store := internalrepo.NewCHFeatureStore(ch, cfg.ClickHouse.FeatureTable)
	store.SetLogger(l)
	return store
}

// ProvidePredictionStore creates the Postgres prediction store and
// ensures its table exists.
func ProvidePredictionStore(pg *pkgpg.Client, cfg *config.Config, l *applogger.Logger) (repository.PredictionStore, error) {
	store := internalrepo.NewPGPredictionStore(pg, cfg.Postgres.PredictionTable)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pg.InitSchema(ctx, store.SchemaStatements()); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return store, nil
}

// ProvideBackfiller creates the acquisition-service client.
func ProvideBackfiller(cfg *config.Config, l *applogger.Logger) (repository.Backfiller, error) {
	client, err := backfill.New(cfg.Backfill.BaseURL, cfg.Backfill.Timeout, l)
	if err != nil {
		return nil, fmt.Errorf("backfill client: %w", err)
	}
	return client, nil
}

// ProvideAligner creates the session-aware series aligner.
func ProvideAligner(cfg *config.Config) (*align.Aligner, error) {
	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone: %w", err)
	}
	return align.New(align.Config{
		Location:           loc,
		SessionOpenMinute:  cfg.Market.SessionOpenMinute,
		SessionCloseMinute: cfg.Market.SessionCloseMinute,
	})
}

// ProvideLiveEngine creates the live-path feature engine. It never
// computes the training label.
func ProvideLiveEngine(cfg *config.Config) (*features.Engine, error) {
	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone: %w", err)
	}
	names := make([]string, 0, len(cfg.Market.Constituents))
	for _, ins := range cfg.Market.Constituents {
		names = append(names, ins.Name)
	}
	return features.New(features.Config{
		Location:          loc,
		SessionOpenMinute: cfg.Market.SessionOpenMinute,
		SessionMinutes:    cfg.Market.SessionMinutes,
		Constituents:      names,
	})
}

// ProvideVolatilityPredictor loads the volatility artifact and binds its
// feature columns.
func ProvideVolatilityPredictor(cfg *config.Config) (*model.VolatilityPredictor, error) {
	art, err := model.LoadArtifact(cfg.Models.Volatility.Path)
	if err != nil {
		return nil, fmt.Errorf("volatility artifact: %w", err)
	}
	bind, err := model.NewBindings(cfg.Models.Volatility.RVForm, cfg.Models.Volatility.VolSpike)
	if err != nil {
		return nil, fmt.Errorf("volatility bindings: %w", err)
	}
	return model.NewVolatilityPredictor(art, bind)
}

// ProvideDirectionPredictor loads the direction artifact and binds its
// feature columns.
func ProvideDirectionPredictor(cfg *config.Config) (*model.DirectionPredictor, error) {
	art, err := model.LoadArtifact(cfg.Models.Direction.Path)
	if err != nil {
		return nil, fmt.Errorf("direction artifact: %w", err)
	}
	bind, err := model.NewBindings(cfg.Models.Direction.RVForm, cfg.Models.Direction.VolSpike)
	if err != nil {
		return nil, fmt.Errorf("direction bindings: %w", err)
	}
	return model.NewDirectionPredictor(art, bind)
}

// ProvideDecider creates the threshold signal decider.
func ProvideDecider(cfg *config.Config) (*signal.Decider, error) {
	return signal.New(cfg.Signal.Confidence, cfg.Signal.VolExpansion)
}

// ProvideCache creates the latest-signal cache per configured backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
		)
	default:
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.Capacity),
		), nil
	}
}

// ProvidePublisher creates the Kafka fan-out when enabled, otherwise a
// no-op publisher.
func ProvidePublisher(cfg *config.Config) (repository.SignalPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopSignalPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideRegenerator creates the batch feature-table rebuilder. Its
// engine includes the training label, unlike the live path's.
func ProvideRegenerator(
	bars repository.BarStore,
	featureStore repository.FeatureStore,
	aligner *align.Aligner,
	cfg *config.Config,
	l *applogger.Logger,
) (*usecase.Regenerator, error) {
	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone: %w", err)
	}
	names := make([]string, 0, len(cfg.Market.Constituents))
	for _, ins := range cfg.Market.Constituents {
		names = append(names, ins.Name)
	}
	engine, err := features.New(features.Config{
		Location:          loc,
		SessionOpenMinute: cfg.Market.SessionOpenMinute,
		SessionMinutes:    cfg.Market.SessionMinutes,
		Constituents:      names,
		IncludeTarget:     true,
	})
	if err != nil {
		return nil, err
	}
	return usecase.NewRegenerator(bars, featureStore, aligner, engine, l,
		cfg.Market.IndexTable, cfg.Market.VIXTable, constituents(cfg)), nil
}

// ProvideSyncOrchestrator creates the per-cycle freshness check.
func ProvideSyncOrchestrator(
	bars repository.BarStore,
	backfiller repository.Backfiller,
	regen *usecase.Regenerator,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.SyncOrchestrator {
	return usecase.NewSyncOrchestrator(bars, backfiller, regen, m, l,
		cfg.Market.IndexTable, cfg.Engine.StaleAfter, cfg.Backfill.InitialDays)
}

// ProvidePipeline creates the prediction pipeline.
func ProvidePipeline(
	bars repository.BarStore,
	predictions repository.PredictionStore,
	publisher repository.SignalPublisher,
	cacheSvc cache.Service,
	aligner *align.Aligner,
	engine *features.Engine,
	vol *model.VolatilityPredictor,
	dir *model.DirectionPredictor,
	decider *signal.Decider,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PredictionPipeline {
	return usecase.NewPredictionPipeline(bars, predictions, publisher, cacheSvc,
		aligner, engine, vol, dir, decider, m, l,
		usecase.PipelineConfig{
			IndexTable:   cfg.Market.IndexTable,
			VIXTable:     cfg.Market.VIXTable,
			Constituents: constituents(cfg),
			WindowBars:   cfg.Engine.WindowBars,
			MinRows:      cfg.Engine.MinRows,
			CacheTTL:     cfg.Cache.TTL,
		})
}

// ProvideCycleLoop creates the sequential cycle driver.
func ProvideCycleLoop(
	sync *usecase.SyncOrchestrator,
	pipeline *usecase.PredictionPipeline,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.CycleLoop {
	return usecase.NewCycleLoop(sync, pipeline, m, l, cfg.Engine.CycleInterval)
}

// ProvideSignalHub creates the websocket fan-out hub.
func ProvideSignalHub(l *applogger.Logger) *api.SignalHub {
	return api.NewSignalHub(l)
}

// ProvideHandler creates the ops HTTP handler and attaches the hub as
// the pipeline's live notifier.
func ProvideHandler(
	l *applogger.Logger,
	pipeline *usecase.PredictionPipeline,
	bars repository.BarStore,
	predictions repository.PredictionStore,
	hub *api.SignalHub,
) xhttp.Handler {
	pipeline.SetNotifier(hub)
	return api.NewOpsHandler(l, pipeline, bars, predictions, hub)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	loop *usecase.CycleLoop,
	handler xhttp.Handler,
	hub *api.SignalHub,
	ch *pkgch.Client,
	pg *pkgpg.Client,
	publisher repository.SignalPublisher,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, l, loop, handler, hub, ch, pg, publisher, cacheSvc)
}

func constituents(cfg *config.Config) []models.Instrument {
	out := make([]models.Instrument, 0, len(cfg.Market.Constituents))
	for _, ins := range cfg.Market.Constituents {
		out = append(out, models.Instrument{Name: ins.Name, Table: ins.Table})
	}
	return out
}
