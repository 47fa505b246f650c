package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/internal/handler/api"
	mid "RiskWatch/internal/middleware"
	internalrepo "RiskWatch/internal/repository"
	"RiskWatch/internal/service/metrics"
	"RiskWatch/internal/service/notify"
	"RiskWatch/internal/service/signals"
	"RiskWatch/internal/services/risk"
	"RiskWatch/internal/services/summary"
	"RiskWatch/internal/services/watch"
	"RiskWatch/internal/usecase"
	"RiskWatch/pkg/cache"
	pkgch "RiskWatch/pkg/clickhouse"
	"RiskWatch/pkg/config"
	xhttp "RiskWatch/pkg/http"
	pkgkafka "RiskWatch/pkg/kafka"
	applogger "RiskWatch/pkg/logger"
	"RiskWatch/pkg/server"
	pkgsqlite "RiskWatch/pkg/sqlite"
)

// ProvideLogger builds the application logger from the logger section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideAssets converts the configured asset list.
func ProvideAssets(cfg *config.Config) []domrepo.Asset {
	out := make([]domrepo.Asset, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		out = append(out, domrepo.Asset{Symbol: strings.ToUpper(a.Symbol), Name: a.Name})
	}
	return out
}

// ProvideKafkaProducer creates a Kafka producer when a sink or the log collector needs one.
// When the collector is on it is attached to l here.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Alerting.KafkaSink && !cfg.Logger.Collector.Enabled {
		return nil, nil
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
		pkgkafka.WithAutoCreateTopics(cfg.Environment != "production"),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Logger.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logger.Collector.Interval,
			CountThreshold: cfg.Logger.Collector.CountThreshold,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return producer, nil
}

// ProvideSQLiteClient opens the SQLite file when the sqlite storage backend is selected.
func ProvideSQLiteClient(cfg *config.Config) (*pkgsqlite.Client, error) {
	if cfg.Storage.Backend != "sqlite" {
		return nil, nil
	}
	c, err := pkgsqlite.NewClient(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite client: %w", err)
	}
	return c, nil
}

// ProvideRedisCache connects to Redis when the redis storage backend is selected.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if cfg.Storage.Backend != "redis" {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 4*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideKVStore selects the persistence backend for rules and notification history.
func ProvideKVStore(cfg *config.Config, sq *pkgsqlite.Client, rc *cache.RedisCache) (domrepo.KVStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		kv, err := internalrepo.NewSQLiteKV(ctx, sq)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "redis":
		return internalrepo.NewCacheKV(rc), nil
	default:
		return internalrepo.NewCacheKV(cache.NewMemoryCache()), nil
	}
}

// ProvideClickHouseClient creates a ClickHouse client when the archive is enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
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

// ProvideArchive prefers ClickHouse, then the local SQLite file; without either there is no archive.
func ProvideArchive(ch *pkgch.Client, sq *pkgsqlite.Client, l *applogger.Logger) (domrepo.AssessmentArchive, error) {
	var a *internalrepo.SQLArchive
	switch {
	case ch != nil:
		a = internalrepo.NewClickHouseArchive(ch, l)
	case sq != nil:
		a = internalrepo.NewSQLiteArchive(sq, l)
	default:
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// ProvideSignalBoard holds snapshots pushed over Kafka.
func ProvideSignalBoard(cfg *config.Config) *signals.Board {
	return signals.NewBoard(cfg.Signals.MaxAge)
}

// ProvideSignalSource selects between polling the HTTP collaborator and reading the Kafka-fed board.
func ProvideSignalSource(cfg *config.Config, board *signals.Board) domrepo.SignalSource {
	if cfg.Signals.Source == "kafka" {
		return board
	}
	return signals.NewHTTPSource(cfg)
}

// ProvideKafkaConsumer creates the snapshot consumer for the kafka signal source; nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, board *signals.Board, assets []domrepo.Asset, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Signals.Source != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset("latest"),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	h := signals.NewSnapshotHandler(cfg.Kafka.SignalTopic, board, assets, cfg.Signals.ActiveAddressBaseline, l)
	consumer.RegisterHandler(h)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.KeyFilterHook(h.Accept),
		pkgkafka.LoggingHook(l),
	))
	return consumer, nil
}

// ProvideSummarizer tries the AI service first when one is configured, then the rule-based text.
func ProvideSummarizer(cfg *config.Config, l *applogger.Logger) *summary.Chain {
	var strategies []summary.Strategy
	if cfg.Summarizer.URL != "" {
		strategies = append(strategies, summary.Strategy{
			Name:       "ai",
			Summarizer: summary.NewHTTPSummarizer(cfg),
			Timeout:    cfg.Summarizer.Timeout,
		})
	}
	return summary.NewChain(l, strategies...)
}

func ProvideHub(l *applogger.Logger) *notify.Hub {
	return notify.NewHub(l)
}

// ProvideSinks builds the in-app stream plus every configured external sink.
func ProvideSinks(cfg *config.Config, hub *notify.Hub, producer *pkgkafka.Producer) ([]domrepo.NotificationSink, error) {
	sinks := []domrepo.NotificationSink{hub}
	for _, raw := range cfg.Alerting.WebhookURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		w, err := notify.NewWebhook(raw, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("alerting: %w", err)
		}
		sinks = append(sinks, w)
	}
	if cfg.Alerting.KafkaSink && producer != nil {
		sinks = append(sinks, notify.NewKafkaSink(producer, cfg.Kafka.NotificationTopic))
	}
	return sinks, nil
}

func ProvidePipeline(cfg *config.Config, sinks []domrepo.NotificationSink, m domrepo.Metrics, l *applogger.Logger) *mid.NotificationPipeline {
	return mid.NewNotificationPipeline(sinks, m,
		mid.WithRateLimit(cfg.Alerting.RateLimit, cfg.Alerting.Burst),
		mid.WithBufferSize(cfg.Alerting.BufferSize),
		mid.WithPipelineLogger(l),
	)
}

func ProvideRuleStore(kv domrepo.KVStore, l *applogger.Logger) *internalrepo.RuleStore {
	return internalrepo.NewRuleStore(kv, l)
}

func ProvideNotificationHistory(cfg *config.Config, kv domrepo.KVStore, l *applogger.Logger) *internalrepo.NotificationHistory {
	return internalrepo.NewNotificationHistory(kv, cfg.Watch.HistoryCapacity, l)
}

func ProvideEvaluator(cfg *config.Config, m domrepo.Metrics) *watch.Evaluator {
	return watch.NewEvaluator(watch.NewCooldown(cfg.Watch.Cooldown), m)
}

// ProvideRefreshCycle assembles the periodic loop.
func ProvideRefreshCycle(
	cfg *config.Config,
	assets []domrepo.Asset,
	source domrepo.SignalSource,
	summarizer *summary.Chain,
	board *usecase.AnalysisBoard,
	archive domrepo.AssessmentArchive,
	rules *internalrepo.RuleStore,
	history *internalrepo.NotificationHistory,
	evaluator *watch.Evaluator,
	pipeline *mid.NotificationPipeline,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.RefreshCycle {
	return usecase.NewRefreshCycle(usecase.CycleDeps{
		Assets:     assets,
		Source:     source,
		Scorer:     risk.NewScorer(),
		Summarizer: summarizer,
		Board:      board,
		Archive:    archive,
		Rules:      rules,
		History:    history,
		Evaluator:  evaluator,
		Dispatcher: pipeline,
		Metrics:    m,
		Logger:     l,
	}, cfg.Refresh.Interval, cfg.Refresh.FetchTimeout)
}

// ProvideHandlers lists every route group served by the API.
func ProvideHandlers(
	l *applogger.Logger,
	assessments *usecase.AssessmentsUseCase,
	rules *usecase.RulesUseCase,
	notifications *usecase.NotificationsUseCase,
	board *usecase.AnalysisBoard,
	hub *notify.Hub,
	pipeline *mid.NotificationPipeline,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewAssessmentsHandler(l, assessments),
		api.NewRulesHandler(l, rules),
		api.NewNotificationsHandler(l, notifications, hub),
		api.NewHealthHandler(board, hub, pipeline.Sinks),
	}
}

func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server and registers the clients it must close.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	cycle *usecase.RefreshCycle,
	pipeline *mid.NotificationPipeline,
	consumer *pkgkafka.Consumer,
	hub *notify.Hub,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
	archive domrepo.AssessmentArchive,
	ch *pkgch.Client,
	sq *pkgsqlite.Client,
	rc *cache.RedisCache,
) *server.App {
	app := server.New(cfg, l, cycle, pipeline, consumer, hub, httpServer)
	// typed nils must not reach AddCloser as non-nil interfaces
	if rc != nil {
		app.AddCloser("redis", rc)
	}
	if sq != nil {
		app.AddCloser("sqlite", sq)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	if archive != nil {
		app.AddCloser("archive", archive)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	return app
}
