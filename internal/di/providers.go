package di

import (
	"context"
	"fmt"
	"time"

	domrepo "github.com/EasyE-base/neural-command-layer/internal/domain/repository"
	domsvc "github.com/EasyE-base/neural-command-layer/internal/domain/service"
	"github.com/EasyE-base/neural-command-layer/internal/handler/api"
	internalrepo "github.com/EasyE-base/neural-command-layer/internal/repository"
	"github.com/EasyE-base/neural-command-layer/internal/services/evidence"
	"github.com/EasyE-base/neural-command-layer/internal/services/gateway"
	"github.com/EasyE-base/neural-command-layer/internal/services/marketstream"
	"github.com/EasyE-base/neural-command-layer/internal/services/riskengine"
	"github.com/EasyE-base/neural-command-layer/internal/services/semantic"
	"github.com/EasyE-base/neural-command-layer/internal/usecase"
	"github.com/EasyE-base/neural-command-layer/pkg/cache"
	pkgch "github.com/EasyE-base/neural-command-layer/pkg/clickhouse"
	"github.com/EasyE-base/neural-command-layer/pkg/config"
	xhttp "github.com/EasyE-base/neural-command-layer/pkg/http"
	"github.com/EasyE-base/neural-command-layer/pkg/http/middleware"
	pkgkafka "github.com/EasyE-base/neural-command-layer/pkg/kafka"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"
	"github.com/EasyE-base/neural-command-layer/pkg/metrics"
	"github.com/EasyE-base/neural-command-layer/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideKafkaProducer creates the Kafka producer shared by the event bus
// and the log collector.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the process logger. Warn and error logs are
// aggregated into digests on the logs topic when collection is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collect.Enabled {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collect.Interval,
			CountThreshold: cfg.Logging.Collect.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

func ProvideMetrics() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideEventBus(producer *pkgkafka.Producer, cfg *config.Config) domrepo.EventBus {
	return internalrepo.NewKafkaEventBus(producer, internalrepo.Topics{
		Orders: cfg.Kafka.Topics.Orders,
		Alerts: cfg.Kafka.Topics.Alerts,
		Audit:  cfg.Kafka.Topics.Audit,
	})
}

// ProvideCache returns Redis when enabled, otherwise an in-process cache.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Session.MaxSessions))
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

func ProvideSessionHistory(cfg *config.Config, c cache.Service, l *logger.Logger) (domrepo.SessionHistory, error) {
	if cfg.Session.Backend != "redis" {
		return internalrepo.NewMemorySessionHistory(cfg.Session.Capacity, cfg.Session.MaxSessions), nil
	}
	rc, ok := c.(*cache.RedisCache)
	if !ok {
		return nil, fmt.Errorf("session.backend 'redis' requires redis.enabled")
	}
	return internalrepo.NewRedisSessionHistory(rc.Client(), rc.Prefix()+":", cfg.Session.Capacity,
		cfg.Session.MaxSessions, cfg.Session.TTL, l), nil
}

func ProvidePendingStore(c cache.Service) domrepo.PendingStore {
	return internalrepo.NewCachePendingStore(c)
}

// ProvideClickHouseClient returns nil when the audit store is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideAuditStore creates the decision_audit table; nil without ClickHouse.
func ProvideAuditStore(ch *pkgch.Client, l *logger.Logger) (domrepo.AuditStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseAuditStore(ch, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideAuditConsumer wires the audit topic into ClickHouse. It returns nil
// when consumption is disabled or there is no store to write to.
func ProvideAuditConsumer(cfg *config.Config, store domrepo.AuditStore, m *metrics.Recorder, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled || store == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	consumer.RegisterHandler(usecase.NewAuditHandler(cfg.Kafka.Topics.Audit, store, m))
	return consumer, nil
}

func ProvideGateway(cfg *config.Config) *gateway.Gateway {
	return gateway.New(cfg.Evidence.Services, cfg.Evidence.Timeout, gateway.WithRetry(cfg.Evidence.RetryAttempts))
}

func ProvideQuoteBook() *marketstream.QuoteBook {
	return marketstream.NewQuoteBook()
}

// ProvideMarketStream returns nil unless the stream market source is selected.
func ProvideMarketStream(cfg *config.Config, book *marketstream.QuoteBook, l *logger.Logger) *marketstream.Client {
	if cfg.Evidence.MarketSource != "stream" {
		return nil
	}
	return marketstream.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		book,
		l,
	)
}

func ProvideMarketSource(cfg *config.Config, gw *gateway.Gateway, book *marketstream.QuoteBook) domsvc.MarketSource {
	if cfg.Evidence.MarketSource == "stream" {
		return book
	}
	return evidence.NewMarketHTTP(gw)
}

func ProvideSentimentSource(gw *gateway.Gateway) domsvc.SentimentSource {
	return evidence.NewSentimentHTTP(gw)
}

func ProvideRiskSource(gw *gateway.Gateway) domsvc.RiskSource {
	return evidence.NewRiskHTTP(gw)
}

func ProvideRiskChecker(cfg *config.Config) domsvc.RiskChecker {
	if cfg.Risk.Mode == "http" {
		return riskengine.NewClient(cfg.Risk.URL, cfg.Risk.Timeout)
	}
	return riskengine.NewLimitsChecker(cfg.Decision.MaxSingleOrder, cfg.Decision.MaxGrossExposure)
}

// ProvideSemanticResolver returns a nil interface when no endpoint is set,
// leaving the fallback resolver in charge.
func ProvideSemanticResolver(cfg *config.Config, l *logger.Logger) (domsvc.SemanticResolver, error) {
	if !cfg.Semantic.Enabled || cfg.Semantic.BaseURL == "" {
		return nil, nil
	}
	r, err := semantic.New(semantic.Config{
		BaseURL:          cfg.Semantic.BaseURL,
		APIKey:           cfg.Semantic.APIKey,
		Model:            cfg.Semantic.Model,
		Timeout:          cfg.Semantic.Timeout,
		BreakerThreshold: cfg.Semantic.BreakerThreshold,
		BreakerCooldown:  cfg.Semantic.BreakerCooldown,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("semantic resolver: %w", err)
	}
	return r, nil
}

func ProvideCommandResolver(sem domsvc.SemanticResolver, m *metrics.Recorder, l *logger.Logger) *usecase.CommandResolver {
	return usecase.NewCommandResolver(sem, usecase.NewFallbackResolver(), m, l)
}

func ProvideConfirmationGate(cfg *config.Config, pending domrepo.PendingStore) *usecase.ConfirmationGate {
	if cfg.Confirmation.Mode == usecase.ConfirmationModeToken {
		return usecase.NewConfirmationGate(usecase.WithTokenMode(pending, cfg.Confirmation.TokenTTL))
	}
	return usecase.NewConfirmationGate()
}

func ProvideEvidenceAggregator(
	cfg *config.Config,
	market domsvc.MarketSource,
	sentiment domsvc.SentimentSource,
	risk domsvc.RiskSource,
	m *metrics.Recorder,
	l *logger.Logger,
) *usecase.EvidenceAggregator {
	return usecase.NewEvidenceAggregator(market, sentiment, risk, cfg.Evidence.Timeout, m, l)
}

func ProvideConsensusSynthesizer(cfg *config.Config) *usecase.ConsensusSynthesizer {
	return usecase.NewConsensusSynthesizer(cfg.Decision.ConsensusThreshold)
}

func ProvideExecutionPipeline(
	cfg *config.Config,
	risk domsvc.RiskChecker,
	bus domrepo.EventBus,
	m *metrics.Recorder,
	l *logger.Logger,
) *usecase.ExecutionPipeline {
	return usecase.NewExecutionPipeline(risk, bus, m, l,
		usecase.WithFinalConfirmation(cfg.Confirmation.FinalConfirmation),
		usecase.WithOrderSource(cfg.Decision.OrderSource),
	)
}

func ProvideCommandOrchestrator(
	cfg *config.Config,
	resolver *usecase.CommandResolver,
	gate *usecase.ConfirmationGate,
	ev *usecase.EvidenceAggregator,
	consensus *usecase.ConsensusSynthesizer,
	pipeline *usecase.ExecutionPipeline,
	history domrepo.SessionHistory,
	bus domrepo.EventBus,
	m *metrics.Recorder,
	l *logger.Logger,
) *usecase.CommandOrchestrator {
	return usecase.NewCommandOrchestrator(resolver, gate, ev, consensus, pipeline, history, bus, m, l, usecase.Settings{
		MaxGrossExposure:  cfg.Decision.MaxGrossExposure,
		MaxSingleOrder:    cfg.Decision.MaxSingleOrder,
		FinalConfirmation: cfg.Confirmation.FinalConfirmation,
		RiskMode:          cfg.Risk.Mode,
		MarketSource:      cfg.Evidence.MarketSource,
		HistoryCapacity:   cfg.Session.Capacity,
	})
}

func ProvideCommandHandler(
	cfg *config.Config,
	orch *usecase.CommandOrchestrator,
	store domrepo.AuditStore,
	l *logger.Logger,
) *api.CommandEchoHandler {
	opts := []api.Option{api.WithRequestTimeout(cfg.Server.WriteTimeout)}
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		opts = append(opts, api.WithCommandMiddleware(rl.Middleware()))
	}
	if store != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", store))
	}
	return api.NewCommandEchoHandler(l, orch, opts...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.CommandEchoHandler, l *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the process. Resource cleanup is left to the
// injector's cleanup function.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	stream *marketstream.Client,
) *server.App {
	opts := []server.Option{
		server.WithConsumer(consumer),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if stream != nil {
		opts = append(opts, server.WithRunner(stream))
	}
	return server.New(l, srv, opts...)
}
