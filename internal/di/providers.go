package di

import (
	"context"
	"fmt"
	"time"

	"ReserveDesk/internal/domain/repository"
	"ReserveDesk/internal/handler/api"
	mid "ReserveDesk/internal/middleware"
	internalrepo "ReserveDesk/internal/repository"
	icache "ReserveDesk/internal/service/cache"
	"ReserveDesk/internal/usecase"
	pkgch "ReserveDesk/pkg/clickhouse"
	"ReserveDesk/pkg/config"
	pkgkafka "ReserveDesk/pkg/kafka"
	applogger "ReserveDesk/pkg/logger"
	"ReserveDesk/pkg/metrics"
	"ReserveDesk/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Logging.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "console"
	}
	output := cfg.Logging.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideAuditSink builds the audit backend selected by config: a
// ClickHouse store, a Kafka publisher, or a no-op sink. With the Kafka
// backend the logger also gets an error-log collector publishing to a
// sibling topic, reusing the same producer.
func ProvideAuditSink(cfg *config.Config, l *applogger.Logger) (repository.AuditSink, error) {
	switch cfg.Audit.Backend {
	case "clickhouse":
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

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		table := cfg.ClickHouse.Database + ".reserve_audit"
		if err := client.InitSchema(ctx, []string{
			"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
			"CREATE TABLE IF NOT EXISTS " + table + " (" +
				"request_id String, run_at DateTime, quarter_index Int32, " +
				"available_cents Int64, allocated_cents Int64, remaining_cents Int64, " +
				"companies_funded Int32, conservation_ok UInt8, payload String" +
				") ENGINE=MergeTree ORDER BY (run_at, request_id)",
		}); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return internalrepo.NewClickHouseAuditStore(client.DB(), table), nil

	case "kafka":
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
		if l != nil {
			l.AddCollector(&applogger.CollectionConfig{
				TimeInterval:   30 * time.Second,
				CountThreshold: 100,
				Topic:          cfg.Kafka.Topic + "-logs",
				Publisher:      kafkaLogPublisher{producer: producer},
			})
		}
		return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.Topic), nil

	default:
		return internalrepo.NoopAuditSink{}, nil
	}
}

// kafkaLogPublisher adapts the shared producer to the log collector.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideAuditRecorder creates the write-behind recorder in front of the
// audit sink.
func ProvideAuditRecorder(sink repository.AuditSink, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.AuditRecorder {
	return usecase.NewAuditRecorder(sink, m,
		usecase.WithBatch(cfg.Audit.BatchSize, cfg.Audit.BatchTimeout),
		usecase.WithRecorderLogger(l),
	)
}

// ProvideAllocator creates the allocation engine.
func ProvideAllocator(m repository.Metrics, l *applogger.Logger) *usecase.Allocator {
	return usecase.NewAllocator(usecase.WithMetrics(m), usecase.WithLogger(l))
}

// ProvideCalcPipeline creates the epoch-guarded calculation pipeline.
func ProvideCalcPipeline(m repository.Metrics, l *applogger.Logger) *mid.CalcPipeline {
	return mid.NewCalcPipeline(m, mid.WithLogger(l))
}

// ProvideReservesService wires the orchestration service.
func ProvideReservesService(
	alloc *usecase.Allocator,
	pipe *mid.CalcPipeline,
	recorder *usecase.AuditRecorder,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ReservesService {
	svc := usecase.NewReservesService(alloc, pipe, recorder, m, cfg.Engine.MaxDuration)
	svc.SetLogger(l)
	return svc
}

// ProvideCache creates the preview cache, or nil when disabled.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if cfg.Cache.Backend == "redis" {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideReservesHandler creates the Echo handler.
func ProvideReservesHandler(l *applogger.Logger, svc *usecase.ReservesService, cache icache.BytesCache) *api.ReservesHandler {
	h := api.NewReservesHandler(l, svc)
	if cache != nil {
		h.SetCache(cache)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ReservesHandler,
	recorder *usecase.AuditRecorder,
) *server.App {
	return server.New(cfg, l, handler, recorder)
}
