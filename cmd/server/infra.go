package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"casereview/internal/audit"
	auditstore "casereview/internal/audit/store"
	"casereview/internal/cases/service"
	casestore "casereview/internal/cases/store"
	"casereview/internal/platform/config"
	"casereview/internal/platform/database"
	"casereview/internal/platform/health"
	"casereview/internal/platform/kafka"
	"casereview/internal/platform/kafka/producer"
	"casereview/internal/platform/redis"
	outboxmetrics "casereview/pkg/platform/audit/outbox/metrics"
	outboxpostgres "casereview/pkg/platform/audit/outbox/store/postgres"
	"casereview/pkg/platform/audit/outbox/worker"
)

// infra holds the storage, locking and publishing backends chosen from config.
// Without a database URL everything runs in memory in this process.
type infra struct {
	caseStore  service.Store
	auditStore audit.Store
	storeTx    service.StoreTx
	locker     service.Locker

	pool     *database.Pool
	redis    *redis.Client
	admin    *kafka.Admin
	producer *producer.Producer
	outbox   *worker.Worker

	log *slog.Logger
}

func buildInfra(ctx context.Context, cfg config.Server, reg prometheus.Registerer, hh *health.Handler, log *slog.Logger) (*infra, error) {
	in := &infra{log: log}
	if err := in.buildStores(ctx, cfg, reg, hh); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.buildLocker(ctx, cfg, reg, hh); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *infra) buildStores(ctx context.Context, cfg config.Server, reg prometheus.Registerer, hh *health.Handler) error {
	if cfg.Database.URL == "" {
		in.log.Warn("no database configured, cases and audit facts are kept in memory")
		in.caseStore = casestore.NewInMemory()
		in.auditStore = auditstore.NewInMemory()
		in.storeTx = service.NewInMemoryStoreTx(cfg.Review.StorageTimeout)
		return nil
	}

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	in.pool = pool
	if err := pool.RegisterMetrics(reg); err != nil {
		return fmt.Errorf("register database metrics: %w", err)
	}
	if err := database.Migrate(ctx, pool.DB()); err != nil {
		return err
	}
	hh.RegisterCheck("database", pool.Health)

	db := pool.DB()
	in.caseStore = casestore.NewPostgres(db)
	in.storeTx = service.NewPostgresStoreTx(db, cfg.Review.StorageTimeout)

	if cfg.Kafka.Brokers == "" {
		in.auditStore = auditstore.NewPostgres(db)
		return nil
	}

	outboxStore := outboxpostgres.New(db)
	in.auditStore = auditstore.NewPostgres(db, auditstore.WithOutbox(outboxStore))
	return in.buildRelay(ctx, cfg, reg, hh, outboxStore)
}

// buildRelay provisions the audit topic and the outbox worker that publishes to it.
func (in *infra) buildRelay(ctx context.Context, cfg config.Server, reg prometheus.Registerer, hh *health.Handler, store *outboxpostgres.Store) error {
	admin, err := kafka.NewAdmin(cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	in.admin = admin
	if err := admin.EnsureTopic(ctx, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		return err
	}
	hh.RegisterOptionalCheck("kafka", admin.Health)

	prod, err := producer.New(kafka.ProducerConfig(cfg.Kafka), in.log)
	if err != nil {
		return err
	}
	in.producer = prod

	in.outbox = worker.New(store, prod,
		worker.WithTopic(cfg.Kafka.Topic),
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithPollInterval(cfg.Outbox.PollInterval),
		worker.WithRetention(cfg.Outbox.Retention),
		worker.WithMetrics(outboxmetrics.New(reg)),
		worker.WithLogger(in.log),
	)
	hh.RegisterOptionalCheck("audit_relay", in.outbox.Health)
	return nil
}

func (in *infra) buildLocker(ctx context.Context, cfg config.Server, reg prometheus.Registerer, hh *health.Handler) error {
	if cfg.Redis.URL == "" {
		in.locker = service.NewLocalLocker()
		return nil
	}
	client, err := redis.New(ctx, cfg.Redis, reg)
	if err != nil {
		return err
	}
	in.redis = client
	hh.RegisterCheck("redis", client.Health)
	in.locker = redis.NewLocker(client.Client,
		redis.WithLockTTL(cfg.Redis.LockTTL),
		redis.WithLockLogger(in.log),
	)
	return nil
}

// recordRedisStats samples the Redis pool until ctx ends.
func (in *infra) recordRedisStats(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.redis.RecordPoolStats()
		}
	}
}

// Close releases whatever buildInfra managed to open, in reverse order.
func (in *infra) Close() {
	if in.producer != nil {
		if err := in.producer.Close(); err != nil {
			in.log.Error("close kafka producer", "error", err)
		}
	}
	if in.admin != nil {
		in.admin.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Error("close redis", "error", err)
		}
	}
	if in.pool != nil {
		if err := in.pool.Close(); err != nil {
			in.log.Error("close database", "error", err)
		}
	}
}
