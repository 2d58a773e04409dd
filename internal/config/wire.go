package config

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/metrics"
	"etf-flow-lab/internal/source"
	"etf-flow-lab/internal/source/stub"
	"etf-flow-lab/internal/storage"
	"etf-flow-lab/internal/storage/blob"
	chstore "etf-flow-lab/internal/storage/clickhouse"
	"etf-flow-lab/internal/storage/memory"
	"etf-flow-lab/internal/storage/migrations"
	pgstore "etf-flow-lab/internal/storage/postgres"
)

// OpenTableStore builds the configured table store. The returned func
// releases any connection and is never nil.
func (c *Config) OpenTableStore(ctx context.Context) (storage.TableStore, func(), error) {
	noop := func() {}

	switch c.Store.Backend {
	case BackendMemory:
		return memory.NewTableStore(), noop, nil

	case BackendFilesystem:
		bucket, err := blob.NewFilesystemBucket(c.Store.Filesystem.Dir)
		if err != nil {
			return nil, noop, err
		}
		return blob.NewTableStore(bucket, c.Store.Key), func() { _ = bucket.Close() }, nil

	case BackendS3:
		s3 := c.Store.S3
		bucket, err := blob.NewS3Bucket(blob.S3Config{
			Bucket:    s3.Bucket,
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Insecure:  s3.Insecure,
		})
		if err != nil {
			return nil, noop, err
		}
		return blob.NewTableStore(bucket, c.Store.Key), func() { _ = bucket.Close() }, nil

	case BackendPostgres:
		pool, err := pgstore.NewPool(ctx, c.Store.Postgres.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("migrate postgres: %w", err)
		}
		return pgstore.NewTableSnapshotStore(pool, c.Dataset), pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Store.Backend)
	}
}

// OpenExporter connects to ClickHouse when metrics.clickhouse_dsn is set.
// It returns a nil exporter when export is disabled.
func (c *Config) OpenExporter(ctx context.Context) (*metrics.Exporter, func(), error) {
	if c.Metrics.ClickhouseDSN == "" {
		return nil, func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, c.Metrics.ClickhouseDSN)
	if err != nil {
		return nil, func() {}, fmt.Errorf("migrate clickhouse: %w", err)
	}
	exporter := metrics.NewExporter(chstore.NewFlowMetricsStore(conn), c.Dataset, c.Windows())
	return exporter, func() { _ = conn.Close() }, nil
}

// NewCollector registers one fetcher per configured series, in order.
// Series with a static value use a fixed fetcher; the rest read JSON over HTTP.
func (c *Config) NewCollector(logger logrus.FieldLogger) *source.Collector {
	client := source.NewHTTPClient(
		source.WithRateLimit(c.Source.RequestsPerSecond),
		source.WithMaxRetries(c.Source.MaxRetries),
	)

	collector := source.NewCollector(logger).
		WithConcurrency(c.Source.Concurrency).
		WithTimeout(c.Source.Timeout)

	keys := c.SeriesKeys()
	for i, s := range c.Series {
		key := keys[i]
		if s.Value != nil {
			collector.Add(key, stub.NewStatic(domain.Number(*s.Value)))
			continue
		}
		collector.Add(key, client.JSONFetcher(s.URL, s.Path))
	}
	return collector
}
