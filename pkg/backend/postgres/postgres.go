// Package postgres implements a relational vector store on PostgreSQL.
//
// Vectors live in a REAL[] column of a table created by embedded migrations.
// Search streams every row through the full-scan collector.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Kind is the config name of this backend.
const Kind = "postgres"

const table = "dittovec_vectors"

// Adapter opens postgres stores.
type Adapter struct{}

func (Adapter) Kind() string                 { return Kind }
func (Adapter) Categories() []store.Category { return []store.Category{store.CategoryRelational} }
func (Adapter) Capabilities() []store.Capability {
	return []store.Capability{store.CapAddVector, store.CapSearchVector, store.CapGetStatus}
}
func (Adapter) FullScan() bool { return true }

func (Adapter) ValidateConfig(raw map[string]any) error {
	_, err := store.LoadConfig[Config](raw)
	return err
}

func (Adapter) Open(ctx context.Context, desc store.Descriptor) (store.Backend, error) {
	cfg, err := store.LoadConfig[Config](desc.Config)
	if err != nil {
		return nil, err
	}
	metric, err := scan.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	if *cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.ConnectionString(), desc.Name); err != nil {
			return nil, err
		}
	}

	pool, err := createConnectionPool(ctx, cfg, desc.Name)
	if err != nil {
		return nil, err
	}
	return &Store{desc: desc, cfg: cfg, pool: pool, scanner: scan.New(metric)}, nil
}

func createConnectionPool(ctx context.Context, cfg *Config, storeName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	// Set query timeout as statement timeout
	if cfg.QueryTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeout.Milliseconds())
	}

	logger.Debug("Creating PostgreSQL connection pool",
		logger.KeyStore, storeName,
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return pool, nil
}

// Store is an open postgres backend.
type Store struct {
	desc    store.Descriptor
	cfg     *Config
	pool    *pgxpool.Pool
	scanner *scan.Scanner
}

// AddVector upserts the row for rec.ID.
func (s *Store) AddVector(ctx context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	var meta any
	if len(rec.Metadata) > 0 {
		meta = rec.Metadata
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+table+` (id, vector, dimension, metadata, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET vector = EXCLUDED.vector,
		    dimension = EXCLUDED.dimension,
		    metadata = EXCLUDED.metadata,
		    updated_at = now()`,
		rec.ID, store.ToFloat32(rec.Vector), len(rec.Vector), meta,
	)
	if err != nil {
		return fmt.Errorf("postgres upsert %q: %w", rec.ID, err)
	}
	return nil
}

// SearchVector scans rows whose dimension matches the query.
func (s *Store) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT id, vector FROM `+table+` WHERE dimension = $1`, len(query))
	if err != nil {
		return nil, fmt.Errorf("postgres scan: %w", err)
	}
	defer rows.Close()

	c := s.scanner.Begin(query, k)
	for rows.Next() {
		var (
			id  string
			vec []float32
		)
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("postgres scan row: %w", err)
		}
		c.Offer(id, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return c.Results(), nil
}

// GetStatus reports the planner's row estimate, which avoids a COUNT(*) scan.
// The estimate is -1 until the table has been analyzed; it is reported as 0.
func (s *Store) GetStatus(ctx context.Context) (store.Status, error) {
	var estimate int64
	err := s.pool.QueryRow(ctx,
		`SELECT reltuples::bigint FROM pg_class WHERE oid = to_regclass($1)`, table,
	).Scan(&estimate)
	if err != nil {
		return nil, fmt.Errorf("postgres status: %w", err)
	}

	stat := s.pool.Stat()
	st := backend.BaseStatus(s.desc, true)
	st["table"] = table
	st["metric"] = string(s.scanner.Metric())
	st["dimension"] = s.cfg.Dimension
	st["vector_count_estimate"] = max(estimate, 0)
	st["pool_total_conns"] = stat.TotalConns()
	st["pool_idle_conns"] = stat.IdleConns()
	return st, nil
}

// Close closes the connection pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}
