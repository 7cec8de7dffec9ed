// Package sqlite implements a relational vector store on an embedded SQLite
// database through GORM. Vectors are stored as little-endian float32 blobs.
// Search is a full scan in id order, fetched in batches.
package sqlite

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Kind is the config name of this backend.
const Kind = "sqlite"

// Config holds the sqlite kind tunables.
type Config struct {
	Path        string        `mapstructure:"path" validate:"required"`
	Table       string        `mapstructure:"table" validate:"omitempty,excludesall=;'()"`
	JournalMode string        `mapstructure:"journal_mode" validate:"omitempty,oneof=WAL DELETE TRUNCATE MEMORY wal delete truncate memory"`
	Synchronous string        `mapstructure:"synchronous" validate:"omitempty,oneof=OFF NORMAL FULL EXTRA off normal full extra"`
	CacheSize   int           `mapstructure:"cache_size"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	BatchSize   int           `mapstructure:"batch_size" validate:"gte=0"`
	Dimension   int           `mapstructure:"dimension" validate:"gte=0"`
	Metric      string        `mapstructure:"metric" validate:"omitempty,oneof=euclidean cosine dot manhattan hamming"`
}

// ApplyDefaults fills unset fields with the WAL / NORMAL profile.
func (c *Config) ApplyDefaults() {
	if c.Table == "" {
		c.Table = "vectors"
	}
	if c.JournalMode == "" {
		c.JournalMode = "WAL"
	}
	if c.Synchronous == "" {
		c.Synchronous = "NORMAL"
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 500
	}
	if c.Metric == "" {
		c.Metric = string(scan.Euclidean)
	}
}

// dsn appends the connection pragmas to the file path.
func (c *Config) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.Synchronous))
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.CacheSize != 0 {
		q.Add("_pragma", fmt.Sprintf("cache_size(%d)", c.CacheSize))
	}
	return c.Path + "?" + q.Encode()
}

// Adapter opens sqlite stores.
type Adapter struct{}

func (Adapter) Kind() string { return Kind }
func (Adapter) Categories() []store.Category {
	return []store.Category{store.CategoryRelational, store.CategoryCache}
}
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

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(gormsqlite.Open(cfg.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{desc: desc, cfg: cfg, db: db, scanner: scan.New(metric)}
	if cfg.Path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := s.table(ctx).AutoMigrate(&row{}); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}
	return s, nil
}

// row is the persisted form of a record.
type row struct {
	ID        string `gorm:"primaryKey"`
	Vector    []byte `gorm:"not null"`
	Dimension int    `gorm:"not null"`
	Metadata  string
	UpdatedAt time.Time
}

// Store is an open sqlite backend.
type Store struct {
	desc    store.Descriptor
	cfg     *Config
	db      *gorm.DB
	scanner *scan.Scanner
}

func (s *Store) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.cfg.Table)
}

// AddVector upserts the row for rec.ID.
func (s *Store) AddVector(ctx context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	r := row{ID: rec.ID, Vector: encodeVector(rec.Vector), Dimension: len(rec.Vector)}
	if len(rec.Metadata) > 0 {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		r.Metadata = string(meta)
	}

	err := s.table(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&r).Error
	if err != nil {
		return fmt.Errorf("sqlite upsert %q: %w", rec.ID, err)
	}
	return nil
}

// SearchVector scans all rows in batches.
func (s *Store) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	c := s.scanner.Begin(query, k)

	var batch []row
	res := s.table(ctx).Select("id", "vector").
		FindInBatches(&batch, s.cfg.BatchSize, func(_ *gorm.DB, _ int) error {
			for _, r := range batch {
				c.Offer(r.ID, decodeVector(r.Vector))
			}
			return ctx.Err()
		})
	if res.Error != nil {
		return nil, fmt.Errorf("sqlite scan: %w", res.Error)
	}
	return c.Results(), nil
}

// GetStatus reports the configured pragmas and the row count.
func (s *Store) GetStatus(ctx context.Context) (store.Status, error) {
	var count int64
	if err := s.table(ctx).Count(&count).Error; err != nil {
		return nil, err
	}

	st := backend.BaseStatus(s.desc, true)
	st["path"] = s.cfg.Path
	st["table"] = s.cfg.Table
	st["journal_mode"] = s.cfg.JournalMode
	st["synchronous"] = s.cfg.Synchronous
	st["cache_size"] = s.cfg.CacheSize
	st["metric"] = string(s.scanner.Metric())
	st["dimension"] = s.cfg.Dimension
	st["vector_count"] = count
	return st, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close(context.Context) error {
	return s.close()
}

func (s *Store) close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(x)))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
