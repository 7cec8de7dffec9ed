// Package badger implements a key-value vector store on BadgerDB.
//
// Records are stored as JSON under the "vec/" prefix. Search is a full scan
// over that prefix.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittovec/internal/bytesize"
	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Kind is the config name of this backend.
const Kind = "badger"

var vecPrefix = []byte("vec/")

// Config holds the badger kind tunables.
type Config struct {
	Path          string            `mapstructure:"path" validate:"required_unless=InMemory true"`
	Dimension     int               `mapstructure:"dimension" validate:"gte=0"`
	Metric        string            `mapstructure:"metric" validate:"omitempty,oneof=euclidean cosine dot manhattan hamming"`
	InMemory      bool              `mapstructure:"in_memory"`
	SyncWrites    bool              `mapstructure:"sync_writes"`
	MemTableSize  bytesize.ByteSize `mapstructure:"memtable_size"`
	ValueLogSize  bytesize.ByteSize `mapstructure:"value_log_file_size"`
	BlockCacheMax bytesize.ByteSize `mapstructure:"block_cache_size"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Metric == "" {
		c.Metric = string(scan.Euclidean)
	}
}

func (c *Config) options() badgerdb.Options {
	path := c.Path
	if c.InMemory {
		path = ""
	}
	opts := badgerdb.DefaultOptions(path).
		WithLogger(nil).
		WithInMemory(c.InMemory).
		WithSyncWrites(c.SyncWrites)
	if c.MemTableSize > 0 {
		opts = opts.WithMemTableSize(c.MemTableSize.Int64())
	}
	if c.ValueLogSize > 0 {
		opts = opts.WithValueLogFileSize(c.ValueLogSize.Int64())
	}
	if c.BlockCacheMax > 0 {
		opts = opts.WithBlockCacheSize(c.BlockCacheMax.Int64())
	}
	return opts
}

// Adapter opens badger stores.
type Adapter struct{}

func (Adapter) Kind() string                 { return Kind }
func (Adapter) Categories() []store.Category { return []store.Category{store.CategoryKeyValue} }
func (Adapter) Capabilities() []store.Capability {
	return []store.Capability{store.CapAddVector, store.CapSearchVector, store.CapGetStatus}
}
func (Adapter) FullScan() bool { return true }

func (Adapter) ValidateConfig(raw map[string]any) error {
	_, err := store.LoadConfig[Config](raw)
	return err
}

func (Adapter) Open(_ context.Context, desc store.Descriptor) (store.Backend, error) {
	cfg, err := store.LoadConfig[Config](desc.Config)
	if err != nil {
		return nil, err
	}
	metric, err := scan.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	db, err := badgerdb.Open(cfg.options())
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	s := &Store{desc: desc, cfg: cfg, db: db, scanner: scan.New(metric)}
	n, err := s.countKeys()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.count.Store(n)
	return s, nil
}

// Store is an open badger backend.
type Store struct {
	desc    store.Descriptor
	cfg     *Config
	db      *badgerdb.DB
	scanner *scan.Scanner
	count   atomic.Int64
}

type entry struct {
	Vector   []float32      `json:"v"`
	Metadata map[string]any `json:"m,omitempty"`
}

func vecKey(id string) []byte {
	return append(append(make([]byte, 0, len(vecPrefix)+len(id)), vecPrefix...), id...)
}

// countKeys walks keys only, without fetching values.
func (s *Store) countKeys() (int64, error) {
	var n int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(vecPrefix); it.ValidForPrefix(vecPrefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// AddVector writes the record under vec/<id>, replacing any previous value.
func (s *Store) AddVector(_ context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	data, err := json.Marshal(entry{Vector: store.ToFloat32(rec.Vector), Metadata: rec.Metadata})
	if err != nil {
		return fmt.Errorf("failed to encode vector %q: %w", rec.ID, err)
	}

	created := false
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		key := vecKey(rec.ID)
		if _, err := txn.Get(key); errors.Is(err, badgerdb.ErrKeyNotFound) {
			created = true
		} else if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to store vector %q: %w", rec.ID, err)
	}
	if created {
		s.count.Add(1)
	}
	return nil
}

// SearchVector scans every stored vector.
func (s *Store) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	c := s.scanner.Begin(query, k)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchSize = 100
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(vecPrefix); it.ValidForPrefix(vecPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(vecPrefix):])
			err := item.Value(func(val []byte) error {
				var e entry
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("corrupt vector %q: %w", id, err)
				}
				c.Offer(id, e.Vector)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.Results(), nil
}

// GetStatus reports sizes from badger's own accounting and the cached count.
func (s *Store) GetStatus(context.Context) (store.Status, error) {
	// Healthcheck: a no-op read transaction fails on a closed database.
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return nil, err
	}

	lsm, vlog := s.db.Size()
	st := backend.BaseStatus(s.desc, true)
	st["path"] = s.cfg.Path
	st["in_memory"] = s.cfg.InMemory
	st["metric"] = string(s.scanner.Metric())
	st["dimension"] = s.cfg.Dimension
	st["vector_count"] = s.count.Load()
	st["lsm_size"] = bytesize.ByteSize(lsm).String()
	st["vlog_size"] = bytesize.ByteSize(vlog).String()
	return st, nil
}

// Close closes the database.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}
