// Package ivf implements a vector store on a statically built IVF index.
//
// An IVF index learns its centroids from the vectors present at build time and
// cannot absorb later inserts into its clustering. Adds are therefore staged and
// mark the index dirty; the next search retrains centroids over every staged
// vector before answering. No add is ever invisible to a later search.
//
// Staged vectors can be persisted to a badger directory so the index is
// rebuilt from disk after a restart.
package ivf

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/liliang-cn/sqvect/v2/pkg/index"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
)

// Kind is the config name of this backend.
const Kind = "ivf"

var keyPrefix = []byte("ivf/")

// Config holds the ivf kind tunables.
type Config struct {
	Dimension int `mapstructure:"dimension" validate:"required,gt=0"`

	// NList is the number of centroids. It is clamped to the number of
	// staged vectors at build time.
	NList int `mapstructure:"nlist" validate:"gte=0"`

	// NProbe is the number of clusters visited per query.
	NProbe int `mapstructure:"nprobe" validate:"gte=0"`

	// Metric must be euclidean; the IVF engine has no other distance.
	Metric string `mapstructure:"metric" validate:"omitempty,eq=euclidean"`

	Persistence struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"persistence"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.NList == 0 {
		c.NList = 100
	}
	if c.NProbe == 0 {
		c.NProbe = min(c.NList, 10)
	}
	if c.Metric == "" {
		c.Metric = "euclidean"
	}
}

// Adapter opens ivf stores.
type Adapter struct{}

func (Adapter) Kind() string                 { return Kind }
func (Adapter) Categories() []store.Category { return []store.Category{store.CategoryVector} }
func (Adapter) Capabilities() []store.Capability {
	return []store.Capability{store.CapAddVector, store.CapSearchVector, store.CapGetStatus}
}
func (Adapter) FullScan() bool { return false }

func (Adapter) ValidateConfig(raw map[string]any) error {
	_, err := store.LoadConfig[Config](raw)
	return err
}

func (Adapter) Open(_ context.Context, desc store.Descriptor) (store.Backend, error) {
	cfg, err := store.LoadConfig[Config](desc.Config)
	if err != nil {
		return nil, err
	}

	s := &Store{
		desc:  desc,
		cfg:   cfg,
		slots: make(map[string]int),
	}

	if cfg.Persistence.Path != "" {
		db, err := badgerdb.Open(badgerdb.DefaultOptions(cfg.Persistence.Path).WithLogger(nil))
		if err != nil {
			return nil, fmt.Errorf("failed to open ivf persistence: %w", err)
		}
		s.db = db
		if err := s.load(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Store is an open ivf backend.
type Store struct {
	desc store.Descriptor
	cfg  *Config
	db   *badgerdb.DB

	mu      sync.Mutex
	ids     []string
	vectors [][]float32
	slots   map[string]int // id -> position in ids/vectors
	idx     *index.IVFIndex
	dirty   bool
	builds  int
}

// load stages every persisted vector.
func (s *Store) load() error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchSize = 100
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(keyPrefix):])
			err := item.Value(func(val []byte) error {
				var vec []float32
				if err := json.Unmarshal(val, &vec); err != nil {
					return fmt.Errorf("corrupt vector %q: %w", id, err)
				}
				s.stage(id, vec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) stage(id string, vec []float32) {
	if i, ok := s.slots[id]; ok {
		s.vectors[i] = vec
	} else {
		s.slots[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.vectors = append(s.vectors, vec)
	}
	s.dirty = true
}

// AddVector stages the vector and marks the index for rebuild.
func (s *Store) AddVector(_ context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}
	vec := store.ToFloat32(rec.Vector)

	if s.db != nil {
		data, err := json.Marshal(vec)
		if err != nil {
			return err
		}
		err = s.db.Update(func(txn *badgerdb.Txn) error {
			return txn.Set(append(append([]byte{}, keyPrefix...), rec.ID...), data)
		})
		if err != nil {
			return fmt.Errorf("failed to persist vector %q: %w", rec.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage(rec.ID, vec)
	return nil
}

// rebuild retrains the index over every staged vector. Caller holds mu.
func (s *Store) rebuild() error {
	nlist := min(s.cfg.NList, len(s.vectors))
	idx := index.NewIVFIndex(s.cfg.Dimension, nlist)
	if err := idx.Train(s.vectors); err != nil {
		return fmt.Errorf("failed to train ivf index: %w", err)
	}
	for i, id := range s.ids {
		if err := idx.Add(id, s.vectors[i]); err != nil {
			return fmt.Errorf("failed to index vector %q: %w", id, err)
		}
	}
	idx.SetNProbe(s.cfg.NProbe)

	s.idx = idx
	s.dirty = false
	s.builds++
	return nil
}

// SearchVector rebuilds the index if anything was staged since the last build,
// then runs the IVF search.
func (s *Store) SearchVector(_ context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.vectors) == 0 {
		return []store.Candidate{}, nil
	}
	if s.dirty || s.idx == nil {
		if err := s.rebuild(); err != nil {
			return nil, err
		}
	}

	ids, dists, err := s.idx.Search(store.ToFloat32(query), k)
	if err != nil {
		return nil, err
	}

	out := make([]store.Candidate, len(ids))
	for i := range ids {
		out[i] = store.Candidate{ID: ids[i], Distance: float64(dists[i])}
	}
	store.SortCandidates(out)
	return out, nil
}

// GetStatus reports the staged and indexed counts without rebuilding.
func (s *Store) GetStatus(context.Context) (store.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := backend.BaseStatus(s.desc, false)
	st["dimension"] = s.cfg.Dimension
	st["metric"] = s.cfg.Metric
	st["nlist"] = s.cfg.NList
	st["nprobe"] = s.cfg.NProbe
	st["vector_count"] = len(s.ids)
	st["dirty"] = s.dirty
	st["builds"] = s.builds
	if s.idx != nil {
		st["indexed"] = s.idx.Size()
	} else {
		st["indexed"] = 0
	}
	if s.db != nil {
		st["persistence"] = s.cfg.Persistence.Path
	}
	return st, nil
}

// Close releases the persistence handle.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx = nil
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
