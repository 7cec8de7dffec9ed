// Package hnsw implements a file-backed vector store on a veclite HNSW
// collection. Search is native and ranked by the index.
package hnsw

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/veclite"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
)

// Kind is the config name of this backend.
const Kind = "hnsw"

const (
	payloadID       = "id"
	payloadMetadata = "metadata"
)

// Config holds the hnsw kind tunables.
type Config struct {
	Path           string `mapstructure:"path" validate:"required"`
	Collection     string `mapstructure:"collection"`
	Dimension      int    `mapstructure:"dimension" validate:"required,gt=0"`
	Metric         string `mapstructure:"metric" validate:"omitempty,oneof=euclidean cosine"`
	M              int    `mapstructure:"m" validate:"gte=0"`
	EfConstruction int    `mapstructure:"ef_construction" validate:"gte=0"`
	SyncOnWrite    bool   `mapstructure:"sync_on_write"`
}

// ApplyDefaults fills unset fields with the usual HNSW parameters.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "vectors"
	}
	if c.Metric == "" {
		c.Metric = "euclidean"
	}
	if c.M == 0 {
		c.M = 16
	}
	if c.EfConstruction == 0 {
		c.EfConstruction = 200
	}
}

// Adapter opens hnsw stores.
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

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create hnsw directory: %w", err)
		}
	}

	db, err := veclite.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open veclite database: %w", err)
	}

	distance := veclite.WithDistanceType(veclite.DistanceEuclidean)
	if cfg.Metric == "cosine" {
		distance = veclite.WithDistanceType(veclite.DistanceCosine)
	}

	coll, err := db.CreateCollection(cfg.Collection,
		veclite.WithDimension(cfg.Dimension),
		distance,
		veclite.WithHNSW(cfg.M, cfg.EfConstruction),
	)
	if err != nil {
		// Collection might already exist
		coll, err = db.GetCollection(cfg.Collection)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create/get collection %q: %w", cfg.Collection, err)
		}
	}

	return &Store{desc: desc, cfg: cfg, db: db, coll: coll}, nil
}

// Store is an open hnsw backend.
type Store struct {
	desc store.Descriptor
	cfg  *Config
	db   *veclite.DB
	coll *veclite.Collection
}

// AddVector inserts the record, replacing any earlier vector with the same id.
func (s *Store) AddVector(_ context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	if _, err := s.coll.DeleteWhere(veclite.Equal(payloadID, rec.ID)); err != nil {
		return fmt.Errorf("failed to replace vector %q: %w", rec.ID, err)
	}

	payload := map[string]any{payloadID: rec.ID}
	if len(rec.Metadata) > 0 {
		payload[payloadMetadata] = rec.Metadata
	}
	if _, err := s.coll.Insert(store.ToFloat32(rec.Vector), payload); err != nil {
		return fmt.Errorf("failed to insert vector %q: %w", rec.ID, err)
	}

	if s.cfg.SyncOnWrite {
		return s.db.Sync()
	}
	return nil
}

// SearchVector delegates to the HNSW index.
func (s *Store) SearchVector(_ context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	results, err := s.coll.Search(store.ToFloat32(query), veclite.TopK(k))
	if err != nil {
		return nil, err
	}

	out := make([]store.Candidate, 0, len(results))
	for _, r := range results {
		id, _ := r.Record.Payload[payloadID].(string)
		if id == "" {
			id = fmt.Sprint(r.Record.ID)
		}
		d := float64(r.Score)
		if s.cfg.Metric == "cosine" {
			// veclite scores cosine as similarity.
			d = 1 - d
		}
		out = append(out, store.Candidate{ID: id, Distance: d})
	}
	// The index orders by score only; ties need the id order.
	store.SortCandidates(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// GetStatus reports the configured index parameters and the vector count.
func (s *Store) GetStatus(context.Context) (store.Status, error) {
	st := backend.BaseStatus(s.desc, false)
	st["dimension"] = s.cfg.Dimension
	st["metric"] = s.cfg.Metric
	st["m"] = s.cfg.M
	st["ef_construction"] = s.cfg.EfConstruction
	st["path"] = s.cfg.Path
	st["vector_count"] = int64(s.coll.Count())
	return st, nil
}

// Close flushes pending writes and closes the database.
func (s *Store) Close(context.Context) error {
	syncErr := s.db.Sync()
	if err := s.db.Close(); err != nil {
		return err
	}
	return syncErr
}
