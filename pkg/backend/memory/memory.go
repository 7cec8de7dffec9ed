// Package memory implements an in-process key-value store of vectors.
// Contents are lost on Close. Search uses the full-scan fallback.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Kind is the config name of this backend.
const Kind = "memory"

// Config holds the memory kind tunables.
type Config struct {
	Dimension  int    `mapstructure:"dimension" validate:"gte=0"`
	Metric     string `mapstructure:"metric" validate:"omitempty,oneof=euclidean cosine dot manhattan hamming"`
	MaxVectors int    `mapstructure:"max_vectors" validate:"gte=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Metric == "" {
		c.Metric = string(scan.Euclidean)
	}
}

// Adapter opens memory stores.
type Adapter struct{}

func (Adapter) Kind() string { return Kind }
func (Adapter) Categories() []store.Category {
	return []store.Category{store.CategoryKeyValue, store.CategoryCache}
}
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
	return &Store{
		desc:    desc,
		cfg:     cfg,
		scanner: scan.New(metric),
		vectors: make(map[string][]float32),
	}, nil
}

// Store is an open memory backend.
type Store struct {
	desc    store.Descriptor
	cfg     *Config
	scanner *scan.Scanner

	mu      sync.RWMutex
	vectors map[string][]float32
	closed  bool
}

// AddVector stores or replaces the vector under rec.ID.
func (s *Store) AddVector(_ context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store closed")
	}
	if _, exists := s.vectors[rec.ID]; !exists && s.cfg.MaxVectors > 0 && len(s.vectors) >= s.cfg.MaxVectors {
		return fmt.Errorf("store full: %d vectors", s.cfg.MaxVectors)
	}
	s.vectors[rec.ID] = store.ToFloat32(rec.Vector)
	return nil
}

// SearchVector scans every stored vector.
func (s *Store) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store closed")
	}

	c := s.scanner.Begin(query, k)
	for id, vec := range s.vectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.Offer(id, vec)
	}
	return c.Results(), nil
}

// GetStatus reports the vector count.
func (s *Store) GetStatus(context.Context) (store.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := backend.BaseStatus(s.desc, true)
	st["metric"] = string(s.scanner.Metric())
	st["dimension"] = s.cfg.Dimension
	st["vector_count"] = len(s.vectors)
	return st, nil
}

// Close drops every vector.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vectors = nil
	s.closed = true
	return nil
}
