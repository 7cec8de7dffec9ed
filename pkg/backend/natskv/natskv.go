// Package natskv implements a cache store on a NATS JetStream key-value bucket.
//
// Keys are the base64url form of the record id, since ids may contain
// characters NATS does not allow in keys. Search lists every key and scans.
package natskv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Kind is the config name of this backend.
const Kind = "natskv"

const keyPrefix = "v."

// Config holds the natskv kind tunables.
type Config struct {
	URL       string        `mapstructure:"url" validate:"required"`
	Bucket    string        `mapstructure:"bucket" validate:"required,excludesall=. *>"`
	TTL       time.Duration `mapstructure:"ttl"`
	Replicas  int           `mapstructure:"replicas" validate:"gte=0,lte=5"`
	InMemory  bool          `mapstructure:"in_memory"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Dimension int           `mapstructure:"dimension" validate:"gte=0"`
	Metric    string        `mapstructure:"metric" validate:"omitempty,oneof=euclidean cosine dot manhattan hamming"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Replicas == 0 {
		c.Replicas = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Metric == "" {
		c.Metric = string(scan.Euclidean)
	}
}

// Adapter opens natskv stores.
type Adapter struct{}

func (Adapter) Kind() string                 { return Kind }
func (Adapter) Categories() []store.Category { return []store.Category{store.CategoryCache} }
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

	nc, err := nats.Connect(cfg.URL,
		nats.Name("dittovec:"+desc.Name),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	storage := jetstream.FileStorage
	if cfg.InMemory {
		storage = jetstream.MemoryStorage
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Bucket,
		History:  1,
		TTL:      cfg.TTL,
		Storage:  storage,
		Replicas: cfg.Replicas,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create key-value bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{desc: desc, cfg: cfg, nc: nc, kv: kv, scanner: scan.New(metric)}, nil
}

// Store is an open natskv backend.
type Store struct {
	desc    store.Descriptor
	cfg     *Config
	nc      *nats.Conn
	kv      jetstream.KeyValue
	scanner *scan.Scanner
}

type value struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func encodeKey(id string) string {
	return keyPrefix + base64.RawURLEncoding.EncodeToString([]byte(id))
}

// AddVector puts the record under its encoded key.
func (s *Store) AddVector(ctx context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	data, err := json.Marshal(value{ID: rec.ID, Vector: store.ToFloat32(rec.Vector), Metadata: rec.Metadata})
	if err != nil {
		return fmt.Errorf("failed to encode vector %q: %w", rec.ID, err)
	}
	if _, err := s.kv.Put(ctx, encodeKey(rec.ID), data); err != nil {
		return fmt.Errorf("nats kv put %q: %w", rec.ID, err)
	}
	return nil
}

// SearchVector lists every key in the bucket and scans the values.
func (s *Store) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("nats kv list keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	c := s.scanner.Begin(query, k)
	for key := range lister.Keys() {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				// deleted or expired between list and get
				continue
			}
			return nil, fmt.Errorf("nats kv get: %w", err)
		}

		var v value
		if err := json.Unmarshal(entry.Value(), &v); err != nil {
			return nil, fmt.Errorf("corrupt vector under key %s: %w", key, err)
		}
		c.Offer(v.ID, v.Vector)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Results(), nil
}

// GetStatus reports the bucket's own accounting.
func (s *Store) GetStatus(ctx context.Context) (store.Status, error) {
	status, err := s.kv.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("nats kv status: %w", err)
	}

	st := backend.BaseStatus(s.desc, true)
	st["bucket"] = status.Bucket()
	st["ttl"] = status.TTL().String()
	st["bytes"] = status.Bytes()
	st["metric"] = string(s.scanner.Metric())
	st["dimension"] = s.cfg.Dimension
	st["vector_count"] = status.Values()
	return st, nil
}

// Close drains the connection so in-flight puts complete.
func (s *Store) Close(context.Context) error {
	return s.nc.Drain()
}
