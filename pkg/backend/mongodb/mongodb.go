// Package mongodb implements a key-value vector store on a MongoDB collection.
// Each record is one document keyed by its id. Search is a full scan through
// a cursor that projects only the id and vector.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Kind is the config name of this backend.
const Kind = "mongodb"

// Config holds the mongodb kind tunables.
type Config struct {
	URI            string        `mapstructure:"uri" validate:"required"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	BatchSize      int32         `mapstructure:"batch_size" validate:"gte=0"`
	Dimension      int           `mapstructure:"dimension" validate:"gte=0"`
	Metric         string        `mapstructure:"metric" validate:"omitempty,oneof=euclidean cosine dot manhattan hamming"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Database == "" {
		c.Database = "dittovec"
	}
	if c.Collection == "" {
		c.Collection = "vectors"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 500
	}
	if c.Metric == "" {
		c.Metric = string(scan.Euclidean)
	}
}

// Adapter opens mongodb stores.
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

func (Adapter) Open(ctx context.Context, desc store.Descriptor) (store.Backend, error) {
	cfg, err := store.LoadConfig[Config](desc.Config)
	if err != nil {
		return nil, err
	}
	metric, err := scan.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	clientOpts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{
		desc:    desc,
		cfg:     cfg,
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		scanner: scan.New(metric),
	}, nil
}

// Store is an open mongodb backend.
type Store struct {
	desc    store.Descriptor
	cfg     *Config
	client  *mongo.Client
	coll    *mongo.Collection
	scanner *scan.Scanner
}

type document struct {
	ID       string         `bson:"_id"`
	Vector   []float64      `bson:"vector"`
	Metadata map[string]any `bson:"metadata,omitempty"`
}

// AddVector upserts the document for rec.ID.
func (s *Store) AddVector(ctx context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	doc := document{ID: rec.ID, Vector: rec.Vector, Metadata: rec.Metadata}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert %q: %w", rec.ID, err)
	}
	return nil
}

// SearchVector streams every document through the scan collector.
func (s *Store) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	findOpts := options.Find().
		SetProjection(bson.M{"_id": 1, "vector": 1}).
		SetBatchSize(s.cfg.BatchSize)

	cursor, err := s.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	c := s.scanner.Begin(query, k)
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode: %w", err)
		}
		c.Offer64(doc.ID, doc.Vector)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return c.Results(), nil
}

// GetStatus pings the server and reports the estimated document count,
// which reads collection metadata rather than scanning.
func (s *Store) GetStatus(ctx context.Context) (store.Status, error) {
	if err := s.client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	count, err := s.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return nil, err
	}

	st := backend.BaseStatus(s.desc, true)
	st["database"] = s.cfg.Database
	st["collection"] = s.cfg.Collection
	st["metric"] = string(s.scanner.Metric())
	st["dimension"] = s.cfg.Dimension
	st["vector_count"] = count
	return st, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
