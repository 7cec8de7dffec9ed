// Package s3 implements a key-value vector store on an S3 bucket.
//
// Each record is one JSON object under the configured key prefix. Search lists
// and fetches every object, so it is the most expensive full scan of all kinds.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Kind is the config name of this backend.
const Kind = "s3"

// Config holds the s3 kind tunables.
type Config struct {
	Bucket string `mapstructure:"bucket" validate:"required"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region"`

	// Endpoint is the S3 endpoint URL for S3-compatible services such as MinIO.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	KeyPrefix      string `mapstructure:"key_prefix"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`

	// Static credentials; when empty the SDK default chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`

	Dimension int    `mapstructure:"dimension" validate:"gte=0"`
	Metric    string `mapstructure:"metric" validate:"omitempty,oneof=euclidean cosine dot manhattan hamming"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "vectors/"
	}
	if c.Metric == "" {
		c.Metric = string(scan.Euclidean)
	}
}

// Adapter opens s3 stores.
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

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{desc: desc, cfg: cfg, client: client, scanner: scan.New(metric)}
	if err := s.healthCheck(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newClient(ctx context.Context, cfg *Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// Store is an open s3 backend.
type Store struct {
	desc    store.Descriptor
	cfg     *Config
	client  *s3.Client
	scanner *scan.Scanner
}

type object struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Store) key(id string) string {
	return s.cfg.KeyPrefix + id + ".json"
}

// AddVector writes the record as one object, replacing any previous version.
func (s *Store) AddVector(ctx context.Context, rec store.Record) error {
	if err := store.CheckDimension(s.cfg.Dimension, rec.Vector); err != nil {
		return err
	}

	data, err := json.Marshal(object{ID: rec.ID, Vector: store.ToFloat32(rec.Vector), Metadata: rec.Metadata})
	if err != nil {
		return fmt.Errorf("failed to encode vector %q: %w", rec.ID, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.key(rec.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// SearchVector lists every object under the prefix and scans it.
func (s *Store) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := store.CheckDimension(s.cfg.Dimension, query); err != nil {
		return nil, err
	}

	c := s.scanner.Begin(query, k)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.KeyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			o, err := s.get(ctx, aws.ToString(obj.Key))
			if err != nil {
				if isNotFoundError(err) {
					// deleted between list and get
					continue
				}
				return nil, err
			}
			c.Offer(o.ID, o.Vector)
		}
	}
	return c.Results(), nil
}

func (s *Store) get(ctx context.Context, key string) (*object, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object %s: %w", key, err)
	}

	var o object
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("corrupt vector object %s: %w", key, err)
	}
	if o.ID == "" {
		o.ID = strings.TrimSuffix(strings.TrimPrefix(key, s.cfg.KeyPrefix), ".json")
	}
	return &o, nil
}

// GetStatus checks bucket access. Counting objects would need a listing,
// so no vector count is reported.
func (s *Store) GetStatus(ctx context.Context) (store.Status, error) {
	if err := s.healthCheck(ctx); err != nil {
		return nil, err
	}

	st := backend.BaseStatus(s.desc, true)
	st["bucket"] = s.cfg.Bucket
	st["key_prefix"] = s.cfg.KeyPrefix
	st["region"] = s.cfg.Region
	st["endpoint"] = s.cfg.Endpoint
	st["metric"] = string(s.scanner.Metric())
	st["dimension"] = s.cfg.Dimension
	return st, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close(context.Context) error {
	return nil
}

// healthCheck performs a HeadBucket call to check connectivity and permissions.
func (s *Store) healthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %q not reachable: %w", s.cfg.Bucket, err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}
