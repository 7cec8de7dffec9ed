// Package store defines the model shared by the orchestrator and every backend
// kind: descriptors, records, ranked candidates, the capability interfaces an
// adapter may implement, and the StoreError taxonomy.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Category groups stores by the role they play.
type Category string

const (
	CategoryVector     Category = "vector"
	CategoryGraph      Category = "graph"
	CategoryKeyValue   Category = "key_value"
	CategoryRelational Category = "relational"
	CategoryCache      Category = "cache"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryVector,
	CategoryGraph,
	CategoryKeyValue,
	CategoryRelational,
	CategoryCache,
}

// ParseCategory converts a config string into a Category.
// Both "key_value" and "key-value" spellings are accepted.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if slices.Contains(Categories, c) {
		return c, nil
	}
	return "", NewConfigError("", fmt.Sprintf("unknown store category %q", s), nil)
}

// Descriptor is the immutable configuration of one named store.
type Descriptor struct {
	Name     string         `json:"name" yaml:"name"`
	Category Category       `json:"category" yaml:"category"`
	Kind     string         `json:"kind" yaml:"kind"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Enabled  bool           `json:"enabled" yaml:"enabled"`
}

// NormalizeName lower-cases and trims a store name. Config keys are
// case-insensitive, so every name is held in this form.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Record is a vector with its identifier and optional metadata.
type Record struct {
	ID       string         `json:"id"`
	Vector   []float64      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Candidate is one ranked search result. Smaller distance is closer.
type Candidate struct {
	ID       string  `json:"id" yaml:"id"`
	Distance float64 `json:"distance" yaml:"distance"`
}

// Status is a backend-defined status snapshot.
type Status map[string]any

// CompareIDs orders identifiers. Numeric ids sort before non-numeric ones
// and compare by value; everything else compares lexically.
func CompareIDs(a, b string) int {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		if c := cmp.Compare(an, bn); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// CompareCandidates orders by ascending distance, then ascending id.
func CompareCandidates(a, b Candidate) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return CompareIDs(a.ID, b.ID)
}

// SortCandidates sorts in place by (distance, id).
func SortCandidates(cs []Candidate) {
	slices.SortStableFunc(cs, CompareCandidates)
}

// ToFloat32 converts a vector to float32 for engines that store single precision.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// ToFloat64 converts a single precision vector back to float64.
func ToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// CheckDimension validates a vector against a configured dimension.
// A zero dimension accepts any non-empty vector.
func CheckDimension(dim int, v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("empty vector")
	}
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", dim, len(v))
	}
	return nil
}

// ============================================================================
// Capabilities
// ============================================================================

// Capability names an operation a backend kind may support.
type Capability string

const (
	CapAddVector    Capability = "add_vector"
	CapSearchVector Capability = "search_vector"
	CapGetStatus    Capability = "get_status"
)

// Backend is an open handle to a store. Every kind reports status.
type Backend interface {
	GetStatus(ctx context.Context) (Status, error)
	Close(ctx context.Context) error
}

// VectorWriter is implemented by backends that can persist a vector.
type VectorWriter interface {
	AddVector(ctx context.Context, rec Record) error
}

// VectorSearcher is implemented by backends that return ranked neighbours.
// Results must be sorted by (distance, id) and hold at most k entries.
type VectorSearcher interface {
	SearchVector(ctx context.Context, query []float64, k int) ([]Candidate, error)
}

// Adapter creates backends of one kind.
type Adapter interface {
	// Kind is the config name of the backend kind, e.g. "hnsw".
	Kind() string

	// Categories lists the categories a descriptor of this kind may use.
	Categories() []Category

	// Capabilities lists the operations the opened backend supports.
	Capabilities() []Capability

	// FullScan reports whether search is served by the O(n) scan fallback.
	FullScan() bool

	// ValidateConfig checks the kind-specific config without opening anything.
	ValidateConfig(cfg map[string]any) error

	// Open creates a backend handle for the descriptor.
	Open(ctx context.Context, desc Descriptor) (Backend, error)
}

// Supports reports whether the adapter declares the capability.
func Supports(a Adapter, c Capability) bool {
	return slices.Contains(a.Capabilities(), c)
}

// Serves reports whether the adapter may be used under the category.
func Serves(a Adapter, c Category) bool {
	return slices.Contains(a.Categories(), c)
}
