// Package scan implements the full-scan search fallback used by stores with no
// native vector index (key-value, relational and cache kinds).
//
// A scan evaluates every stored vector against the query, so each search costs
// O(n) distance computations plus O(n log k) heap work. Kinds that use it
// declare FullScan() so federated requests can exclude them.
package scan

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/liliang-cn/sqvect/v2/pkg/index"

	"github.com/marmos91/dittovec/pkg/store"
)

// Epsilon bounds the float32 rounding error of a scanned distance. A stored
// vector equal to the query scores within Epsilon of zero.
const Epsilon = 1e-5

// Metric names a distance function. Every metric is a distance: smaller is closer.
type Metric string

const (
	Euclidean Metric = "euclidean"
	Cosine    Metric = "cosine"
	Dot       Metric = "dot"
	Manhattan Metric = "manhattan"
	Hamming   Metric = "hamming"
)

// DistanceFunc computes the distance between two equal-length vectors.
type DistanceFunc func(a, b []float32) float32

// ParseMetric resolves a metric name. The empty string means Euclidean.
func ParseMetric(name string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(name))); m {
	case "", Euclidean:
		return Euclidean, nil
	case Cosine, Dot, Manhattan, Hamming:
		return m, nil
	case "dot_product", "inner_product":
		return Dot, nil
	case "l1", "taxicab":
		return Manhattan, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", name)
	}
}

// Func returns the distance function for the metric.
func (m Metric) Func() DistanceFunc {
	switch m {
	case Cosine:
		return index.CosineDistance
	case Dot:
		return index.DotProductDistance
	case Manhattan:
		return manhattanDistance
	case Hamming:
		return hammingDistance
	default:
		return index.EuclideanDistance
	}
}

// manhattanDistance is the L1 norm of a-b.
func manhattanDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// hammingDistance counts the positions where a and b differ.
func hammingDistance(a, b []float32) float32 {
	var n float32
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

// Distance computes the metric between two float64 vectors.
func Distance(m Metric, a, b []float64) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("vectors must be non-empty and of equal length (got %d and %d)", len(a), len(b))
	}
	return float64(m.Func()(store.ToFloat32(a), store.ToFloat32(b))), nil
}

// Scanner is the full-scan strategy bound to a metric.
type Scanner struct {
	metric Metric
	dist   DistanceFunc
}

// New returns a Scanner for the metric.
func New(m Metric) *Scanner {
	return &Scanner{metric: m, dist: m.Func()}
}

// Metric returns the scanner's metric.
func (s *Scanner) Metric() Metric {
	return s.metric
}

// Begin starts a scan for the k nearest neighbours of query.
func (s *Scanner) Begin(query []float64, k int) *Collector {
	return &Collector{
		dist:  s.dist,
		query: store.ToFloat32(query),
		k:     k,
		top:   make(candidateHeap, 0, min(k, 1024)),
	}
}

// Collector keeps the k best candidates seen so far.
type Collector struct {
	dist    DistanceFunc
	query   []float32
	k       int
	top     candidateHeap
	scanned int
	skipped int
}

// Offer evaluates one stored vector. Vectors whose dimension differs from
// the query are skipped and counted.
func (c *Collector) Offer(id string, vec []float32) {
	if len(vec) != len(c.query) {
		c.skipped++
		return
	}
	c.scanned++
	if c.k <= 0 {
		return
	}

	cand := store.Candidate{ID: id, Distance: float64(c.dist(c.query, vec))}
	if len(c.top) < c.k {
		heap.Push(&c.top, cand)
		return
	}
	// top[0] is the current worst kept candidate.
	if store.CompareCandidates(cand, c.top[0]) < 0 {
		c.top[0] = cand
		heap.Fix(&c.top, 0)
	}
}

// Offer64 is Offer for float64 vectors.
func (c *Collector) Offer64(id string, vec []float64) {
	if len(vec) != len(c.query) {
		c.skipped++
		return
	}
	c.Offer(id, store.ToFloat32(vec))
}

// Scanned returns how many vectors were evaluated.
func (c *Collector) Scanned() int { return c.scanned }

// Skipped returns how many vectors had a mismatched dimension.
func (c *Collector) Skipped() int { return c.skipped }

// Results returns the kept candidates sorted by (distance, id).
func (c *Collector) Results() []store.Candidate {
	out := make([]store.Candidate, len(c.top))
	copy(out, c.top)
	store.SortCandidates(out)
	return out
}

// candidateHeap is a max-heap on (distance, id) so the worst candidate is on top.
type candidateHeap []store.Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return store.CompareCandidates(h[i], h[j]) > 0 }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(store.Candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
