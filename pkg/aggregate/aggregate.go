// Package aggregate merges per-store search results into one global ranking.
package aggregate

import (
	"cmp"
	"container/heap"
	"strings"

	"github.com/marmos91/dittovec/pkg/dispatch"
	"github.com/marmos91/dittovec/pkg/store"
)

// Hit is one entry of a federated ranking.
type Hit struct {
	Store    string  `json:"store" yaml:"store"`
	ID       string  `json:"id" yaml:"id"`
	Distance float64 `json:"distance" yaml:"distance"`
}

// Compare orders hits by distance, then store name, then id.
func Compare(a, b Hit) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	if c := strings.Compare(a.Store, b.Store); c != 0 {
		return c
	}
	return store.CompareIDs(a.ID, b.ID)
}

// Federated merges lists, each already sorted by (distance, id), and returns
// the first k hits of the global order. The result has min(k, total) entries.
func Federated(lists map[string][]store.Candidate, k int) []Hit {
	if k <= 0 {
		return nil
	}

	h := make(cursorHeap, 0, len(lists))
	total := 0
	for name, cands := range lists {
		if len(cands) == 0 {
			continue
		}
		total += len(cands)
		h = append(h, &cursor{store: name, cands: cands})
	}
	heap.Init(&h)

	out := make([]Hit, 0, min(k, total))
	for len(out) < k && h.Len() > 0 {
		c := h[0]
		out = append(out, c.hit())
		c.pos++
		if c.pos == len(c.cands) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}

// FromOutcomes merges the candidates of successful search outcomes. Failed
// stores contribute nothing.
func FromOutcomes(outcomes map[string]dispatch.Outcome, k int) []Hit {
	lists := make(map[string][]store.Candidate, len(outcomes))
	for name, o := range outcomes {
		if o.OK() && o.Op == dispatch.OpSearch {
			lists[name] = o.Candidates
		}
	}
	return Federated(lists, k)
}

type cursor struct {
	store string
	cands []store.Candidate
	pos   int
}

func (c *cursor) hit() Hit {
	cand := c.cands[c.pos]
	return Hit{Store: c.store, ID: cand.ID, Distance: cand.Distance}
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return Compare(h[i].hit(), h[j].hit()) < 0 }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)        { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}
