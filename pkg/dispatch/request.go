package dispatch

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/marmos91/dittovec/pkg/store"
)

// Op is a backend operation the dispatcher can fan out.
type Op int

const (
	OpAdd Op = iota + 1
	OpSearch
	OpStatus
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add_vector"
	case OpSearch:
		return "search_vector"
	case OpStatus:
		return "get_status"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Capability returns the adapter capability the op requires.
func (o Op) Capability() store.Capability {
	switch o {
	case OpAdd:
		return store.CapAddVector
	case OpSearch:
		return store.CapSearchVector
	default:
		return store.CapGetStatus
	}
}

// ParseOp accepts the op names and the short forms add, search and status.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "add_vector":
		return OpAdd, nil
	case "search", "search_vector":
		return OpSearch, nil
	case "status", "get_status":
		return OpStatus, nil
	}
	return 0, store.NewInvalidRequestError(fmt.Sprintf("unknown operation %q", s))
}

// Request is one fan-out. Empty Targets means every enabled store whose kind
// supports Op.
type Request struct {
	ID      string
	Op      Op
	Targets []string
	Exclude []string

	// ExcludeFullScan drops stores that answer searches by scanning.
	ExcludeFullScan bool

	Record store.Record // OpAdd
	Query  []float64    // OpSearch
	K      int          // OpSearch
}

// Validate reports whether the request is structurally sound. It is the only
// failure Execute returns for the request as a whole.
func (r *Request) Validate() error {
	switch r.Op {
	case OpAdd:
		if strings.TrimSpace(r.Record.ID) == "" {
			return store.NewInvalidRequestError("add requires a vector id")
		}
		if len(r.Record.Vector) == 0 {
			return store.NewInvalidRequestError("add requires a non-empty vector")
		}
		if !finite(r.Record.Vector) {
			return store.NewInvalidRequestError("vector contains NaN or Inf")
		}
	case OpSearch:
		if r.K <= 0 {
			return store.NewInvalidRequestError(fmt.Sprintf("k must be positive, got %d", r.K))
		}
		if len(r.Query) == 0 {
			return store.NewInvalidRequestError("search requires a non-empty query vector")
		}
		if !finite(r.Query) {
			return store.NewInvalidRequestError("query contains NaN or Inf")
		}
	case OpStatus:
	default:
		return store.NewInvalidRequestError(fmt.Sprintf("unknown operation %s", r.Op))
	}
	return nil
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Outcome is the result of one store's unit of work.
type Outcome struct {
	Store      string
	Kind       string
	Op         Op
	Candidates []store.Candidate // OpSearch
	Status     store.Status      // OpStatus
	Err        error
	Duration   time.Duration
}

// OK reports whether the unit succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Code returns the error code name, or "" on success.
func (o Outcome) Code() string {
	if o.Err == nil {
		return ""
	}
	if c := store.CodeOf(o.Err); c != 0 {
		return c.String()
	}
	return store.ErrAdapter.String()
}
