package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/marmos91/dittovec/pkg/dispatch"
	"github.com/marmos91/dittovec/pkg/store"
)

// maxBodyBytes bounds request bodies; a 4096-dimension vector with metadata
// fits comfortably.
const maxBodyBytes = 4 << 20

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// splitList parses a comma separated query parameter. Empty entries are
// dropped.
func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// VectorID accepts a JSON string or number, so clients may send
// {"id": 7} or {"id": "7"}.
type VectorID string

func (id *VectorID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = VectorID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}
	*id = VectorID(n.String())
	return nil
}

// OutcomeView is the JSON form of one store's outcome.
type OutcomeView struct {
	Store      string            `json:"store" yaml:"store"`
	Kind       string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	OK         bool              `json:"ok" yaml:"ok"`
	Code       string            `json:"code,omitempty" yaml:"code,omitempty"`
	Message    string            `json:"message,omitempty" yaml:"message,omitempty"`
	DurationMs float64           `json:"duration_ms" yaml:"duration_ms"`
	Results    []store.Candidate `json:"results,omitempty" yaml:"results,omitempty"`
	Status     store.Status      `json:"status,omitempty" yaml:"status,omitempty"`
}

func outcomeView(o dispatch.Outcome, withResults bool) OutcomeView {
	v := OutcomeView{
		Store:      o.Store,
		Kind:       o.Kind,
		OK:         o.OK(),
		DurationMs: float64(o.Duration.Microseconds()) / 1000,
		Status:     o.Status,
	}
	if withResults && o.OK() && o.Op == dispatch.OpSearch {
		v.Results = o.Candidates
	}
	if o.Err != nil {
		v.Code = o.Code()
		v.Message = o.Err.Error()
	}
	return v
}

// OutcomeViews renders outcomes ordered by store name. Search candidates
// are included only when withResults is set.
func OutcomeViews(outcomes map[string]dispatch.Outcome, withResults bool) []OutcomeView {
	out := make([]OutcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, outcomeView(o, withResults))
	}
	slices.SortFunc(out, func(a, b OutcomeView) int { return strings.Compare(a.Store, b.Store) })
	return out
}
