package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/marmos91/dittovec/pkg/store"
)

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid request", store.NewInvalidRequestError("k must be positive"), http.StatusBadRequest},
		{"config", store.NewConfigError("x", "bad", nil), http.StatusBadRequest},
		{"unknown store", store.NewStoreUnavailableError("x", "unknown store", nil), http.StatusNotFound},
		{"init failure", store.NewInitializationError("x", "hnsw", errors.New("boom")), http.StatusBadGateway},
		{"timeout", store.NewTimeoutError("x", nil), http.StatusGatewayTimeout},
		{"unknown error", errors.New("something unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapStoreError(tt.err); got != tt.wantStatus {
				t.Errorf("MapStoreError(%v) = %d, want %d", tt.err, got, tt.wantStatus)
			}
		})
	}
}

func TestWriteStoreErrorKeepsCode(t *testing.T) {
	w := httptest.NewRecorder()
	WriteStoreError(w, store.NewStoreUnavailableError("ghost", "unknown store", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != ContentTypeProblemJSON {
		t.Errorf("Expected problem content type, got %q", ct)
	}
	var p Problem
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("Failed to decode problem: %v", err)
	}
	if p.Code != "StoreUnavailable" {
		t.Errorf("Expected code StoreUnavailable, got %q", p.Code)
	}
}

func TestVectorIDAcceptsStringOrNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want VectorID
	}{
		{`7`, "7"},
		{`"7"`, "7"},
		{`"doc-1"`, "doc-1"},
		{`12345678901234567890`, "12345678901234567890"},
	}
	for _, tt := range tests {
		var id VectorID
		if err := json.Unmarshal([]byte(tt.raw), &id); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", tt.raw, err)
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.raw, id, tt.want)
		}
	}

	var id VectorID
	if err := json.Unmarshal([]byte(`{"n": 1}`), &id); err == nil {
		t.Error("Expected an object id to be rejected")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b,c ")
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("splitList = %v", got)
	}
	if splitList("") != nil {
		t.Error("Expected nil for empty input")
	}
}
