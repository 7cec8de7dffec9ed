// Package handlers provides the HTTP handlers of the dittovec API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/marmos91/dittovec/pkg/store"
)

// Problem is an RFC 7807 "problem details" body.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type of problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &Problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblem(w http.ResponseWriter, p *Problem) {
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, "Not Found", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// MapStoreError returns the HTTP status for an error returned to a request as
// a whole. Per-store failures never reach here; they travel inside the body.
func MapStoreError(err error) int {
	switch store.CodeOf(err) {
	case store.ErrInvalidRequest, store.ErrConfig:
		return http.StatusBadRequest
	case store.ErrStoreUnavailable:
		return http.StatusNotFound
	case store.ErrDuplicateStore:
		return http.StatusConflict
	case store.ErrInitialization, store.ErrAdapter:
		return http.StatusBadGateway
	case store.ErrUnsupported:
		return http.StatusUnprocessableEntity
	case store.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteStoreError writes err as a problem, keeping its error code.
func WriteStoreError(w http.ResponseWriter, err error) {
	status := MapStoreError(err)
	p := &Problem{Type: "about:blank", Title: http.StatusText(status), Status: status, Detail: err.Error()}
	if c := store.CodeOf(err); c != 0 {
		p.Code = c.String()
	}
	writeProblem(w, p)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}
