package handlers

import (
	"net/http"

	"github.com/marmos91/dittovec/pkg/store/scan"
)

// DistanceRequest is the body of POST /api/v1/distance.
type DistanceRequest struct {
	Metric string    `json:"metric"`
	A      []float64 `json:"a"`
	B      []float64 `json:"b"`
}

// DistanceResponse reports the distance under the resolved metric.
type DistanceResponse struct {
	Metric   scan.Metric `json:"metric" yaml:"metric"`
	Distance float64     `json:"distance" yaml:"distance"`
}

// Distance handles POST /api/v1/distance. An empty metric means euclidean.
func Distance(w http.ResponseWriter, r *http.Request) {
	var req DistanceRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	m, err := scan.ParseMetric(req.Metric)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	d, err := scan.Distance(m, req.A, req.B)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	WriteJSONOK(w, okResponse(DistanceResponse{Metric: m, Distance: d}))
}
