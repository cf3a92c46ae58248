package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattlunn/karen-sub001/internal/event"
)

// stateResponse is the current value of one property.
type stateResponse struct {
	SubjectID   string     `json:"subjectId"`
	PropertyKey string     `json:"propertyKey"`
	Value       float64    `json:"value"`
	Open        bool       `json:"open"`
	Since       time.Time  `json:"since"`
	Until       *time.Time `json:"until,omitempty"`
}

// setStateRequest records an observation. Value is a JSON boolean or
// number; the timestamp defaults to now.
type setStateRequest struct {
	Value     any        `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// handleGetState returns the latest interval for a property.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	propertyKey := chi.URLParam(r, "propertyKey")

	iv, err := s.store.Latest(r.Context(), subjectID, propertyKey)
	if err != nil {
		if errors.Is(err, event.ErrIntervalNotFound) {
			writeNotFound(w, "no state recorded for property")
			return
		}
		s.logger.Error("failed to read latest interval", "error", err)
		writeInternalError(w, "failed to read state")
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{
		SubjectID:   iv.SubjectID,
		PropertyKey: iv.PropertyKey,
		Value:       iv.Value,
		Open:        iv.IsOpen(),
		Since:       iv.Start,
		Until:       iv.End,
	})
}

// handleSetState records an observed value for a property.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	propertyKey := chi.URLParam(r, "propertyKey")

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	at := time.Now().UTC()
	if req.Timestamp != nil {
		at = req.Timestamp.UTC()
	}

	var err error
	switch value := req.Value.(type) {
	case bool:
		err = s.store.SetBool(r.Context(), subjectID, propertyKey, value, at)
	case float64:
		err = s.store.SetNumber(r.Context(), subjectID, propertyKey, value, at)
	default:
		writeBadRequest(w, "value must be a boolean or a number")
		return
	}
	if err != nil {
		s.logger.Error("failed to record state", "error", err)
		writeInternalError(w, "failed to record state")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetHistory returns the reconciled interval sequence over a window.
//
// Query parameters: start and end (RFC 3339, required), expectGaps
// (optional boolean, default false).
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	expectGaps := r.URL.Query().Get("expectGaps") == "true"

	intervals, err := s.store.History(r.Context(),
		chi.URLParam(r, "subjectID"), chi.URLParam(r, "propertyKey"),
		window, expectGaps)
	if err != nil {
		s.logger.Error("failed to read history", "error", err)
		writeInternalError(w, "failed to read history")
		return
	}

	if intervals == nil {
		intervals = []event.Interval{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intervals": intervals,
	})
}

// bucketResponse is one aggregation slot.
type bucketResponse struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Min             *float64  `json:"min"`
	Max             *float64  `json:"max"`
	Average         *float64  `json:"average"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// handleGetAggregate returns bucketed statistics over a window.
//
// Query parameters: start and end (RFC 3339, required), bucket (Go
// duration string, required, e.g. "1h"), expectGaps (optional boolean).
func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	size, err := time.ParseDuration(r.URL.Query().Get("bucket"))
	if err != nil || size <= 0 {
		writeBadRequest(w, "bucket must be a positive duration, e.g. 1h")
		return
	}

	expectGaps := r.URL.Query().Get("expectGaps") == "true"

	intervals, err := s.store.History(r.Context(),
		chi.URLParam(r, "subjectID"), chi.URLParam(r, "propertyKey"),
		window, expectGaps)
	if err != nil {
		s.logger.Error("failed to read history for aggregation", "error", err)
		writeInternalError(w, "failed to aggregate history")
		return
	}

	buckets := []bucketResponse{}
	it := event.Buckets(intervals, window.Start, window.End, size)
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		buckets = append(buckets, bucketResponse{
			Start:           b.Start,
			End:             b.End,
			Min:             b.Min(),
			Max:             b.Max(),
			Average:         b.Average(),
			DurationSeconds: b.Duration().Seconds(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"buckets": buckets,
	})
}

// parseWindow reads the start and end query parameters. On failure it
// writes a 400 response and returns ok=false.
func parseWindow(w http.ResponseWriter, r *http.Request) (event.Window, bool) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeBadRequest(w, "start must be an RFC 3339 timestamp")
		return event.Window{}, false
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeBadRequest(w, "end must be an RFC 3339 timestamp")
		return event.Window{}, false
	}
	if !end.After(start) {
		writeBadRequest(w, "end must be after start")
		return event.Window{}, false
	}
	return event.Window{Start: start.UTC(), End: end.UTC()}, true
}
