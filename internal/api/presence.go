package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattlunn/karen-sub001/internal/presence"
)

// presenceResponse reports a user's current presence state.
type presenceResponse struct {
	UserID string         `json:"userId"`
	Home   bool           `json:"home"`
	Stay   *presence.Stay `json:"stay,omitempty"`
}

// handleGetPresence returns whether the user is home, with the open stay
// when they are.
func (s *Server) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stay, err := s.tracker.Current(r.Context(), userID)
	if err != nil {
		if errors.Is(err, presence.ErrStayNotFound) {
			writeJSON(w, http.StatusOK, presenceResponse{UserID: userID, Home: false})
			return
		}
		s.logger.Error("failed to read presence", "error", err)
		writeInternalError(w, "failed to read presence")
		return
	}

	writeJSON(w, http.StatusOK, presenceResponse{UserID: userID, Home: true, Stay: stay})
}

// handleGetPresenceHistory returns the user's stays over a window.
func (s *Server) handleGetPresenceHistory(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	stays, err := s.tracker.History(r.Context(), chi.URLParam(r, "userID"), window.Start, window.End)
	if err != nil {
		s.logger.Error("failed to read presence history", "error", err)
		writeInternalError(w, "failed to read presence history")
		return
	}

	if stays == nil {
		stays = []presence.Stay{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stays": stays,
	})
}

// handleArrive marks the user home.
func (s *Server) handleArrive(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stay, err := s.tracker.MarkHome(r.Context(), userID)
	if err != nil {
		if errors.Is(err, presence.ErrInvalidStateTransition) {
			writeConflict(w, "user is already home")
			return
		}
		s.logger.Error("failed to mark user home", "user", userID, "error", err)
		writeInternalError(w, "failed to mark user home")
		return
	}

	writeJSON(w, http.StatusOK, stay)
}

// handleDepart marks the user away.
func (s *Server) handleDepart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stay, err := s.tracker.MarkAway(r.Context(), userID)
	if err != nil {
		if errors.Is(err, presence.ErrInvalidStateTransition) {
			writeConflict(w, "user is already away")
			return
		}
		s.logger.Error("failed to mark user away", "user", userID, "error", err)
		writeInternalError(w, "failed to mark user away")
		return
	}

	writeJSON(w, http.StatusOK, stay)
}

// etaRequest carries an expected arrival time. Unclaimed records that
// someone is on their way without binding it to the user in the URL.
type etaRequest struct {
	ETA       time.Time `json:"eta"`
	Unclaimed bool      `json:"unclaimed,omitempty"`
}

// handleRecordETA registers an expected arrival.
func (s *Server) handleRecordETA(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req etaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ETA.IsZero() {
		writeBadRequest(w, "eta is required")
		return
	}

	var boundUser *string
	if !req.Unclaimed {
		boundUser = &userID
	}

	stay, err := s.tracker.RecordETA(r.Context(), boundUser, req.ETA)
	if err != nil {
		s.logger.Error("failed to record eta", "user", userID, "error", err)
		writeInternalError(w, "failed to record eta")
		return
	}

	writeJSON(w, http.StatusCreated, stay)
}
