package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattlunn/karen-sub001/internal/capability"
)

// commandRequest asks a provider to drive one property of a subject.
// Boolean properties take 0 for false and any other value for true.
type commandRequest struct {
	Provider   string  `json:"provider"`
	Capability string  `json:"capability"`
	Value      float64 `json:"value"`
}

// handleCommand issues a hardware command through the capability layer.
//
// The command is delegated to the provider's handler and nothing is
// recorded: the resulting state change enters history once the provider
// observes it, so the response is 202 rather than 200.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	propertyKey := chi.URLParam(r, "propertyKey")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Provider == "" || req.Capability == "" {
		writeBadRequest(w, "provider and capability are required")
		return
	}

	descriptors, ok := s.capabilities[req.Capability]
	if !ok {
		writeBadRequest(w, "unknown capability "+req.Capability)
		return
	}

	built, err := capability.BuildCapability(
		capability.Subject{ID: subjectID, ProviderID: req.Provider},
		req.Capability, descriptors, s.registry, s.store)
	if err != nil {
		if errors.Is(err, capability.ErrProviderNotRegistered) ||
			errors.Is(err, capability.ErrCapabilityUnsupported) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("failed to build capability", "error", err)
		writeInternalError(w, "failed to build capability")
		return
	}

	prop, err := built.Property(propertyKey)
	if err != nil {
		writeNotFound(w, "capability has no property "+propertyKey)
		return
	}

	if err := prop.Set(r.Context(), req.Value); err != nil {
		if errors.Is(err, capability.ErrPropertyNotWriteable) {
			writeBadRequest(w, "property "+propertyKey+" is not writeable")
			return
		}
		s.logger.Error("command failed",
			"subject", subjectID, "property", propertyKey, "error", err)
		writeInternalError(w, "command failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
