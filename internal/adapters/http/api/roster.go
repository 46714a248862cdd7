// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/veloclub/sortie/internal/domain/model"
)

// RosterDependencies defines the interface for member and event listings.
type RosterDependencies interface {
	Members(ctx context.Context) ([]*model.Member, error)
	Events(ctx context.Context) ([]*model.Event, error)
}

// RosterHandler handles member and event listing requests.
type RosterHandler struct {
	deps RosterDependencies
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(deps RosterDependencies) *RosterHandler {
	return &RosterHandler{deps: deps}
}

// HandleGetMembers handles GET /members requests.
func (h *RosterHandler) HandleGetMembers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_members"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	members, err := h.deps.Members(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// HandleGetEvents handles GET /events requests.
func (h *RosterHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_events"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	events, err := h.deps.Events(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}
