// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/veloclub/sortie/internal/domain/dedupe"
	"github.com/veloclub/sortie/pkg/metrics"
)

// Attendance mutation actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// AttendanceDependencies defines the interface for attendance corrections.
type AttendanceDependencies interface {
	dedupe.Deduper
	SetAttendance(ctx context.Context, eventID, memberID, name, group, action string) error
}

// AttendanceHandler handles manual attendance corrections.
type AttendanceHandler struct {
	deps AttendanceDependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps AttendanceDependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// attendanceRequest mirrors the OpenAPI schema for POST /attendance.
type attendanceRequest struct {
	RequestID string `json:"request_id"`
	EventID   string `json:"event_id"`
	MemberID  string `json:"member_id"`
	Name      string `json:"name"`
	Group     string `json:"group"`
	Action    string `json:"action"`
}

func (a attendanceRequest) validate() error {
	switch {
	case strings.TrimSpace(a.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(a.MemberID) == "" && strings.TrimSpace(a.Name) == "":
		return errors.New("missing member_id or name")
	case a.Action != ActionAdd && a.Action != ActionRemove:
		return errors.New("action must be add or remove")
	}
	return nil
}

// HandlePostAttendance handles POST /attendance requests. When a
// request_id is supplied, replays of the same request are acknowledged
// without being applied twice.
func (h *AttendanceHandler) HandlePostAttendance(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_attendance"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	if req.RequestID != "" && h.deps.SeenAndRecord(r.Context(), req.RequestID) {
		metrics.RecordDuplicateRequest()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	err := h.deps.SetAttendance(r.Context(), req.EventID, req.MemberID, req.Name, req.Group, req.Action)
	if err != nil {
		// Roll back the "seen" status so the caller can retry
		if req.RequestID != "" {
			h.deps.Unrecord(r.Context(), req.RequestID)
		}
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	metrics.RecordAttendanceMutation(req.Action)
	writeJSON(w, http.StatusOK, ackResponse{Status: "applied", Duplicate: false})
}
