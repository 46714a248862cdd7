// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// ScoresDependencies defines the interface for scoreboard reads.
type ScoresDependencies interface {
	Scores(ctx context.Context, year string) (Scoreboard, error)
}

// ScoresHandler handles scoreboard requests.
type ScoresHandler struct {
	deps ScoresDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoresDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleGetScores handles GET /scores?year=YYYY requests.
func (h *ScoresHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scores"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	year := r.URL.Query().Get("year")
	if year == "" {
		year = strconv.Itoa(time.Now().Year())
	}
	if !yearRe.MatchString(year) {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	board, err := h.deps.Scores(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, board)
}
