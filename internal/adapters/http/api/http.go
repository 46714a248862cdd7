// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/veloclub/sortie/internal/adapters/recordstore"
	"github.com/veloclub/sortie/internal/domain/dedupe"
	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// ReconcilePeriod imports a wide attendance sheet for a calendar year.
	ReconcilePeriod(ctx context.Context, csvText, year string) (Summary, error)

	// SetAttendance applies a single add/remove attendance correction.
	SetAttendance(ctx context.Context, eventID, memberID, name, group, action string) error

	// Read operations expose scoreboard data.
	Scores(ctx context.Context, year string) (Scoreboard, error)
	Rank(ctx context.Context, memberID, year string) (Entry, error)
	Members(ctx context.Context) ([]*model.Member, error)
	Events(ctx context.Context) ([]*model.Event, error)
}

// Entry, Scoreboard and Summary mirror the read shapes returned by queries.
type (
	Entry      = types.ScoreEntry
	Scoreboard = types.Scoreboard
	Summary    = types.Summary
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	importsHandler    *ImportsHandler
	attendanceHandler *AttendanceHandler
	scoresHandler     *ScoresHandler
	rankHandler       *RankHandler
	rosterHandler     *RosterHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		importsHandler:    NewImportsHandler(deps),
		attendanceHandler: NewAttendanceHandler(deps),
		scoresHandler:     NewScoresHandler(deps),
		rankHandler:       NewRankHandler(deps),
		rosterHandler:     NewRosterHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux, deps Dependencies) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/imports", MetricsMiddleware(s.importsHandler.HandlePostImport, "imports"))
	mux.HandleFunc("/attendance", MetricsMiddleware(s.attendanceHandler.HandlePostAttendance, "attendance"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandleGetScores, "scores"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/members", MetricsMiddleware(s.rosterHandler.HandleGetMembers, "members"))
	mux.HandleFunc("/events", MetricsMiddleware(s.rosterHandler.HandleGetEvents, "events"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound allows the API to translate upstream not-found errors to 404.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, recordstore.ErrNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
