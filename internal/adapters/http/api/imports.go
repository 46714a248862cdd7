// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/veloclub/sortie/internal/domain/reconcile"
)

// maxSheetBytes bounds the accepted CSV payload. A season sheet for a few
// hundred members stays well under a megabyte.
const maxSheetBytes = 8 << 20

var yearRe = regexp.MustCompile(`^\d{4}$`)

// ImportDependencies defines the interface for sheet import operations.
type ImportDependencies interface {
	ReconcilePeriod(ctx context.Context, csvText, year string) (Summary, error)
}

// ImportsHandler handles attendance sheet imports.
type ImportsHandler struct {
	deps ImportDependencies
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(deps ImportDependencies) *ImportsHandler {
	return &ImportsHandler{deps: deps}
}

// HandlePostImport handles POST /imports?year=YYYY requests. The request
// body is the raw wide-format CSV sheet.
func (h *ImportsHandler) HandlePostImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_import"
	if r.Method != http.MethodPost {
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

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSheetBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	summary, err := h.deps.ReconcilePeriod(r.Context(), string(body), year)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summary)
	case errors.Is(err, reconcile.ErrRunInProgress):
		writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
	case errors.Is(err, reconcile.ErrParse):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
