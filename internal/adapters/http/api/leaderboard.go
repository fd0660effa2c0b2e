package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	GetLeaderboard(ctx context.Context, q leaderboard.Query) (leaderboard.Response, error)
}

// LeaderboardHandler handles leaderboard and export requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	sessions sessionVerifier
	logger   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, opts ...Option) *LeaderboardHandler {
	cfg := newConfig(opts)
	return &LeaderboardHandler{
		deps:     deps,
		sessions: newSessionVerifier(cfg.sessionSecret),
		logger:   cfg.logger,
	}
}

// HandleGetLeaderboard handles GET /api/leaderboard?metric=&department= requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s, err := h.sessions.verify(op, r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	q, err := buildQuery(op, r, s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	resp, err := h.deps.GetLeaderboard(r.Context(), q)
	if err != nil {
		h.fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleExport handles GET /api/leaderboard/export requests. Managers only.
func (h *LeaderboardHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s, err := h.sessions.verify(op, r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if s.Role != model.RoleManager {
		writeError(w, http.StatusForbidden, "forbidden", WrapKind(op, ErrForbidden, errors.New("export requires the manager role")))
		return
	}
	q, err := buildQuery(op, r, s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	resp, err := h.deps.GetLeaderboard(r.Context(), q)
	if err != nil {
		h.fail(r.Context(), w, op, err)
		return
	}

	var buf bytes.Buffer
	if err := leaderboard.WriteCSV(&buf, resp.Rows()); err != nil {
		h.fail(r.Context(), w, op, err)
		return
	}
	metrics.RecordCSVExport()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", leaderboard.Filename(resp.Month, resp.Year)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *LeaderboardHandler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if errors.Is(err, model.ErrInvalidRole) {
		writeError(w, http.StatusForbidden, "forbidden", WrapKind(op, ErrForbidden, err))
		return
	}
	h.logger.Error(ctx, "leaderboard request failed", logger.String("op", op), logger.Error(err))
	code := "internal_error"
	if errors.Is(err, leaderboard.ErrRead) {
		code = "storage_error"
	}
	writeError(w, http.StatusInternalServerError, code, Wrap(op, err))
}

// buildQuery reads metric and department from the query string.
func buildQuery(op string, r *http.Request, s Session) (leaderboard.Query, error) {
	params := r.URL.Query()
	metric, err := leaderboard.ParseMetric(params.Get("metric"))
	if err != nil {
		return leaderboard.Query{}, WrapKind(op, ErrBadRequest, err)
	}
	dept, err := leaderboard.ParseDepartment(params.Get("department"))
	if err != nil {
		return leaderboard.Query{}, WrapKind(op, ErrBadRequest, err)
	}
	return leaderboard.Query{
		ViewerUserID: s.UserID,
		Role:         s.Role,
		DealershipID: s.DealershipID,
		Metric:       metric,
		Department:   dept,
		TenantScope:  s.OrganizationID,
	}, nil
}
