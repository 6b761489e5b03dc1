package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/englishprofesor/tutor-bot/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// Все эндпоинты под /api/admin защищены X-API-Key.
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.Admin.Overview(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	skip, err := intParam(r, "skip", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", query.DefaultUsersLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := query.UsersQuery{
		Skip:       skip,
		Limit:      nonZero(limit),
		ActiveOnly: boolParam(r, "active_only"),
		SortBy:     r.URL.Query().Get("sort_by"),
		Order:      r.URL.Query().Get("order"),
	}
	rows, err := s.deps.Admin.Users(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, r, rows, q.Limit, q.Skip)
}

func (s *Server) handleAdminChurned(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days_inactive", query.DefaultChurnDays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.deps.Admin.Churned(r.Context(), nonZero(days))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) handleAdminUsageByLevel(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Admin.UsageByLevel(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) handleAdminDaily(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", query.DefaultDailyDays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.deps.Admin.Daily(r.Context(), nonZero(days))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) handleAdminTokenUsage(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", query.DefaultTokenLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.deps.Admin.TokenUsage(r.Context(), nonZero(limit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) handleAdminEngagement(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.Admin.Engagement(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleAdminUserDetail(w http.ResponseWriter, r *http.Request) {
	id, err := idVar(mux.Vars(r), "user_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dto, err := s.deps.Admin.UserDetail(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// nonZero turns an explicit 0 into an out-of-range value, so the query layer
// rejects it instead of applying its default.
func nonZero(v int) int {
	if v == 0 {
		return -1
	}
	return v
}
