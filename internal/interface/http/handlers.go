package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/application/query"
	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/auth"
)

// PanelPlaceholderName is the first name of students created from the web panel
// before they ever talked to the bot.
const PanelPlaceholderName = "Usuario"

const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// ROOT & HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"name":    "English Profesor Expert API",
		"version": s.config.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, r, http.StatusOK, HealthStatus{Healthy: true, Version: s.config.Version})
		return
	}
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH
// ══════════════════════════════════════════════════════════════════════════════

// TokenResponse is returned by both login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	StudentID   int64  `json:"student_id"`
}

// handleTelegramLogin: POST /api/auth/telegram (Telegram Login Widget).
func (s *Server) handleTelegramLogin(w http.ResponseWriter, r *http.Request) {
	var data auth.WidgetData
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "Invalid request payload")
		return
	}
	if data.ID <= 0 || data.AuthDate <= 0 {
		writeError(w, r, http.StatusBadRequest, "bad_request", "id and auth_date are required")
		return
	}

	// В debug-режиме подпись не проверяем: удобно для локальной разработки.
	if !s.config.Debug {
		if err := s.deps.Widget.Verify(data); err != nil {
			s.logger.Warn("telegram widget rejected", "telegram_id", data.ID, "error", err)
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid Telegram authentication")
			return
		}
	}

	s.login(w, r, student.Profile{
		TelegramID: student.TelegramID(data.ID),
		FirstName:  data.FirstName,
		LastName:   data.LastName,
		Username:   data.Username,
	})
}

// handleTelegramIDLogin: POST /api/auth/telegram-id/{telegram_id}.
// Used by the panel button sent from the bot; creates the student when absent.
func (s *Server) handleTelegramIDLogin(w http.ResponseWriter, r *http.Request) {
	tg, err := idVar(mux.Vars(r), "telegram_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.login(w, r, student.Profile{TelegramID: student.TelegramID(tg), FirstName: PanelPlaceholderName})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, p student.Profile) {
	res, err := s.deps.Resolver.Handle(r.Context(), command.ResolveStudentCommand{Profile: p})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Created {
		s.logger.Info("student created on panel login", "student_id", res.Student.ID, "telegram_id", int64(p.TelegramID))
	}

	token, err := s.deps.Tokens.Issue(int64(p.TelegramID), res.Student.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		StudentID:   res.Student.ID,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

var errNoClaims = shared.NewDomainError("http", "Auth", shared.ErrUnauthorized, "missing token claims")

func (s *Server) currentStudentID(r *http.Request) (int64, error) {
	c, ok := claimsFrom(r.Context())
	if !ok {
		return 0, errNoClaims
	}
	return c.StudentID, nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, err := s.currentStudentID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dto, err := s.deps.Students.Handle(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := s.currentStudentID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dto, err := s.deps.Dashboards.Handle(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	id, err := s.currentStudentID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", query.DefaultLessonsLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q := query.ListLessonsQuery{StudentID: id, Limit: limit, Offset: offset}
	q.Normalize()
	items, err := s.deps.Lessons.List(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, r, items, q.Limit, q.Offset)
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, err := s.currentStudentID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lessonID, err := idVar(mux.Vars(r), "lesson_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dto, err := s.deps.Lessons.Get(r.Context(), id, lessonID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Levels)
}
