// Package http implements the REST API used by the web panel and the admin
// dashboard. Routing is done with gorilla/mux; every response is wrapped in
// the same JSON envelope.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/application/query"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/auth"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string

	// Debug skips the Telegram widget signature check.
	Debug   bool
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		CORSOrigins:  []string{"http://localhost:3000"},
		Version:      "v1",
	}
}

// Address returns "host:port".
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// StudentResolver finds or registers a student by Telegram profile.
type StudentResolver interface {
	Handle(ctx context.Context, cmd command.ResolveStudentCommand) (*command.ResolveStudentResult, error)
}

// TokenService issues and verifies access tokens.
type TokenService interface {
	Issue(telegramID, studentID int64) (string, error)
	Verify(raw string) (*auth.Claims, error)
}

// WidgetVerifier checks Telegram Login Widget payloads.
type WidgetVerifier interface {
	Verify(d auth.WidgetData) error
}

// KeyVerifier checks admin API keys.
type KeyVerifier interface {
	Verify(key string) error
}

// StudentReader returns a student profile.
type StudentReader interface {
	Handle(ctx context.Context, studentID int64) (*query.StudentDTO, error)
}

// DashboardReader returns a student dashboard.
type DashboardReader interface {
	Handle(ctx context.Context, studentID int64) (*query.DashboardDTO, error)
}

// LessonReader serves lesson history.
type LessonReader interface {
	List(ctx context.Context, q query.ListLessonsQuery) ([]query.LessonDTO, error)
	Get(ctx context.Context, studentID, lessonID int64) (*query.LessonDetailDTO, error)
}

// AdminReader serves admin panels.
type AdminReader interface {
	Overview(ctx context.Context) (query.OverviewDTO, error)
	Users(ctx context.Context, q query.UsersQuery) ([]query.UserActivityDTO, error)
	Churned(ctx context.Context, daysInactive int) ([]query.ChurnedUserDTO, error)
	UsageByLevel(ctx context.Context) ([]query.UsageByLevelDTO, error)
	Daily(ctx context.Context, days int) ([]query.DailyStatsDTO, error)
	TokenUsage(ctx context.Context, limit int) ([]query.TokenUsageDTO, error)
	Engagement(ctx context.Context) (query.EngagementDTO, error)
	UserDetail(ctx context.Context, userID int64) (*query.UserDetailDTO, error)
}

// Dependencies contains everything the handlers call.
type Dependencies struct {
	Resolver   StudentResolver
	Tokens     TokenService
	Widget     WidgetVerifier
	AdminKeys  KeyVerifier
	Students   StudentReader
	Dashboards DashboardReader
	Lessons    LessonReader
	Admin      AdminReader
	Levels     []query.LevelDTO

	Health *HealthChecker // optional
	Logger *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the REST API server.
type Server struct {
	config     Config
	deps       Dependencies
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewServer creates a server and registers all routes.
func NewServer(config Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		deps:   deps,
		router: mux.NewRouter(),
		logger: logger.With("component", "http"),
	}
	s.setupRoutes()

	// Порядок: recover -> request id -> log -> cors -> router.
	s.handler = s.recoverPanics(s.requestID(s.logRequests(s.cors(s.router))))

	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler exposes the full middleware chain, used by tests.
func (s *Server) Handler() http.Handler { return s.handler }

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// ─────────────────────────────────────────────────────────────────────────
	// Auth
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("/auth/telegram", s.handleTelegramLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/telegram-id/{telegram_id:[0-9]+}", s.handleTelegramIDLogin).Methods(http.MethodPost)

	// Каталог уровней публичный.
	api.HandleFunc("/levels", s.handleLevels).Methods(http.MethodGet)

	// ─────────────────────────────────────────────────────────────────────────
	// Student (Bearer JWT)
	// ─────────────────────────────────────────────────────────────────────────
	students := api.PathPrefix("/students").Subrouter()
	students.Use(s.requireStudent)
	students.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	students.HandleFunc("/me/dashboard", s.handleDashboard).Methods(http.MethodGet)

	lessons := api.PathPrefix("/lessons").Subrouter()
	lessons.Use(s.requireStudent)
	lessons.HandleFunc("", s.handleListLessons).Methods(http.MethodGet)
	lessons.HandleFunc("/", s.handleListLessons).Methods(http.MethodGet)
	lessons.HandleFunc("/{lesson_id:[0-9]+}", s.handleGetLesson).Methods(http.MethodGet)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin (X-API-Key)
	// ─────────────────────────────────────────────────────────────────────────
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/overview", s.handleAdminOverview).Methods(http.MethodGet)
	admin.HandleFunc("/users", s.handleAdminUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/churned", s.handleAdminChurned).Methods(http.MethodGet)
	admin.HandleFunc("/users/{user_id:[0-9]+}", s.handleAdminUserDetail).Methods(http.MethodGet)
	admin.HandleFunc("/usage-by-level", s.handleAdminUsageByLevel).Methods(http.MethodGet)
	admin.HandleFunc("/daily-stats", s.handleAdminDaily).Methods(http.MethodGet)
	admin.HandleFunc("/token-usage", s.handleAdminTokenUsage).Methods(http.MethodGet)
	admin.HandleFunc("/engagement", s.handleAdminEngagement).Methods(http.MethodGet)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "address", s.config.Address())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
