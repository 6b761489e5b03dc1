// Package middleware contains wrappers applied to every Telegram update:
// panic recovery and per-user rate limiting.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Паника в одном обработчике не должна ронять polling-цикл.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig configures the recovery middleware.
type RecoveryConfig struct {
	Logger *slog.Logger

	// LogStackTrace adds the goroutine stack to the log record.
	LogStackTrace bool

	// MaxStackLines truncates logged stacks.
	MaxStackLines int

	// UserMessage is returned to the caller to show the student.
	UserMessage string
}

// DefaultRecoveryConfig returns sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:        slog.Default(),
		LogStackTrace: true,
		MaxStackLines: 40,
		UserMessage:   "Lo siento, ocurrió un error. Por favor intenta de nuevo.",
	}
}

// RecoveryMiddleware converts handler panics into errors.
type RecoveryMiddleware struct {
	config RecoveryConfig
	logger *slog.Logger
}

// NewRecoveryMiddleware creates a new RecoveryMiddleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecoveryMiddleware{
		config: config,
		logger: config.Logger.With("component", "recovery"),
	}
}

// RecoveryResult describes a handler run.
type RecoveryResult struct {
	// Recovered is true when the handler panicked.
	Recovered bool

	// Err is the handler error, or the panic converted to an error.
	Err error

	// UserMessage is set when Recovered.
	UserMessage string
}

// Run calls fn and recovers a panic. op names the handler for logs.
func (m *RecoveryMiddleware) Run(ctx context.Context, telegramID int64, op string, fn func() error) (res RecoveryResult) {
	defer func() {
		if p := recover(); p != nil {
			err := toError(p)
			attrs := []any{
				"op", op,
				"telegram_id", telegramID,
				"panic", err.Error(),
			}
			if m.config.LogStackTrace {
				attrs = append(attrs, "stack", trimStack(string(debug.Stack()), m.config.MaxStackLines))
			}
			m.logger.ErrorContext(ctx, "panic recovered", attrs...)

			res = RecoveryResult{Recovered: true, Err: err, UserMessage: m.config.UserMessage}
		}
	}()

	return RecoveryResult{Err: fn()}
}

func toError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}

func trimStack(stack string, maxLines int) string {
	if maxLines <= 0 {
		return stack
	}
	lines := strings.Split(stack, "\n")
	if len(lines) <= maxLines {
		return stack
	}
	return strings.Join(lines[:maxLines], "\n") + "\n..."
}
