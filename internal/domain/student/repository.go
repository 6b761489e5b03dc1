package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализация находится в infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит агрегат Student вместе с его навыками.
type Repository interface {
	// Create сохраняет нового ученика и все его навыки одной транзакцией.
	// Возвращает ErrStudentAlreadyExists при конфликте telegram_id.
	Create(ctx context.Context, s *Student) error

	// GetByID возвращает ученика с навыками или ErrStudentNotFound.
	GetByID(ctx context.Context, id int64) (*Student, error)

	// GetByTelegramID возвращает ученика с навыками или ErrStudentNotFound.
	GetByTelegramID(ctx context.Context, telegramID TelegramID) (*Student, error)

	// Save обновляет поля ученика и все навыки одной транзакцией.
	Save(ctx context.Context, s *Student) error
}
