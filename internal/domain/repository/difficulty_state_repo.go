package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
)

// DifficultyStateRepository определяет методы для работы с состояниями сложности
type DifficultyStateRepository interface {
	// GetByUserTopic возвращает состояние для пары (пользователь, тема)
	// или apperrors.ErrNotFound
	GetByUserTopic(userID uuid.UUID, topic string) (*entity.DifficultyState, error)

	// Create создаёт новое состояние. При гонке двух ленивых инициализаций
	// возвращает apperrors.ErrConflict (unique violation на (user_id, topic)).
	Create(state *entity.DifficultyState) error

	// UpdateChecked обновляет состояние только если last_updated в БД
	// совпадает с expectedLastUpdated (optimistic concurrency).
	// При несовпадении возвращает apperrors.ErrConflict.
	UpdateChecked(state *entity.DifficultyState, expectedLastUpdated time.Time) error
}
