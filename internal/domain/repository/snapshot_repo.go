package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
)

// SnapshotRepository определяет методы для работы со снапшотами сессий
type SnapshotRepository interface {
	// Save сохраняет иммутабельный снапшот завершённой сессии
	Save(snapshot *entity.SessionDifficultySnapshot) error

	// GetRecent возвращает не более maxSessions последних снапшотов
	// для пары (пользователь, тема), завершённых не раньше since.
	// Порядок: самые свежие первыми. Пустой слайс — валидный результат.
	GetRecent(userID uuid.UUID, topic string, maxSessions int, since time.Time) ([]entity.SessionDifficultySnapshot, error)
}
