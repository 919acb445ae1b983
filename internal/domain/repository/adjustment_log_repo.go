package repository

import (
	"github.com/google/uuid"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
)

// AdjustmentLogRepository определяет методы для работы с журналом корректировок.
// Журнал append-only: интерфейс сознательно не содержит Update и Delete.
type AdjustmentLogRepository interface {
	// Record добавляет запись в журнал
	Record(entry *entity.AdjustmentLogEntry) error

	// GetRecent возвращает не более limit последних записей
	// для пары (пользователь, тема), самые свежие первыми
	GetRecent(userID uuid.UUID, topic string, limit int) ([]entity.AdjustmentLogEntry, error)
}
