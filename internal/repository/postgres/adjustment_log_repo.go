package postgres

import (
	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/yourusername/adaptive-api/internal/domain/entity"
)

// AdjustmentLogRepo реализует repository.AdjustmentLogRepository
type AdjustmentLogRepo struct {
	db *gorm.DB
}

// NewAdjustmentLogRepo создает новый репозиторий журнала корректировок
func NewAdjustmentLogRepo(db *gorm.DB) *AdjustmentLogRepo {
	return &AdjustmentLogRepo{db: db}
}

// Record добавляет запись в журнал
func (r *AdjustmentLogRepo) Record(entry *entity.AdjustmentLogEntry) error {
	return r.db.Create(entry).Error
}

// GetRecent возвращает последние записи журнала, самые свежие первыми
func (r *AdjustmentLogRepo) GetRecent(userID uuid.UUID, topic string, limit int) ([]entity.AdjustmentLogEntry, error) {
	var entries []entity.AdjustmentLogEntry
	err := r.db.Where("user_id = ? AND topic = ?", userID, topic).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
