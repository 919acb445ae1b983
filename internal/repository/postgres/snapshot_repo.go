package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/yourusername/adaptive-api/internal/domain/entity"
)

// SnapshotRepo реализует repository.SnapshotRepository
type SnapshotRepo struct {
	db *gorm.DB
}

// NewSnapshotRepo создает новый репозиторий снапшотов сессий
func NewSnapshotRepo(db *gorm.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save сохраняет снапшот завершённой сессии
func (r *SnapshotRepo) Save(snapshot *entity.SessionDifficultySnapshot) error {
	return r.db.Create(snapshot).Error
}

// GetRecent возвращает последние снапшоты для пары (пользователь, тема),
// ограниченные и количеством, и окном по времени.
// Агрегатор читает без блокировки против конкурентных записей: снапшот,
// вставленный во время чтения, либо виден целиком, либо не виден вовсе.
func (r *SnapshotRepo) GetRecent(userID uuid.UUID, topic string, maxSessions int, since time.Time) ([]entity.SessionDifficultySnapshot, error) {
	var snapshots []entity.SessionDifficultySnapshot
	err := r.db.Where("user_id = ? AND topic = ? AND completed_at >= ?", userID, topic, since).
		Order("completed_at DESC").
		Limit(maxSessions).
		Find(&snapshots).Error
	// Пустой слайс — валидный результат (cold start)
	return snapshots, err
}
