package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/yourusername/adaptive-api/internal/domain/entity"
	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
)

// DifficultyStateRepo реализует repository.DifficultyStateRepository
type DifficultyStateRepo struct {
	db *gorm.DB
}

// NewDifficultyStateRepo создает новый репозиторий состояний сложности
func NewDifficultyStateRepo(db *gorm.DB) *DifficultyStateRepo {
	return &DifficultyStateRepo{db: db}
}

// GetByUserTopic возвращает состояние для пары (пользователь, тема)
func (r *DifficultyStateRepo) GetByUserTopic(userID uuid.UUID, topic string) (*entity.DifficultyState, error) {
	var state entity.DifficultyState
	err := r.db.Where("user_id = ? AND topic = ?", userID, topic).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Create создает новое состояние сложности.
// Две сессии с разных устройств могут одновременно выполнить ленивую
// инициализацию одной пары (user, topic); проигравший получает ErrConflict
// и перечитывает уже созданную строку.
func (r *DifficultyStateRepo) Create(state *entity.DifficultyState) error {
	if err := r.db.Create(state).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return err
	}
	return nil
}

// UpdateChecked обновляет состояние только при совпадении last_updated (optimistic concurrency).
// RowsAffected == 0 означает, что конкурентная сессия успела обновить строку первой.
func (r *DifficultyStateRepo) UpdateChecked(state *entity.DifficultyState, expectedLastUpdated time.Time) error {
	result := r.db.Model(&entity.DifficultyState{}).
		Where("id = ? AND last_updated = ?", state.ID, expectedLastUpdated).
		Updates(map[string]interface{}{
			"current_difficulty":   state.CurrentDifficulty,
			"stability_score":      state.StabilityScore,
			"confidence_interval":  state.ConfidenceInterval,
			"success_rate_target":  state.SuccessRateTarget,
			"current_success_rate": state.CurrentSuccessRate,
			"sessions_analyzed":    state.SessionsAnalyzed,
			"questions_attempted":  state.QuestionsAttempted,
			"override_difficulty":  state.OverrideDifficulty,
			"override_reason":      state.OverrideReason,
			"override_set_at":      state.OverrideSetAt,
			"last_session_at":      state.LastSessionAt,
			"last_updated":         state.LastUpdated,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
