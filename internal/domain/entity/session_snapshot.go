package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
)

// SessionDifficultySnapshot — иммутабельная запись о завершённой практической
// сессии в рамках одной темы. Создаётся один раз сессионной подсистемой,
// никогда не изменяется; агрегатор читает её для расчёта rolling success rate.
type SessionDifficultySnapshot struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_snapshot_user_topic" json:"user_id"`
	Topic  string    `gorm:"size:100;not null;index:idx_snapshot_user_topic" json:"topic"`

	StartDifficulty       float64 `gorm:"not null" json:"start_difficulty"`
	EndDifficulty         float64 `gorm:"not null" json:"end_difficulty"`
	AvgQuestionDifficulty float64 `gorm:"not null" json:"avg_question_difficulty"`

	QuestionsAnswered int `gorm:"not null" json:"questions_answered"`
	CorrectAnswers    int `gorm:"not null" json:"correct_answers"`

	// SessionSuccessRate предрассчитывается вызывающей стороной (контракт §входа).
	SessionSuccessRate float64 `gorm:"not null" json:"session_success_rate"`

	StabilityChange  float64 `gorm:"not null;default:0" json:"stability_change"`
	ConfidenceChange float64 `gorm:"not null;default:0" json:"confidence_change"`

	// DifficultyProgression — сложность каждого заданного вопроса по порядку.
	// Типизированный массив вместо нетипизированной JSON-колонки.
	DifficultyProgression pq.Float64Array `gorm:"type:double precision[]" json:"difficulty_progression"`

	CompletedAt time.Time `gorm:"not null;index" json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (SessionDifficultySnapshot) TableName() string {
	return "session_difficulty_snapshots"
}

// Validate проверяет входной контракт снапшота. Нарушение контракта —
// ошибка вызывающей подсистемы, поэтому ErrValidation, без молчаливых поправок.
func (s *SessionDifficultySnapshot) Validate() error {
	if s.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", apperrors.ErrValidation)
	}
	if s.Topic == "" {
		return fmt.Errorf("%w: topic is required", apperrors.ErrValidation)
	}
	if s.QuestionsAnswered <= 0 {
		return fmt.Errorf("%w: questions_answered must be positive, got %d", apperrors.ErrValidation, s.QuestionsAnswered)
	}
	if s.CorrectAnswers < 0 || s.CorrectAnswers > s.QuestionsAnswered {
		return fmt.Errorf("%w: correct_answers %d is outside [0, %d]", apperrors.ErrValidation, s.CorrectAnswers, s.QuestionsAnswered)
	}
	if s.SessionSuccessRate < 0.0 || s.SessionSuccessRate > 1.0 {
		return fmt.Errorf("%w: session_success_rate %.4f is outside [0.0, 1.0]", apperrors.ErrValidation, s.SessionSuccessRate)
	}
	if s.StartDifficulty < MinDifficulty || s.StartDifficulty > MaxDifficulty {
		return fmt.Errorf("%w: start_difficulty %.2f is outside [%.1f, %.1f]", apperrors.ErrValidation, s.StartDifficulty, MinDifficulty, MaxDifficulty)
	}
	if s.EndDifficulty < MinDifficulty || s.EndDifficulty > MaxDifficulty {
		return fmt.Errorf("%w: end_difficulty %.2f is outside [%.1f, %.1f]", apperrors.ErrValidation, s.EndDifficulty, MinDifficulty, MaxDifficulty)
	}
	if s.CompletedAt.IsZero() {
		return fmt.Errorf("%w: completed_at is required", apperrors.ErrValidation)
	}
	return nil
}
