package entity

import (
	"time"

	"github.com/google/uuid"
)

// Границы модели сложности. Инварианты контролируются в коде (entity + service),
// а не CHECK-констрейнтами, чтобы ошибки всплывали как ErrValidation, а не как 23514.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0

	MinStabilityScore = 0.0
	MaxStabilityScore = 100.0

	MinConfidenceInterval = 0.5
	MaxConfidenceInterval = 5.0

	MinSuccessRateTarget = 0.5
	MaxSuccessRateTarget = 0.9
)

// Статусы состояния сложности (машина состояний ACTIVE ⇄ OVERRIDDEN).
// UNINITIALIZED не хранится: отсутствие строки и есть это состояние.
const (
	StateStatusActive     = "active"
	StateStatusOverridden = "overridden"
)

// DifficultyState хранит текущее состояние адаптивной сложности
// для пары (пользователь, тема). Создаётся лениво при первой попытке.
type DifficultyState struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_topic" json:"user_id"`
	Topic  string    `gorm:"size:100;not null;uniqueIndex:idx_user_topic" json:"topic"`

	// CurrentDifficulty — активный уровень сложности [1.0, 10.0].
	// При активном override это скрытый baseline: калькулятор продолжает
	// обновлять его, чтобы снятие override возвращало актуальное значение.
	CurrentDifficulty float64 `gorm:"not null;default:5.0" json:"current_difficulty"`

	// StabilityScore — насколько стабильна недавняя производительность [0, 100].
	// Чем выше, тем сильнее гасятся последующие корректировки.
	StabilityScore float64 `gorm:"not null;default:0" json:"stability_score"`

	// ConfidenceInterval — максимальный размер одного шага корректировки [0.5, 5.0].
	ConfidenceInterval float64 `gorm:"not null;default:2.0" json:"confidence_interval"`

	// SuccessRateTarget — желаемая доля успеха на текущей сложности [0.5, 0.9].
	SuccessRateTarget float64 `gorm:"not null;default:0.75" json:"success_rate_target"`

	// CurrentSuccessRate — последняя rolling-оценка доли успеха [0, 1].
	CurrentSuccessRate float64 `gorm:"not null;default:0" json:"current_success_rate"`

	SessionsAnalyzed   int `gorm:"not null;default:0" json:"sessions_analyzed"`
	QuestionsAttempted int `gorm:"not null;default:0" json:"questions_attempted"`

	// Поля ручного override. Все три либо заполнены, либо NULL.
	OverrideDifficulty *float64   `json:"override_difficulty,omitempty"`
	OverrideReason     *string    `gorm:"size:255" json:"override_reason,omitempty"`
	OverrideSetAt      *time.Time `json:"override_set_at,omitempty"`

	LastSessionAt *time.Time `json:"last_session_at,omitempty"`

	// LastUpdated — версия записи для optimistic concurrency.
	// Обновление проходит только если LastUpdated в БД совпадает со снапшотом.
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (DifficultyState) TableName() string {
	return "difficulty_states"
}

// IsOverridden сообщает, активен ли ручной override
func (s *DifficultyState) IsOverridden() bool {
	return s.OverrideDifficulty != nil
}

// Status возвращает текущее состояние машины состояний
func (s *DifficultyState) Status() string {
	if s.IsOverridden() {
		return StateStatusOverridden
	}
	return StateStatusActive
}

// EffectiveDifficulty возвращает сложность, которую видят внешние подсистемы:
// значение override, если он активен, иначе CurrentDifficulty.
func (s *DifficultyState) EffectiveDifficulty() float64 {
	if s.OverrideDifficulty != nil {
		return *s.OverrideDifficulty
	}
	return s.CurrentDifficulty
}

// SetOverride устанавливает ручной override. Валидация границ — на уровне сервиса.
func (s *DifficultyState) SetOverride(difficulty float64, reason string, setAt time.Time) {
	s.OverrideDifficulty = &difficulty
	s.OverrideReason = &reason
	s.OverrideSetAt = &setAt
}

// ClearOverride снимает ручной override; скрытый baseline становится эффективным.
func (s *DifficultyState) ClearOverride() {
	s.OverrideDifficulty = nil
	s.OverrideReason = nil
	s.OverrideSetAt = nil
}

// ClampDifficulty ограничивает сложность границами [MinDifficulty, MaxDifficulty]
func ClampDifficulty(d float64) float64 {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// ClampStability ограничивает stability score границами [0, 100]
func ClampStability(s float64) float64 {
	if s < MinStabilityScore {
		return MinStabilityScore
	}
	if s > MaxStabilityScore {
		return MaxStabilityScore
	}
	return s
}
