package entity

import (
	"time"

	"github.com/google/uuid"
)

// AdjustmentReason — причина пересчёта сложности в журнале корректировок
type AdjustmentReason string

const (
	// ReasonPerformanceBased — штатная корректировка по rolling success rate
	ReasonPerformanceBased AdjustmentReason = "performance_based"

	// ReasonManualOverride — установка или снятие ручного override
	ReasonManualOverride AdjustmentReason = "manual_override"

	// ReasonStabilityCorrection — сессия резко разошлась с rolling-оценкой,
	// stability получил штраф волатильности
	ReasonStabilityCorrection AdjustmentReason = "stability_correction"

	// ReasonSessionStart — cold start: истории нет, сложность не менялась
	ReasonSessionStart AdjustmentReason = "session_start"
)

// AdjustmentLogEntry — append-only запись журнала корректировок.
// Одна запись на каждый пересчёт; никогда не обновляется и не удаляется.
// Читается только админским тулингом, не hot-path выбора вопросов.
type AdjustmentLogEntry struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_adjustment_user_topic" json:"user_id"`
	Topic  string    `gorm:"size:100;not null;index:idx_adjustment_user_topic" json:"topic"`

	PreviousDifficulty float64          `gorm:"not null" json:"previous_difficulty"`
	NewDifficulty      float64          `gorm:"not null" json:"new_difficulty"`
	Reason             AdjustmentReason `gorm:"size:32;not null" json:"reason"`

	// TriggerSuccessRate — rolling success rate, вызвавший пересчёт
	TriggerSuccessRate float64 `gorm:"not null" json:"trigger_success_rate"`

	// Magnitude = |NewDifficulty - PreviousDifficulty|
	Magnitude float64 `gorm:"not null" json:"magnitude"`

	// AlgorithmConfidence — stability_score/100 на момент решения.
	// Вместе с PreviousDifficulty и TriggerSuccessRate позволяет
	// воспроизвести решение детерминированного калькулятора.
	AlgorithmConfidence float64 `gorm:"not null" json:"algorithm_confidence"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (AdjustmentLogEntry) TableName() string {
	return "adjustment_log"
}
