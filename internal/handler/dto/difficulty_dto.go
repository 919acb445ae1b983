package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
)

// RecommendedDifficultyResponse — ответ hot-path выбора вопросов
type RecommendedDifficultyResponse struct {
	Topic                 string  `json:"topic"`
	RecommendedDifficulty float64 `json:"recommended_difficulty"`
}

// DifficultyStateResponse представляет состояние сложности в формате для ответа клиенту
type DifficultyStateResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Topic  string    `json:"topic"`
	Status string    `json:"status"`

	// RecommendedDifficulty — то, что видит выбор вопросов (override или baseline)
	RecommendedDifficulty float64 `json:"recommended_difficulty"`

	// CurrentDifficulty — baseline калькулятора; при активном override
	// расходится с RecommendedDifficulty
	CurrentDifficulty float64 `json:"current_difficulty"`

	StabilityScore     float64 `json:"stability_score"`
	ConfidenceInterval float64 `json:"confidence_interval"`
	SuccessRateTarget  float64 `json:"success_rate_target"`
	CurrentSuccessRate float64 `json:"current_success_rate"`

	SessionsAnalyzed   int `json:"sessions_analyzed"`
	QuestionsAttempted int `json:"questions_attempted"`

	OverrideDifficulty *float64   `json:"override_difficulty,omitempty"`
	OverrideReason     *string    `json:"override_reason,omitempty"`
	OverrideSetAt      *time.Time `json:"override_set_at,omitempty"`

	LastSessionAt *time.Time `json:"last_session_at,omitempty"`
	LastUpdated   time.Time  `json:"last_updated"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewDifficultyStateResponse создает DTO для состояния сложности
func NewDifficultyStateResponse(state *entity.DifficultyState) *DifficultyStateResponse {
	return &DifficultyStateResponse{
		UserID:                state.UserID,
		Topic:                 state.Topic,
		Status:                state.Status(),
		RecommendedDifficulty: state.EffectiveDifficulty(),
		CurrentDifficulty:     state.CurrentDifficulty,
		StabilityScore:        state.StabilityScore,
		ConfidenceInterval:    state.ConfidenceInterval,
		SuccessRateTarget:     state.SuccessRateTarget,
		CurrentSuccessRate:    state.CurrentSuccessRate,
		SessionsAnalyzed:      state.SessionsAnalyzed,
		QuestionsAttempted:    state.QuestionsAttempted,
		OverrideDifficulty:    state.OverrideDifficulty,
		OverrideReason:        state.OverrideReason,
		OverrideSetAt:         state.OverrideSetAt,
		LastSessionAt:         state.LastSessionAt,
		LastUpdated:           state.LastUpdated,
		CreatedAt:             state.CreatedAt,
	}
}

// AdjustmentEntryResponse представляет запись журнала корректировок
type AdjustmentEntryResponse struct {
	ID                  uint      `json:"id"`
	Topic               string    `json:"topic"`
	PreviousDifficulty  float64   `json:"previous_difficulty"`
	NewDifficulty       float64   `json:"new_difficulty"`
	Reason              string    `json:"reason"`
	TriggerSuccessRate  float64   `json:"trigger_success_rate"`
	Magnitude           float64   `json:"magnitude"`
	AlgorithmConfidence float64   `json:"algorithm_confidence"`
	CreatedAt           time.Time `json:"created_at"`
}

// AdjustmentListResponse — список записей журнала, самые свежие первыми
type AdjustmentListResponse struct {
	Adjustments []AdjustmentEntryResponse `json:"adjustments"`
	Total       int                       `json:"total"`
}

// NewAdjustmentListResponse создает DTO для списка записей журнала
func NewAdjustmentListResponse(entries []entity.AdjustmentLogEntry) *AdjustmentListResponse {
	adjustments := make([]AdjustmentEntryResponse, 0, len(entries))
	for _, e := range entries {
		adjustments = append(adjustments, AdjustmentEntryResponse{
			ID:                  e.ID,
			Topic:               e.Topic,
			PreviousDifficulty:  e.PreviousDifficulty,
			NewDifficulty:       e.NewDifficulty,
			Reason:              string(e.Reason),
			TriggerSuccessRate:  e.TriggerSuccessRate,
			Magnitude:           e.Magnitude,
			AlgorithmConfidence: e.AlgorithmConfidence,
			CreatedAt:           e.CreatedAt,
		})
	}
	return &AdjustmentListResponse{Adjustments: adjustments, Total: len(adjustments)}
}
