package adaptive

import (
	"fmt"
	"math"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
)

// Calculator — чистый детерминированный калькулятор корректировок.
// Никакого скрытого времени и случайности: одинаковые (state, perf)
// всегда дают одинаковый результат, что позволяет воспроизводить
// записи журнала корректировок.
type Calculator struct {
	config *Config
}

// NewCalculator создаёт новый калькулятор
func NewCalculator(config *Config) *Calculator {
	return &Calculator{config: config}
}

// Recommendation — результат одного пересчёта сложности
type Recommendation struct {
	// NewDifficulty — новый baseline сложности в границах [1.0, 10.0]
	NewDifficulty float64

	// StabilityDelta — эффективное изменение stability_score
	// (уже с учётом клампинга к [0, 100] от текущего значения)
	StabilityDelta float64

	// Reason — причина корректировки для журнала
	Reason entity.AdjustmentReason

	// Confidence — stability_score/100 на момент решения
	Confidence float64
}

// Recommend вычисляет новую сложность по текущему состоянию и недавней
// производительности.
//
//	error  = target − recent
//	raw    = error × Gain
//	damped = raw × (1 − stability/DampingDivisor)
//	new    = clamp(current + damped), шаг дополнительно ограничен
//	         confidence_interval
func (c *Calculator) Recommend(state *entity.DifficultyState, perf Performance) (Recommendation, error) {
	// Rolling rate за пределами [0,1] — баг агрегации выше по стеку,
	// а не повод молча подправить значение
	if perf.RecentSuccessRate < 0.0 || perf.RecentSuccessRate > 1.0 {
		return Recommendation{}, fmt.Errorf("%w: recent success rate %.4f is outside [0.0, 1.0]",
			apperrors.ErrValidation, perf.RecentSuccessRate)
	}

	confidence := state.StabilityScore / entity.MaxStabilityScore

	// Cold start: истории нет, корректировать нечего
	if perf.SampleCount == 0 {
		return Recommendation{
			NewDifficulty:  state.CurrentDifficulty,
			StabilityDelta: 0,
			Reason:         entity.ReasonSessionStart,
			Confidence:     confidence,
		}, nil
	}

	trackingError := state.SuccessRateTarget - perf.RecentSuccessRate
	raw := trackingError * c.config.Gain
	damped := raw * (1.0 - state.StabilityScore/c.config.DampingDivisor)

	candidate := entity.ClampDifficulty(state.CurrentDifficulty + damped)

	// Кап одного шага: не дальше confidence_interval от текущего значения
	step := candidate - state.CurrentDifficulty
	if math.Abs(step) > state.ConfidenceInterval {
		if step > 0 {
			candidate = state.CurrentDifficulty + state.ConfidenceInterval
		} else {
			candidate = state.CurrentDifficulty - state.ConfidenceInterval
		}
		candidate = entity.ClampDifficulty(candidate)
	}

	reason := entity.ReasonPerformanceBased

	// Stability: стабильная производительность толкает к 100,
	// волатильная — к полу
	var nudge float64
	volatile := perf.SampleCount >= 2 &&
		math.Abs(perf.LastSessionRate-perf.RecentSuccessRate) > c.config.VolatilityThreshold
	if volatile {
		// Последняя сессия резко разошлась с rolling-оценкой:
		// штраф независимо от величины error
		nudge = -c.config.StabilityPenalty
		reason = entity.ReasonStabilityCorrection
	} else if math.Abs(trackingError) <= c.config.SmallErrorThreshold {
		nudge = c.config.StabilityReward
	} else {
		nudge = -c.config.StabilityPenalty
	}
	stabilityDelta := entity.ClampStability(state.StabilityScore+nudge) - state.StabilityScore

	return Recommendation{
		NewDifficulty:  candidate,
		StabilityDelta: stabilityDelta,
		Reason:         reason,
		Confidence:     confidence,
	}, nil
}
