package adaptive

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
)

// Engine — сервис адаптивной сложности. Оркеструет агрегатор, чистый
// калькулятор, хранилище состояний, журнал корректировок и кеш.
// Все операции ограничены одной парой (пользователь, тема); отказ любой
// из них не фатален для процесса.
type Engine struct {
	deps       *Dependencies
	calculator *Calculator
	aggregator *Aggregator
}

// NewEngine создаёт движок с внедрёнными зависимостями
func NewEngine(deps *Dependencies) *Engine {
	if deps.Config == nil {
		deps.Config = DefaultConfig()
	}
	return &Engine{
		deps:       deps,
		calculator: NewCalculator(deps.Config),
		aggregator: NewAggregator(deps.SnapshotRepo, deps.Config),
	}
}

// Calculator возвращает чистый калькулятор движка (для тулинга и тестов)
func (e *Engine) Calculator() *Calculator {
	return e.calculator
}

// GetOrInit возвращает состояние для пары (пользователь, тема), лениво
// создавая его при первом обращении. Подсказка стиля обучения применяется
// только при создании и никогда не переоценивается.
func (e *Engine) GetOrInit(userID uuid.UUID, topic string, style entity.LearningStyle) (*entity.DifficultyState, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", apperrors.ErrValidation)
	}
	if !style.IsValid() {
		return nil, fmt.Errorf("%w: unknown learning style %q", apperrors.ErrValidation, style)
	}

	state, err := e.deps.StateRepo.GetByUserTopic(userID, topic)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	state = &entity.DifficultyState{
		UserID:             userID,
		Topic:              topic,
		CurrentDifficulty:  style.StartingDifficulty(),
		StabilityScore:     entity.MinStabilityScore,
		ConfidenceInterval: e.deps.Config.DefaultConfidenceInterval,
		SuccessRateTarget:  e.deps.Config.DefaultSuccessRateTarget,
		LastUpdated:        now,
	}

	if err := e.deps.StateRepo.Create(state); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Проиграли гонку ленивой инициализации (второе устройство
			// успело первым) — читаем уже созданную строку
			log.Printf("[Engine] Lost lazy-init race for user=%s topic=%s, re-reading", userID, topic)
			return e.deps.StateRepo.GetByUserTopic(userID, topic)
		}
		return nil, err
	}

	// Стартовая запись журнала: сложность не менялась, но точка отсчёта
	// должна быть восстановима из журнала. Ошибка записи не валит ленивую
	// инициализацию на читающем пути.
	if err := e.recordAdjustment(userID, topic, state.CurrentDifficulty, state.CurrentDifficulty,
		entity.ReasonSessionStart, 0.5, 0); err != nil {
		log.Printf("[Engine] WARNING: session_start entry not recorded for user=%s topic=%s: %v", userID, topic, err)
	}

	log.Printf("[Engine] Initialized difficulty state for user=%s topic=%s (style=%q, start=%.1f)",
		userID, topic, style, state.CurrentDifficulty)
	return state, nil
}

// GetState возвращает состояние без ленивой инициализации
// (apperrors.ErrNotFound, если пара ещё не существует)
func (e *Engine) GetState(userID uuid.UUID, topic string) (*entity.DifficultyState, error) {
	return e.deps.StateRepo.GetByUserTopic(userID, topic)
}

// GetRecommended возвращает рекомендованную сложность для выбора вопросов.
// Hot path: сначала Redis, при промахе или ошибке — Postgres (fail-open).
// При активном override возвращается именно его значение.
func (e *Engine) GetRecommended(userID uuid.UUID, topic string) (float64, error) {
	key := recommendedCacheKey(userID, topic)

	if e.deps.CacheRepo != nil {
		raw, err := e.deps.CacheRepo.Get(key)
		if err == nil {
			if val, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil {
				return val, nil
			}
			log.Printf("[Engine] Malformed cached difficulty %q for key %s, falling back to store", raw, key)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[Engine] WARNING: Redis error reading %s: %v. Falling back to store (fail-open).", key, err)
		}
	}

	state, err := e.deps.StateRepo.GetByUserTopic(userID, topic)
	if err != nil {
		return 0, err
	}

	value := state.EffectiveDifficulty()
	if e.deps.CacheRepo != nil {
		if err := e.deps.CacheRepo.Set(key, strconv.FormatFloat(value, 'f', -1, 64), e.deps.Config.RecommendedCacheTTL); err != nil {
			log.Printf("[Engine] Failed to cache recommended difficulty for %s: %v", key, err)
		}
	}
	return value, nil
}

// CompleteSession обрабатывает снапшот завершённой сессии: сохраняет его,
// пересчитывает rolling-метрики, применяет корректировку калькулятора
// атомарно (optimistic concurrency) и пишет запись журнала.
// Калькулятор работает и при активном override — скрытый baseline
// продолжает обновляться, чтобы снятие override возвращало свежее значение.
func (e *Engine) CompleteSession(snapshot *entity.SessionDifficultySnapshot) (*entity.DifficultyState, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	// Состояние создаётся лениво при первой попытке
	if _, err := e.GetOrInit(snapshot.UserID, snapshot.Topic, entity.LearningStyleNone); err != nil {
		return nil, err
	}

	if err := e.deps.SnapshotRepo.Save(snapshot); err != nil {
		return nil, fmt.Errorf("failed to save session snapshot: %w", err)
	}

	var (
		rec      Recommendation
		previous float64
		trigger  float64
	)

	state, err := e.updateWithRetry(snapshot.UserID, snapshot.Topic, func(s *entity.DifficultyState) error {
		// Агрегируем заново на каждой попытке: конфликт означает, что
		// конкурентная сессия успела изменить историю
		perf, err := e.aggregator.RecentPerformance(snapshot.UserID, snapshot.Topic)
		if err != nil {
			return err
		}

		r, err := e.calculator.Recommend(s, perf)
		if err != nil {
			return err
		}

		rec = r
		previous = s.CurrentDifficulty
		trigger = perf.RecentSuccessRate

		s.CurrentDifficulty = r.NewDifficulty
		s.StabilityScore = entity.ClampStability(s.StabilityScore + r.StabilityDelta)
		s.CurrentSuccessRate = perf.RecentSuccessRate
		s.SessionsAnalyzed++
		s.QuestionsAttempted += snapshot.QuestionsAnswered
		completedAt := snapshot.CompletedAt
		s.LastSessionAt = &completedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.recordAdjustment(snapshot.UserID, snapshot.Topic, previous, state.CurrentDifficulty, rec.Reason, trigger, rec.Confidence); err != nil {
		return nil, err
	}

	e.invalidateRecommended(snapshot.UserID, snapshot.Topic)
	return state, nil
}

// SetOverride устанавливает ручной override сложности.
// Пока override активен, GetRecommended возвращает его значение,
// а калькулятор продолжает вести скрытый baseline.
func (e *Engine) SetOverride(userID uuid.UUID, topic string, difficulty float64, reason string) (*entity.DifficultyState, error) {
	if difficulty < entity.MinDifficulty || difficulty > entity.MaxDifficulty {
		return nil, fmt.Errorf("%w: override difficulty %.2f is outside [%.1f, %.1f]",
			apperrors.ErrValidation, difficulty, entity.MinDifficulty, entity.MaxDifficulty)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: override reason is required", apperrors.ErrValidation)
	}

	if _, err := e.GetOrInit(userID, topic, entity.LearningStyleNone); err != nil {
		return nil, err
	}

	var previous float64
	state, err := e.updateWithRetry(userID, topic, func(s *entity.DifficultyState) error {
		previous = s.EffectiveDifficulty()
		s.SetOverride(difficulty, reason, time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.recordAdjustment(userID, topic, previous, difficulty, entity.ReasonManualOverride,
		state.CurrentSuccessRate, state.StabilityScore/entity.MaxStabilityScore); err != nil {
		return nil, err
	}

	e.invalidateRecommended(userID, topic)
	log.Printf("[Engine] Override set for user=%s topic=%s: %.2f (%s)", userID, topic, difficulty, reason)
	return state, nil
}

// ClearOverride снимает ручной override; эффективной снова становится
// скрытая baseline-сложность, которую калькулятор вёл под override.
// Снятие несуществующего override — no-op.
func (e *Engine) ClearOverride(userID uuid.UUID, topic string) (*entity.DifficultyState, error) {
	current, err := e.deps.StateRepo.GetByUserTopic(userID, topic)
	if err != nil {
		return nil, err
	}
	if !current.IsOverridden() {
		return current, nil
	}

	var previous float64
	cleared := false
	state, err := e.updateWithRetry(userID, topic, func(s *entity.DifficultyState) error {
		if !s.IsOverridden() {
			// Конкурентный запрос успел снять override первым
			cleared = false
			return nil
		}
		previous = *s.OverrideDifficulty
		s.ClearOverride()
		cleared = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !cleared {
		return state, nil
	}

	if err := e.recordAdjustment(userID, topic, previous, state.CurrentDifficulty, entity.ReasonManualOverride,
		state.CurrentSuccessRate, state.StabilityScore/entity.MaxStabilityScore); err != nil {
		return nil, err
	}

	e.invalidateRecommended(userID, topic)
	log.Printf("[Engine] Override cleared for user=%s topic=%s, resumed baseline %.2f", userID, topic, state.CurrentDifficulty)
	return state, nil
}

// AuditTrail возвращает последние записи журнала корректировок, самые свежие первыми
func (e *Engine) AuditTrail(userID uuid.UUID, topic string, limit int) ([]entity.AdjustmentLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.deps.LogRepo.GetRecent(userID, topic, limit)
}

// updateWithRetry выполняет read-modify-write состояния с optimistic
// concurrency: при конфликте версий перечитывает состояние и повторяет
// mutate, пока не исчерпан бюджет попыток.
func (e *Engine) updateWithRetry(userID uuid.UUID, topic string, mutate func(*entity.DifficultyState) error) (*entity.DifficultyState, error) {
	state, err := e.deps.StateRepo.GetByUserTopic(userID, topic)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		expected := state.LastUpdated

		if err := mutate(state); err != nil {
			return nil, err
		}
		state.LastUpdated = time.Now()

		err = e.deps.StateRepo.UpdateChecked(state, expected)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		if attempt >= e.deps.Config.MaxRetries {
			// Потерянная корректировка рассинхронизировала бы stability —
			// конфликт всплывает наружу, а не глотается
			return nil, fmt.Errorf("%w: difficulty state for user=%s topic=%s kept changing concurrently (%d attempts)",
				apperrors.ErrConflict, userID, topic, attempt)
		}

		log.Printf("[Engine] Concurrent update for user=%s topic=%s, retrying (%d/%d)",
			userID, topic, attempt, e.deps.Config.MaxRetries)
		state, err = e.deps.StateRepo.GetByUserTopic(userID, topic)
		if err != nil {
			return nil, err
		}
	}
}

// recordAdjustment пишет ровно одну запись журнала на применённую корректировку
func (e *Engine) recordAdjustment(userID uuid.UUID, topic string, previous, newDifficulty float64,
	reason entity.AdjustmentReason, trigger, confidence float64) error {

	entry := &entity.AdjustmentLogEntry{
		UserID:              userID,
		Topic:               topic,
		PreviousDifficulty:  previous,
		NewDifficulty:       newDifficulty,
		Reason:              reason,
		TriggerSuccessRate:  trigger,
		Magnitude:           math.Abs(newDifficulty - previous),
		AlgorithmConfidence: confidence,
	}
	if err := e.deps.LogRepo.Record(entry); err != nil {
		log.Printf("[Engine] ERROR: failed to record adjustment for user=%s topic=%s: %v", userID, topic, err)
		return fmt.Errorf("failed to record adjustment: %w", err)
	}
	return nil
}

// invalidateRecommended сбрасывает кеш рекомендованной сложности после записи
func (e *Engine) invalidateRecommended(userID uuid.UUID, topic string) {
	if e.deps.CacheRepo == nil {
		return
	}
	key := recommendedCacheKey(userID, topic)
	if err := e.deps.CacheRepo.Delete(key); err != nil {
		// Кеш добьёт TTL; чтение всё равно fail-open в Postgres
		log.Printf("[Engine] Failed to invalidate cache key %s: %v", key, err)
	}
}

func recommendedCacheKey(userID uuid.UUID, topic string) string {
	return fmt.Sprintf("difficulty:%s:%s:recommended", userID, topic)
}
