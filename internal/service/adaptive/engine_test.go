package adaptive

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
)

// ============================================================================
// In-memory фейки для Engine. Сценарии движка многошаговые (ретраи,
// гонки инициализации), поэтому вместо цепочек mock.On используем
// маленькое честное хранилище с имитацией optimistic concurrency.
// ============================================================================

// fakeStateRepo хранит одну строку difficulty_states
type fakeStateRepo struct {
	stored        *entity.DifficultyState
	conflictsLeft int // сколько UpdateChecked подряд ответят конфликтом
	hideGets      int // первые N чтений отвечают NotFound (гонка ленивой инициализации)
	createCalls   int
}

func (f *fakeStateRepo) GetByUserTopic(userID uuid.UUID, topic string) (*entity.DifficultyState, error) {
	if f.hideGets > 0 {
		f.hideGets--
		return nil, apperrors.ErrNotFound
	}
	if f.stored == nil || f.stored.UserID != userID || f.stored.Topic != topic {
		return nil, apperrors.ErrNotFound
	}
	snapshot := *f.stored
	return &snapshot, nil
}

func (f *fakeStateRepo) Create(state *entity.DifficultyState) error {
	f.createCalls++
	if f.stored != nil {
		return apperrors.ErrConflict
	}
	stored := *state
	stored.ID = 1
	f.stored = &stored
	state.ID = 1
	return nil
}

func (f *fakeStateRepo) UpdateChecked(state *entity.DifficultyState, expectedLastUpdated time.Time) error {
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		// Конкурентная сессия успела первой: версия в "БД" уходит вперёд
		f.stored.LastUpdated = f.stored.LastUpdated.Add(time.Millisecond)
		return apperrors.ErrConflict
	}
	if f.stored == nil || !f.stored.LastUpdated.Equal(expectedLastUpdated) {
		return apperrors.ErrConflict
	}
	stored := *state
	f.stored = &stored
	return nil
}

// fakeSnapshotRepo хранит снапшоты, самые свежие первыми
type fakeSnapshotRepo struct {
	snapshots []entity.SessionDifficultySnapshot
	saveErr   error
}

func (f *fakeSnapshotRepo) Save(snapshot *entity.SessionDifficultySnapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snapshots = append([]entity.SessionDifficultySnapshot{*snapshot}, f.snapshots...)
	return nil
}

func (f *fakeSnapshotRepo) GetRecent(userID uuid.UUID, topic string, maxSessions int, since time.Time) ([]entity.SessionDifficultySnapshot, error) {
	var result []entity.SessionDifficultySnapshot
	for _, snap := range f.snapshots {
		if snap.UserID != userID || snap.Topic != topic || snap.CompletedAt.Before(since) {
			continue
		}
		result = append(result, snap)
		if len(result) == maxSessions {
			break
		}
	}
	return result, nil
}

// fakeLogRepo — append-only журнал
type fakeLogRepo struct {
	entries   []entity.AdjustmentLogEntry
	lastLimit int
	recordErr error
}

func (f *fakeLogRepo) Record(entry *entity.AdjustmentLogEntry) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	stored := *entry
	stored.CreatedAt = time.Now()
	f.entries = append(f.entries, stored)
	return nil
}

func (f *fakeLogRepo) GetRecent(userID uuid.UUID, topic string, limit int) ([]entity.AdjustmentLogEntry, error) {
	f.lastLimit = limit
	var result []entity.AdjustmentLogEntry
	for i := len(f.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if f.entries[i].UserID == userID && f.entries[i].Topic == topic {
			result = append(result, f.entries[i])
		}
	}
	return result, nil
}

// fakeCache — кеш на map, без TTL
type fakeCache struct {
	values map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (f *fakeCache) Set(key string, value interface{}, _ time.Duration) error {
	f.values[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeCache) Get(key string) (string, error) {
	val, ok := f.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return val, nil
}

func (f *fakeCache) Delete(key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeCache) SetJSON(key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = string(data)
	return nil
}

func (f *fakeCache) GetJSON(key string, dest interface{}) error {
	val, ok := f.values[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal([]byte(val), dest)
}

// ============================================================================
// Хелперы
// ============================================================================

type engineFixture struct {
	engine *Engine
	states *fakeStateRepo
	snaps  *fakeSnapshotRepo
	logs   *fakeLogRepo
	cache  *fakeCache
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		states: &fakeStateRepo{},
		snaps:  &fakeSnapshotRepo{},
		logs:   &fakeLogRepo{},
		cache:  newFakeCache(),
	}
	f.engine = NewEngine(&Dependencies{
		StateRepo:    f.states,
		SnapshotRepo: f.snaps,
		LogRepo:      f.logs,
		CacheRepo:    f.cache,
		Config:       DefaultConfig(),
	})
	return f
}

func seedState(f *engineFixture, userID uuid.UUID, topic string, difficulty, stability float64) {
	f.states.stored = &entity.DifficultyState{
		ID:                 1,
		UserID:             userID,
		Topic:              topic,
		CurrentDifficulty:  difficulty,
		StabilityScore:     stability,
		ConfidenceInterval: 2.0,
		SuccessRateTarget:  0.75,
		LastUpdated:        time.Now(),
	}
}

func seedSessions(f *engineFixture, userID uuid.UUID, topic string, rates ...float64) {
	for i, rate := range rates {
		f.snaps.snapshots = append(f.snaps.snapshots, entity.SessionDifficultySnapshot{
			UserID:             userID,
			Topic:              topic,
			SessionSuccessRate: rate,
			CompletedAt:        time.Now().Add(-time.Duration(i+1) * time.Hour),
		})
	}
}

func makeSnapshot(userID uuid.UUID, topic string, rate float64, questions int) *entity.SessionDifficultySnapshot {
	correct := int(rate * float64(questions))
	return &entity.SessionDifficultySnapshot{
		UserID:                userID,
		Topic:                 topic,
		StartDifficulty:       5.0,
		EndDifficulty:         5.0,
		AvgQuestionDifficulty: 5.0,
		QuestionsAnswered:     questions,
		CorrectAnswers:        correct,
		SessionSuccessRate:    rate,
		CompletedAt:           time.Now(),
	}
}

// ============================================================================
// Тесты для Engine.CompleteSession
// ============================================================================

// TestCompleteSession_AppliesAdjustmentAndLogs — контрольный сценарий:
// state {5.0, stability=50, target=0.75, CI=2.0}, rolling rate 0.95 по
// 5 сессиям → новая сложность 4.55, ровно одна запись журнала
func TestCompleteSession_AppliesAdjustmentAndLogs(t *testing.T) {
	userID := uuid.New()
	topic := "logic-games"

	f := newEngineFixture()
	seedState(f, userID, topic, 5.0, 50.0)
	seedSessions(f, userID, topic, 0.95, 0.95, 0.95, 0.95)
	f.cache.values[recommendedCacheKey(userID, topic)] = "5"

	state, err := f.engine.CompleteSession(makeSnapshot(userID, topic, 0.95, 20))

	require.NoError(t, err)
	assert.InDelta(t, 4.55, state.CurrentDifficulty, 1e-9)
	assert.InDelta(t, 47.0, state.StabilityScore, 1e-9, "|error|=0.20 → штраф -3")
	assert.InDelta(t, 0.95, state.CurrentSuccessRate, 1e-9)
	assert.Equal(t, 1, state.SessionsAnalyzed)
	assert.Equal(t, 20, state.QuestionsAttempted)
	require.NotNil(t, state.LastSessionAt)

	// Аудит: ровно одна запись, new_difficulty совпадает с состоянием
	require.Len(t, f.logs.entries, 1)
	entry := f.logs.entries[0]
	assert.Equal(t, entity.ReasonPerformanceBased, entry.Reason)
	assert.InDelta(t, 5.0, entry.PreviousDifficulty, 1e-9)
	assert.InDelta(t, state.CurrentDifficulty, entry.NewDifficulty, 1e-9)
	assert.InDelta(t, 0.45, entry.Magnitude, 1e-9)
	assert.InDelta(t, 0.95, entry.TriggerSuccessRate, 1e-9)
	assert.InDelta(t, 0.5, entry.AlgorithmConfidence, 1e-9)

	// Кеш рекомендованной сложности инвалидирован
	_, cacheErr := f.cache.Get(recommendedCacheKey(userID, topic))
	assert.True(t, errors.Is(cacheErr, apperrors.ErrNotFound), "Запись должна сбрасывать кеш")
}

// TestCompleteSession_FirstSession — ленивая инициализация: состояние
// создаётся с дефолтами, в журнале session_start + performance_based
func TestCompleteSession_FirstSession(t *testing.T) {
	userID := uuid.New()
	topic := "reading-comp"

	f := newEngineFixture()

	state, err := f.engine.CompleteSession(makeSnapshot(userID, topic, 0.4, 10))

	require.NoError(t, err)
	// error = 0.75-0.40 = 0.35, raw = 1.05, stability=0 → без гашения
	assert.InDelta(t, 6.05, state.CurrentDifficulty, 1e-9)
	assert.Equal(t, 1, state.SessionsAnalyzed)

	require.Len(t, f.logs.entries, 2)
	assert.Equal(t, entity.ReasonSessionStart, f.logs.entries[0].Reason, "Создание состояния фиксирует точку отсчёта")
	assert.Equal(t, 0.0, f.logs.entries[0].Magnitude)
	assert.Equal(t, entity.ReasonPerformanceBased, f.logs.entries[1].Reason)
}

// TestCompleteSession_OverrideActive — при активном override калькулятор
// продолжает вести скрытый baseline, а наружу отдаётся override
func TestCompleteSession_OverrideActive(t *testing.T) {
	userID := uuid.New()
	topic := "logic-games"

	f := newEngineFixture()
	seedState(f, userID, topic, 5.0, 50.0)
	f.states.stored.SetOverride(8.0, "tutor request", time.Now())
	seedSessions(f, userID, topic, 0.95, 0.95, 0.95, 0.95)

	state, err := f.engine.CompleteSession(makeSnapshot(userID, topic, 0.95, 20))

	require.NoError(t, err)
	assert.InDelta(t, 4.55, state.CurrentDifficulty, 1e-9, "Baseline должен обновляться под override")
	assert.True(t, state.IsOverridden())

	recommended, err := f.engine.GetRecommended(userID, topic)
	require.NoError(t, err)
	assert.Equal(t, 8.0, recommended, "Наружу при override отдаётся его значение")
}

// TestCompleteSession_RetriesOnConflict — один конфликт версий поглощается
// повтором, корректировка не теряется
func TestCompleteSession_RetriesOnConflict(t *testing.T) {
	userID := uuid.New()
	topic := "logic-games"

	f := newEngineFixture()
	seedState(f, userID, topic, 5.0, 50.0)
	seedSessions(f, userID, topic, 0.95, 0.95, 0.95, 0.95)
	f.states.conflictsLeft = 1

	state, err := f.engine.CompleteSession(makeSnapshot(userID, topic, 0.95, 20))

	require.NoError(t, err)
	assert.InDelta(t, 4.55, state.CurrentDifficulty, 1e-9)
	require.Len(t, f.logs.entries, 1, "После успешного повтора — ровно одна запись журнала")
}

// TestCompleteSession_ConflictBudgetExhausted — исчерпание бюджета повторов
// всплывает как ErrConflict, а не глотается
func TestCompleteSession_ConflictBudgetExhausted(t *testing.T) {
	userID := uuid.New()
	topic := "logic-games"

	f := newEngineFixture()
	seedState(f, userID, topic, 5.0, 50.0)
	f.states.conflictsLeft = 10 // конфликтов больше, чем MaxRetries

	_, err := f.engine.CompleteSession(makeSnapshot(userID, topic, 0.5, 10))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, f.logs.entries, "Неприменённая корректировка не должна попадать в журнал")
}

// TestCompleteSession_InvalidSnapshot — нарушение входного контракта
// отклоняется до каких-либо записей
func TestCompleteSession_InvalidSnapshot(t *testing.T) {
	f := newEngineFixture()

	snap := makeSnapshot(uuid.New(), "logic-games", 0.5, 10)
	snap.SessionSuccessRate = 1.5

	_, err := f.engine.CompleteSession(snap)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, f.snaps.snapshots, "Невалидный снапшот не должен сохраняться")
	assert.Empty(t, f.logs.entries)
}

// ============================================================================
// Тесты для override-жизненного цикла
// ============================================================================

// TestOverrideLifecycle — сценарий из контракта: override 8.0 перекрывает
// рекомендации, baseline уезжает на 6.0125, снятие override возвращает
// актуальный baseline, а не доисторические 5.0
func TestOverrideLifecycle(t *testing.T) {
	userID := uuid.New()
	topic := "logical-reasoning"

	f := newEngineFixture()
	seedState(f, userID, topic, 5.0, 50.0)

	// Устанавливаем override
	state, err := f.engine.SetOverride(userID, topic, 8.0, "tutor request")
	require.NoError(t, err)
	assert.Equal(t, entity.StateStatusOverridden, state.Status())

	recommended, err := f.engine.GetRecommended(userID, topic)
	require.NoError(t, err)
	assert.Equal(t, 8.0, recommended)

	// Сессии со слабой производительностью двигают скрытый baseline вверх
	seedSessions(f, userID, topic, 0.30, 0.30, 0.30, 0.30)
	state, err = f.engine.CompleteSession(makeSnapshot(userID, topic, 0.30, 10))
	require.NoError(t, err)
	assert.InDelta(t, 6.0125, state.CurrentDifficulty, 1e-9)

	recommended, err = f.engine.GetRecommended(userID, topic)
	require.NoError(t, err)
	assert.Equal(t, 8.0, recommended, "Override всё ещё активен")

	// Снятие override возвращает свежий baseline
	state, err = f.engine.ClearOverride(userID, topic)
	require.NoError(t, err)
	assert.Equal(t, entity.StateStatusActive, state.Status())

	recommended, err = f.engine.GetRecommended(userID, topic)
	require.NoError(t, err)
	assert.InDelta(t, 6.0125, recommended, 1e-9, "Резюмируем с актуального baseline, не с 5.0")
}

// TestSetOverride_Validation — границы [1,10] и обязательная причина
func TestSetOverride_Validation(t *testing.T) {
	userID := uuid.New()
	f := newEngineFixture()

	tests := []struct {
		name       string
		difficulty float64
		reason     string
	}{
		{"ниже минимума", 0.5, "too easy"},
		{"выше максимума", 10.5, "too hard"},
		{"пустая причина", 7.0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.SetOverride(userID, "logic-games", tt.difficulty, tt.reason)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
		})
	}
}

// TestClearOverride_NoOverride — снятие несуществующего override это no-op
func TestClearOverride_NoOverride(t *testing.T) {
	userID := uuid.New()
	topic := "logic-games"

	f := newEngineFixture()
	seedState(f, userID, topic, 5.0, 50.0)

	state, err := f.engine.ClearOverride(userID, topic)

	require.NoError(t, err)
	assert.False(t, state.IsOverridden())
	assert.Empty(t, f.logs.entries, "No-op не должен писать в журнал")
}

// ============================================================================
// Тесты для GetOrInit / GetRecommended / AuditTrail
// ============================================================================

// TestGetOrInit_StyleHints — подсказка стиля определяет стартовую сложность
func TestGetOrInit_StyleHints(t *testing.T) {
	tests := []struct {
		style    entity.LearningStyle
		expected float64
	}{
		{entity.LearningStyleFast, 6.0},
		{entity.LearningStyleMethodical, 4.0},
		{entity.LearningStyleNone, 5.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			f := newEngineFixture()
			state, err := f.engine.GetOrInit(uuid.New(), "logic-games", tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, state.CurrentDifficulty)
			assert.Equal(t, 0.75, state.SuccessRateTarget)
			assert.Equal(t, 2.0, state.ConfidenceInterval)
		})
	}
}

// TestGetOrInit_HintNotReapplied — подсказка одноразовая: повторный вызов
// с другим стилем возвращает существующее состояние
func TestGetOrInit_HintNotReapplied(t *testing.T) {
	userID := uuid.New()
	f := newEngineFixture()

	_, err := f.engine.GetOrInit(userID, "logic-games", entity.LearningStyleMethodical)
	require.NoError(t, err)

	state, err := f.engine.GetOrInit(userID, "logic-games", entity.LearningStyleFast)
	require.NoError(t, err)
	assert.Equal(t, 4.0, state.CurrentDifficulty, "Подсказка применяется только при создании")
	assert.Equal(t, 1, f.states.createCalls)
}

// TestGetOrInit_InvalidStyle — неизвестная подсказка отклоняется
func TestGetOrInit_InvalidStyle(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.GetOrInit(uuid.New(), "logic-games", entity.LearningStyle("visual"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

// TestGetOrInit_LazyInitRace — проигравший гонку инициализации читает
// строку, созданную конкурентом
func TestGetOrInit_LazyInitRace(t *testing.T) {
	userID := uuid.New()
	topic := "logic-games"

	f := newEngineFixture()
	seedState(f, userID, topic, 6.0, 10.0) // строка "другого устройства"
	f.states.hideGets = 1                  // первое чтение её ещё не видит

	state, err := f.engine.GetOrInit(userID, topic, entity.LearningStyleNone)

	require.NoError(t, err)
	assert.Equal(t, 6.0, state.CurrentDifficulty, "Должна вернуться строка, созданная конкурентом")
	assert.Equal(t, 1, f.states.createCalls)
}

// TestGetRecommended_Caches — повторное чтение обслуживается кешем
func TestGetRecommended_Caches(t *testing.T) {
	userID := uuid.New()
	topic := "logic-games"

	f := newEngineFixture()
	seedState(f, userID, topic, 5.0, 50.0)

	first, err := f.engine.GetRecommended(userID, topic)
	require.NoError(t, err)
	assert.Equal(t, 5.0, first)

	// Меняем хранилище в обход движка: кешированное значение ещё живо
	f.states.stored.CurrentDifficulty = 9.0

	second, err := f.engine.GetRecommended(userID, topic)
	require.NoError(t, err)
	assert.Equal(t, 5.0, second, "Hot path должен обслуживаться кешем до инвалидации")
}

// TestGetRecommended_NotFound — без состояния и без ленивой инициализации
func TestGetRecommended_NotFound(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.GetRecommended(uuid.New(), "logic-games")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// TestAuditTrail_DefaultLimit — нулевой limit заменяется дефолтным
func TestAuditTrail_DefaultLimit(t *testing.T) {
	userID := uuid.New()
	f := newEngineFixture()

	_, err := f.engine.AuditTrail(userID, "logic-games", 0)

	require.NoError(t, err)
	assert.Equal(t, 20, f.logs.lastLimit)
}
