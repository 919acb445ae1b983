package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifficultyState_EffectiveDifficulty_NoOverride(t *testing.T) {
	// Arrange
	state := &DifficultyState{
		CurrentDifficulty: 5.5,
	}

	// Act & Assert
	assert.Equal(t, 5.5, state.EffectiveDifficulty(), "Без override должна возвращаться текущая сложность")
	assert.Equal(t, StateStatusActive, state.Status())
	assert.False(t, state.IsOverridden())
}

func TestDifficultyState_EffectiveDifficulty_WithOverride(t *testing.T) {
	// Arrange
	state := &DifficultyState{
		CurrentDifficulty: 5.5,
	}
	state.SetOverride(8.0, "tutor request", time.Now())

	// Act & Assert: override перекрывает baseline, но baseline сохраняется
	assert.Equal(t, 8.0, state.EffectiveDifficulty(), "При активном override должно возвращаться его значение")
	assert.Equal(t, StateStatusOverridden, state.Status())
	assert.Equal(t, 5.5, state.CurrentDifficulty, "Baseline не должен изменяться при установке override")
}

func TestDifficultyState_ClearOverride_ResumesBaseline(t *testing.T) {
	// Arrange
	state := &DifficultyState{
		CurrentDifficulty: 6.01,
	}
	state.SetOverride(8.0, "tutor request", time.Now())

	// Act
	state.ClearOverride()

	// Assert: после снятия override возвращаемся к скрытому baseline
	assert.False(t, state.IsOverridden())
	assert.Nil(t, state.OverrideReason)
	assert.Nil(t, state.OverrideSetAt)
	assert.Equal(t, 6.01, state.EffectiveDifficulty(), "После снятия override должен вернуться baseline")
}

func TestClampDifficulty(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"ниже минимума", 0.3, MinDifficulty},
		{"выше максимума", 12.7, MaxDifficulty},
		{"внутри диапазона", 4.55, 4.55},
		{"ровно минимум", 1.0, 1.0},
		{"ровно максимум", 10.0, 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClampDifficulty(tt.input))
		})
	}
}

func TestClampStability(t *testing.T) {
	assert.Equal(t, 0.0, ClampStability(-3.0), "Stability не должен опускаться ниже 0")
	assert.Equal(t, 100.0, ClampStability(104.0), "Stability не должен подниматься выше 100")
	assert.Equal(t, 52.0, ClampStability(52.0))
}

func TestSessionSnapshot_Validate_OK(t *testing.T) {
	snap := &SessionDifficultySnapshot{
		UserID:                uuid.New(),
		Topic:                 "logical-reasoning",
		StartDifficulty:       5.0,
		EndDifficulty:         5.4,
		AvgQuestionDifficulty: 5.2,
		QuestionsAnswered:     10,
		CorrectAnswers:        7,
		SessionSuccessRate:    0.7,
		CompletedAt:           time.Now(),
	}

	require.NoError(t, snap.Validate())
}

func TestSessionSnapshot_Validate_Errors(t *testing.T) {
	base := func() *SessionDifficultySnapshot {
		return &SessionDifficultySnapshot{
			UserID:             uuid.New(),
			Topic:              "logic-games",
			StartDifficulty:    5.0,
			EndDifficulty:      5.0,
			QuestionsAnswered:  10,
			CorrectAnswers:     5,
			SessionSuccessRate: 0.5,
			CompletedAt:        time.Now(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*SessionDifficultySnapshot)
	}{
		{"пустой user_id", func(s *SessionDifficultySnapshot) { s.UserID = uuid.Nil }},
		{"пустая тема", func(s *SessionDifficultySnapshot) { s.Topic = "" }},
		{"ноль вопросов", func(s *SessionDifficultySnapshot) { s.QuestionsAnswered = 0 }},
		{"правильных больше, чем отвечено", func(s *SessionDifficultySnapshot) { s.CorrectAnswers = 11 }},
		{"success rate выше 1", func(s *SessionDifficultySnapshot) { s.SessionSuccessRate = 1.2 }},
		{"success rate ниже 0", func(s *SessionDifficultySnapshot) { s.SessionSuccessRate = -0.1 }},
		{"стартовая сложность вне границ", func(s *SessionDifficultySnapshot) { s.StartDifficulty = 0.0 }},
		{"нет completed_at", func(s *SessionDifficultySnapshot) { s.CompletedAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := base()
			tt.mutate(snap)
			assert.Error(t, snap.Validate(), "Нарушение контракта должно возвращать ошибку, а не клампиться")
		})
	}
}
