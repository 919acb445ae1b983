package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
	"github.com/yourusername/adaptive-api/internal/handler/dto"
	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
	"github.com/yourusername/adaptive-api/internal/service/adaptive"
)

// SessionHandler принимает снапшоты завершённых практических сессий
type SessionHandler struct {
	engine *adaptive.Engine
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(engine *adaptive.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

// CompleteSessionRequest представляет снапшот завершённой сессии.
// Формат binding-тегов грубый (тип/наличие); семантические инварианты
// проверяет движок и возвращает 422.
type CompleteSessionRequest struct {
	Topic                 string    `json:"topic" binding:"required,max=100"`
	StartDifficulty       float64   `json:"start_difficulty" binding:"required"`
	EndDifficulty         float64   `json:"end_difficulty" binding:"required"`
	AvgQuestionDifficulty float64   `json:"avg_question_difficulty" binding:"required"`
	QuestionsAnswered     int       `json:"questions_answered" binding:"required"`
	CorrectAnswers        int       `json:"correct_answers"`
	SessionSuccessRate    *float64  `json:"session_success_rate" binding:"required"`
	DifficultyProgression []float64 `json:"difficulty_progression"`
	CompletedAt           time.Time `json:"completed_at" binding:"required"`
}

// CompleteSession обрабатывает завершение практической сессии: сохраняет
// снапшот, пересчитывает сложность и возвращает обновлённое состояние
// POST /api/sessions
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot := &entity.SessionDifficultySnapshot{
		UserID:                userID,
		Topic:                 req.Topic,
		StartDifficulty:       req.StartDifficulty,
		EndDifficulty:         req.EndDifficulty,
		AvgQuestionDifficulty: req.AvgQuestionDifficulty,
		QuestionsAnswered:     req.QuestionsAnswered,
		CorrectAnswers:        req.CorrectAnswers,
		SessionSuccessRate:    *req.SessionSuccessRate,
		DifficultyProgression: pq.Float64Array(req.DifficultyProgression),
		CompletedAt:           req.CompletedAt,
	}

	state, err := h.engine.CompleteSession(snapshot)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewDifficultyStateResponse(state))
}

// handleSessionError обрабатывает ошибки движка и отправляет соответствующий HTTP ответ
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in SessionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
