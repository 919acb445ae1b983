package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
	"github.com/yourusername/adaptive-api/internal/handler/dto"
	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
	"github.com/yourusername/adaptive-api/internal/service/adaptive"
)

// DifficultyHandler обрабатывает запросы, связанные с адаптивной сложностью
type DifficultyHandler struct {
	engine *adaptive.Engine
}

// NewDifficultyHandler создает новый обработчик сложности
func NewDifficultyHandler(engine *adaptive.Engine) *DifficultyHandler {
	return &DifficultyHandler{engine: engine}
}

// GetRecommended возвращает рекомендованную сложность для темы.
// Старт сессии: состояние создаётся лениво, подсказку стиля обучения
// можно передать query-параметром learning_style (учитывается один раз).
// GET /api/topics/:topic/recommended
func (h *DifficultyHandler) GetRecommended(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	topic := c.MustGet("topic").(string)
	style := entity.LearningStyle(c.Query("learning_style"))

	if _, err := h.engine.GetOrInit(userID, topic, style); err != nil {
		h.handleDifficultyError(c, err)
		return
	}

	recommended, err := h.engine.GetRecommended(userID, topic)
	if err != nil {
		h.handleDifficultyError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RecommendedDifficultyResponse{
		Topic:                 topic,
		RecommendedDifficulty: recommended,
	})
}

// GetState возвращает полное состояние сложности по теме (без ленивой инициализации)
// GET /api/topics/:topic/state
func (h *DifficultyHandler) GetState(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	topic := c.MustGet("topic").(string)

	state, err := h.engine.GetState(userID, topic)
	if err != nil {
		h.handleDifficultyError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDifficultyStateResponse(state))
}

// SetOverrideRequest представляет запрос на установку ручного override
type SetOverrideRequest struct {
	Difficulty float64 `json:"difficulty" binding:"required"`
	Reason     string  `json:"reason" binding:"required,min=3,max=255"`
}

// SetOverride устанавливает ручной override сложности
// PUT /api/topics/:topic/override
func (h *DifficultyHandler) SetOverride(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	topic := c.MustGet("topic").(string)

	var req SetOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.engine.SetOverride(userID, topic, req.Difficulty, req.Reason)
	if err != nil {
		h.handleDifficultyError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDifficultyStateResponse(state))
}

// ClearOverride снимает ручной override; выбор вопросов возвращается
// к baseline, который калькулятор продолжал вести под override
// DELETE /api/topics/:topic/override
func (h *DifficultyHandler) ClearOverride(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	topic := c.MustGet("topic").(string)

	state, err := h.engine.ClearOverride(userID, topic)
	if err != nil {
		h.handleDifficultyError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDifficultyStateResponse(state))
}

// GetAdjustments возвращает последние записи журнала корректировок
// GET /api/topics/:topic/adjustments?limit=20
func (h *DifficultyHandler) GetAdjustments(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	topic := c.MustGet("topic").(string)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [0, 100]"})
		return
	}

	entries, err := h.engine.AuditTrail(userID, topic, limit)
	if err != nil {
		h.handleDifficultyError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAdjustmentListResponse(entries))
}

// handleDifficultyError обрабатывает ошибки движка и отправляет соответствующий HTTP ответ
func (h *DifficultyHandler) handleDifficultyError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in DifficultyHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
