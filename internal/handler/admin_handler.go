package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/adaptive-api/internal/domain/entity"
	"github.com/yourusername/adaptive-api/internal/handler/dto"
	apperrors "github.com/yourusername/adaptive-api/internal/pkg/errors"
	"github.com/yourusername/adaptive-api/internal/service/adaptive"
)

// Верхняя граница выгрузки журнала за один запрос
const exportMaxEntries = 10000

// AdminHandler обрабатывает админские запросы (service role): просмотр
// состояния любого пользователя и экспорт журнала корректировок
type AdminHandler struct {
	engine *adaptive.Engine
}

// NewAdminHandler создает новый админский обработчик
func NewAdminHandler(engine *adaptive.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// GetUserState возвращает состояние сложности произвольного пользователя
// GET /api/admin/users/:userID/topics/:topic/state
func (h *AdminHandler) GetUserState(c *gin.Context) {
	userID := c.MustGet("targetUserID").(uuid.UUID)
	topic := c.MustGet("topic").(string)

	state, err := h.engine.GetState(userID, topic)
	if err != nil {
		h.handleAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDifficultyStateResponse(state))
}

// GetUserAdjustments возвращает журнал корректировок произвольного пользователя
// GET /api/admin/users/:userID/topics/:topic/adjustments?limit=50
func (h *AdminHandler) GetUserAdjustments(c *gin.Context) {
	userID := c.MustGet("targetUserID").(uuid.UUID)
	topic := c.MustGet("topic").(string)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [0, 1000]"})
		return
	}

	entries, err := h.engine.AuditTrail(userID, topic, limit)
	if err != nil {
		h.handleAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAdjustmentListResponse(entries))
}

// ExportAdjustments выгружает журнал корректировок в CSV или XLSX
// GET /api/admin/users/:userID/topics/:topic/adjustments/export?format=csv|xlsx
func (h *AdminHandler) ExportAdjustments(c *gin.Context) {
	userID := c.MustGet("targetUserID").(uuid.UUID)
	topic := c.MustGet("topic").(string)
	format := c.DefaultQuery("format", "csv")

	entries, err := h.engine.AuditTrail(userID, topic, exportMaxEntries)
	if err != nil {
		h.handleAdminError(c, err)
		return
	}

	filename := fmt.Sprintf("adjustments_%s_%s_%s", userID, topic, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, entries, filename)
	default:
		h.exportCSV(c, entries, filename)
	}
}

// exportCSV выгружает журнал в CSV с правильным экранированием спецсимволов
func (h *AdminHandler) exportCSV(c *gin.Context, entries []entity.AdjustmentLogEntry, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// Заголовки
	writer.Write([]string{"Когда", "Тема", "Причина", "Было", "Стало", "Шаг", "Success rate", "Уверенность"})

	// Данные
	for _, e := range entries {
		writer.Write([]string{
			e.CreatedAt.Format(time.RFC3339),
			sanitizeForExport(e.Topic),
			translateReason(e.Reason),
			strconv.FormatFloat(e.PreviousDifficulty, 'f', 4, 64),
			strconv.FormatFloat(e.NewDifficulty, 'f', 4, 64),
			strconv.FormatFloat(e.Magnitude, 'f', 4, 64),
			strconv.FormatFloat(e.TriggerSuccessRate, 'f', 4, 64),
			strconv.FormatFloat(e.AlgorithmConfidence, 'f', 2, 64),
		})
	}
}

// exportXLSX выгружает журнал в Excel с использованием StreamWriter
func (h *AdminHandler) exportXLSX(c *gin.Context, entries []entity.AdjustmentLogEntry, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Корректировки"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	// Заголовки
	headers := []interface{}{"Когда", "Тема", "Причина", "Было", "Стало", "Шаг", "Success rate", "Уверенность"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminHandler] Ошибка записи заголовков: %v", err)
	}

	// Данные
	for i, e := range entries {
		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		row := []interface{}{
			e.CreatedAt.Format(time.RFC3339),
			sanitizeForExport(e.Topic),
			translateReason(e.Reason),
			e.PreviousDifficulty,
			e.NewDifficulty,
			e.Magnitude,
			e.TriggerSuccessRate,
			e.AlgorithmConfidence,
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AdminHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] Ошибка при Flush: %v", err)
	}

	// Записываем в response
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExport экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExport(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// translateReason переводит причину корректировки на русский
func translateReason(reason entity.AdjustmentReason) string {
	switch reason {
	case entity.ReasonPerformanceBased:
		return "По производительности"
	case entity.ReasonManualOverride:
		return "Ручной override"
	case entity.ReasonStabilityCorrection:
		return "Коррекция стабильности"
	case entity.ReasonSessionStart:
		return "Старт обучения"
	default:
		return string(reason)
	}
}

// handleAdminError обрабатывает ошибки движка и отправляет соответствующий HTTP ответ
func (h *AdminHandler) handleAdminError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in AdminHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
