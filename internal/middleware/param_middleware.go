package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Темы — slug'и вида "logic-games", "logical-reasoning", "reading-comp"
var topicPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ExtractUUIDParam создает middleware для извлечения и валидации UUID-параметра URL.
// paramName - имя параметра в URL (например, "userID").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
func ExtractUUIDParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param(paramName))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		c.Set(contextKey, id)
		c.Next()
	}
}

// ExtractTopicParam извлекает и валидирует slug темы из URL.
// Значение сохраняется в контексте под ключом "topic".
func ExtractTopicParam(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		topic := c.Param(paramName)
		if topic == "" || len(topic) > 100 || !topicPattern.MatchString(topic) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		c.Set("topic", topic)
		c.Next()
	}
}
