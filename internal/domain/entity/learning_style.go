package entity

// LearningStyle — одноразовая внешняя подсказка о стиле обучения.
// Учитывается ТОЛЬКО при создании DifficultyState и никогда не переоценивается.
type LearningStyle string

const (
	// LearningStyleFast — уверенный старт с повышенной сложности
	LearningStyleFast LearningStyle = "fast"

	// LearningStyleMethodical — осторожный старт с пониженной сложности
	LearningStyleMethodical LearningStyle = "methodical"

	// LearningStyleNone — подсказка не передана
	LearningStyleNone LearningStyle = ""
)

// IsValid проверяет, что подсказка входит в известный набор
func (s LearningStyle) IsValid() bool {
	switch s {
	case LearningStyleFast, LearningStyleMethodical, LearningStyleNone:
		return true
	}
	return false
}

// StartingDifficulty возвращает стартовую сложность для нового состояния
func (s LearningStyle) StartingDifficulty() float64 {
	switch s {
	case LearningStyleFast:
		return 6.0
	case LearningStyleMethodical:
		return 4.0
	default:
		return 5.0
	}
}
