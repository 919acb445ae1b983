package adaptive

import (
	"time"

	"github.com/yourusername/adaptive-api/internal/domain/repository"
)

// Config содержит настройки адаптивного движка сложности.
// Коэффициенты подобраны эмпирически и намеренно вынесены в конфигурацию:
// их роль — гасить осцилляции и ограничивать размер шага, а не точная формула.
type Config struct {
	// Gain — коэффициент реакции на отклонение от целевого success rate
	Gain float64

	// DampingDivisor — делитель stability-гашения: шаг умножается
	// на (1 - stability/DampingDivisor)
	DampingDivisor float64

	// StabilityReward — прирост stability при стабильной производительности
	StabilityReward float64

	// StabilityPenalty — снижение stability при волатильной производительности
	StabilityPenalty float64

	// SmallErrorThreshold — |error|, ниже которого производительность
	// считается стабильной
	SmallErrorThreshold float64

	// VolatilityThreshold — отклонение последней сессии от rolling-оценки,
	// после которого корректировка помечается как stability_correction
	VolatilityThreshold float64

	// DefaultConfidenceInterval — стартовый кап размера шага для новых состояний
	DefaultConfidenceInterval float64

	// DefaultSuccessRateTarget — целевой success rate для новых состояний
	DefaultSuccessRateTarget float64

	// LookbackSessions и LookbackDays — окно агрегатора.
	// Применяются оба ограничения: побеждает более узкое.
	LookbackSessions int
	LookbackDays     int

	// MaxRetries — бюджет повторов optimistic-concurrency обновления
	MaxRetries int

	// RecommendedCacheTTL — время жизни кеша рекомендованной сложности
	RecommendedCacheTTL time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Gain:                      3.0,
		DampingDivisor:            200.0,
		StabilityReward:           2.0,
		StabilityPenalty:          3.0,
		SmallErrorThreshold:       0.10,
		VolatilityThreshold:       0.35,
		DefaultConfidenceInterval: 2.0,
		DefaultSuccessRateTarget:  0.75,
		LookbackSessions:          5,
		LookbackDays:              7,
		MaxRetries:                3,
		RecommendedCacheTTL:       5 * time.Minute,
	}
}

// Dependencies содержит зависимости движка
type Dependencies struct {
	StateRepo    repository.DifficultyStateRepository
	SnapshotRepo repository.SnapshotRepository
	LogRepo      repository.AdjustmentLogRepository
	CacheRepo    repository.CacheRepository
	Config       *Config
}

// Performance — результат работы агрегатора для пары (пользователь, тема)
type Performance struct {
	// RecentSuccessRate — среднее session_success_rate по окну. 0.5 при cold start.
	RecentSuccessRate float64

	// LastSessionRate — success rate самой свежей сессии окна.
	// При cold start совпадает с RecentSuccessRate.
	LastSessionRate float64

	// SampleCount — количество сессий в окне. 0 означает cold start.
	SampleCount int
}
