package adaptive

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/adaptive-api/internal/domain/repository"
)

// Aggregator вычисляет rolling success rate по недавним снапшотам сессий.
// Только чтение, без побочных эффектов: безопасно вызывать из
// latency-чувствительного пути старта сессии.
type Aggregator struct {
	snapshots repository.SnapshotRepository
	config    *Config
}

// NewAggregator создаёт новый агрегатор производительности
func NewAggregator(snapshots repository.SnapshotRepository, config *Config) *Aggregator {
	return &Aggregator{snapshots: snapshots, config: config}
}

// RecentPerformance возвращает среднее session_success_rate по окну:
// не более LookbackSessions последних сессий и не старше LookbackDays дней
// (применяются оба ограничения). При отсутствии истории — нейтральные 0.5
// и SampleCount = 0.
func (a *Aggregator) RecentPerformance(userID uuid.UUID, topic string) (Performance, error) {
	since := time.Now().AddDate(0, 0, -a.config.LookbackDays)

	snapshots, err := a.snapshots.GetRecent(userID, topic, a.config.LookbackSessions, since)
	if err != nil {
		return Performance{}, fmt.Errorf("failed to load recent snapshots: %w", err)
	}

	if len(snapshots) == 0 {
		return Performance{
			RecentSuccessRate: 0.5,
			LastSessionRate:   0.5,
			SampleCount:       0,
		}, nil
	}

	var sum float64
	for _, snap := range snapshots {
		sum += snap.SessionSuccessRate
	}

	return Performance{
		RecentSuccessRate: sum / float64(len(snapshots)),
		// GetRecent отдаёт самые свежие первыми
		LastSessionRate: snapshots[0].SessionSuccessRate,
		SampleCount:     len(snapshots),
	}, nil
}
