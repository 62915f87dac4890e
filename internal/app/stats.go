package app

import (
	"context"
	"sync"
	"time"

	"streamloader/internal/model"

	"go.uber.org/zap"
)

// ProductionStats keeps running totals for the periodic summary log.
type ProductionStats struct {
	sync.Mutex
	Cycles  int64
	Records int64
	Retries int64
	Dropped int64
}

func NewProductionStats() *ProductionStats {
	return &ProductionStats{}
}

// Observe folds one cycle report into the totals.
func (s *ProductionStats) Observe(r model.CycleReport) {
	s.Lock()
	defer s.Unlock()
	s.Cycles++
	s.Records += int64(r.Accepted)
	s.Retries += int64(r.Retries)
	s.Dropped += int64(r.Outstanding)
}

// Snapshot returns a copy of the counters.
func (s *ProductionStats) Snapshot() (cycles, records, retries, dropped int64) {
	s.Lock()
	defer s.Unlock()
	return s.Cycles, s.Records, s.Retries, s.Dropped
}

// StartSummary logs the totals every interval until ctx is done.
func (s *ProductionStats) StartSummary(ctx context.Context, interval time.Duration, logger *zap.SugaredLogger) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cycles, records, retries, dropped := s.Snapshot()
				logger.Infow("production summary",
					"cycles", cycles, "records", records, "retries", retries, "dropped", dropped)
			}
		}
	}()
}
