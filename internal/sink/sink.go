// Package sink holds the ingestion-service clients records are submitted to.
// Every client answers PutRecords with one status per submitted record, in
// submission order.
package sink

import (
	"context"
	"fmt"

	"streamloader/internal/config"
	"streamloader/internal/db"
	"streamloader/internal/model"

	"go.uber.org/zap"
)

type Sink interface {
	PutRecords(ctx context.Context, streamName string, records []model.IngestionRecord) (model.BatchResult, error)
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

// New builds the sink selected by cfg.SinkBackend.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (Sink, error) {
	switch cfg.SinkBackend {
	case config.BackendKinesis:
		return NewKinesisSink(ctx, cfg, logger)
	case config.BackendKafka:
		return NewKafkaSink(cfg, logger)
	case config.BackendPostgres:
		mgr, err := db.NewManager(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s, err := NewPostgresSink(ctx, mgr, cfg.DBTable, logger)
		if err != nil {
			mgr.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.SinkBackend)
	}
}

func countFailed(statuses []model.RecordStatus) int {
	n := 0
	for _, s := range statuses {
		if s.Failed() {
			n++
		}
	}
	return n
}
