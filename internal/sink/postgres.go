package sink

import (
	"context"
	"errors"
	"fmt"

	"streamloader/internal/config"
	"streamloader/internal/db"
	"streamloader/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// PostgresSink appends records to a table, one row per record.
type PostgresSink struct {
	sender   db.BatchSender
	pinger   func(ctx context.Context) error
	shutdown func()
	table    string
	logger   *zap.SugaredLogger
}

func NewPostgresSink(ctx context.Context, mgr *db.Manager, table string, logger *zap.SugaredLogger) (*PostgresSink, error) {
	if err := db.EnsureRecordTable(ctx, mgr.Pool(), table); err != nil {
		return nil, err
	}
	logger.Infow("postgres sink ready", "table", table)
	return &PostgresSink{
		sender:   mgr.Pool(),
		pinger:   mgr.Ping,
		shutdown: mgr.Close,
		table:    table,
		logger:   logger,
	}, nil
}

func NewPostgresSinkWithSender(sender db.BatchSender, table string, logger *zap.SugaredLogger) *PostgresSink {
	return &PostgresSink{sender: sender, table: table, logger: logger}
}

func (p *PostgresSink) Name() string { return config.BackendPostgres }

func (p *PostgresSink) PutRecords(ctx context.Context, streamName string, records []model.IngestionRecord) (model.BatchResult, error) {
	errs, err := db.InsertRecords(ctx, p.sender, p.table, streamName, records)
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("postgres insert: %w", err)
	}

	statuses := make([]model.RecordStatus, len(records))
	for i, e := range errs {
		if e == nil {
			continue
		}
		code := "InsertFailed"
		var pgErr *pgconn.PgError
		if errors.As(e, &pgErr) {
			code = pgErr.Code
		}
		statuses[i] = model.RecordStatus{ErrorCode: code, ErrorMessage: e.Error()}
	}
	return model.BatchResult{FailedCount: countFailed(statuses), Records: statuses}, nil
}

func (p *PostgresSink) Ping(ctx context.Context) error {
	if p.pinger == nil {
		return nil
	}
	return p.pinger(ctx)
}

func (p *PostgresSink) Close() error {
	if p.shutdown != nil {
		p.shutdown()
	}
	return nil
}
