package db

import (
	"context"
	"fmt"
	"strings"

	"streamloader/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// BatchSender is satisfied by *pgxpool.Pool and *pgx.Conn.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Execer is satisfied by *pgxpool.Pool and *pgx.Conn.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QuoteTable turns "schema.table" into a safely quoted identifier.
func QuoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// EnsureRecordTable creates the append-only record table (and its schema) if needed.
func EnsureRecordTable(ctx context.Context, conn Execer, table string) error {
	parts := strings.Split(table, ".")
	if len(parts) == 2 {
		if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{parts[0]}.Sanitize()); err != nil {
			return fmt.Errorf("ensure schema %s: %w", parts[0], err)
		}
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			stream TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`, QuoteTable(table))
	if _, err := conn.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}

// InsertRecords queues one insert per record in a single batch round trip.
// The returned slice has one entry per record, nil for rows that were written.
func InsertRecords(ctx context.Context, sender BatchSender, table, stream string, records []model.IngestionRecord) ([]error, error) {
	if len(records) == 0 {
		return nil, nil
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s (stream, partition_key, payload) VALUES ($1, $2, $3)`, QuoteTable(table))
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertSQL, stream, rec.PartitionKey, string(rec.Data))
	}

	br := sender.SendBatch(ctx, batch)
	errs := make([]error, len(records))
	for i := range records {
		_, errs[i] = br.Exec()
	}
	if err := br.Close(); err != nil {
		allFailed := true
		for _, e := range errs {
			if e == nil {
				allFailed = false
				break
			}
		}
		// a close error with every row failed means the round trip itself broke
		if allFailed {
			return errs, fmt.Errorf("send batch: %w", err)
		}
	}
	return errs, nil
}
