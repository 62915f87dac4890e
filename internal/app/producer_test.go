package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamloader/internal/config"
	"streamloader/internal/model"
	"streamloader/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSink struct {
	calls   int
	sizes   []int
	streams []string
	// failFirst rejects the first record of the first call
	failFirst bool
}

func (s *stubSink) PutRecords(_ context.Context, stream string, records []model.IngestionRecord) (model.BatchResult, error) {
	s.calls++
	s.sizes = append(s.sizes, len(records))
	s.streams = append(s.streams, stream)
	res := model.BatchResult{Records: make([]model.RecordStatus, len(records))}
	if s.failFirst && s.calls == 1 {
		res.Records[0] = model.RecordStatus{ErrorCode: "ProvisionedThroughputExceededException"}
		res.FailedCount = 1
	}
	return res, nil
}

func testConfig(nodes, bursts, types int) *config.Config {
	return &config.Config{
		NodeCount:            nodes,
		BurstsPerMinute:      bursts,
		ObservationTypes:     types,
		StreamName:           "workflow_data_stream",
		PartitionKey:         model.DefaultPartitionKey,
		PayloadEncoding:      "double",
		CycleInterval:        100 * time.Millisecond,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     10 * time.Millisecond,
	}
}

func newTestProducer(t *testing.T, cfg *config.Config, snk service.RecordSink, maxCycles int64, reports *[]model.CycleReport) *Producer {
	t.Helper()
	p, err := NewProducer(ProducerOptions{
		Config:    cfg,
		Sink:      snk,
		Logger:    zaptest.NewLogger(t).Sugar(),
		MaxCycles: maxCycles,
		Reporters: []CycleReporter{func(r model.CycleReport) { *reports = append(*reports, r) }},
	})
	require.NoError(t, err)
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestProducerSingleCycle(t *testing.T) {
	snk := &stubSink{}
	var reports []model.CycleReport
	p := newTestProducer(t, testConfig(300, 60, 2), snk, 1, &reports)
	assert.Equal(t, 10, p.Quota())

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 1, snk.calls)
	require.Len(t, reports, 1)
	assert.Equal(t, 10, reports[0].Batch)
	assert.EqualValues(t, 10, reports[0].Total)
	assert.Zero(t, reports[0].Retries)
	assert.Empty(t, reports[0].Error)
}

func TestProducerZeroQuotaNeverCallsSink(t *testing.T) {
	snk := &stubSink{}
	var reports []model.CycleReport
	p := newTestProducer(t, testConfig(5, 60, 2), snk, 3, &reports)
	assert.Zero(t, p.Quota())

	require.NoError(t, p.Run(context.Background()))
	assert.Zero(t, snk.calls)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.Zero(t, r.Batch)
	}
}

func TestProducerRetriesOnSameStream(t *testing.T) {
	snk := &stubSink{failFirst: true}
	var reports []model.CycleReport
	p := newTestProducer(t, testConfig(300, 60, 2), snk, 2, &reports)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []int{10, 1, 10}, snk.sizes)
	for _, s := range snk.streams {
		assert.Equal(t, "workflow_data_stream", s)
	}
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Retries)
	assert.EqualValues(t, 10, reports[0].Total)
	assert.EqualValues(t, 20, reports[1].Total)
}

func TestProducerStopsOnCancel(t *testing.T) {
	snk := &stubSink{}
	var reports []model.CycleReport
	p := newTestProducer(t, testConfig(300, 60, 2), snk, 0, &reports)

	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(ctx context.Context, d time.Duration) error {
		if len(reports) == 2 {
			cancel()
		}
		return ctx.Err()
	}

	require.NoError(t, p.Run(ctx))
	assert.Len(t, reports, 2)
}

func TestProducerAbandonedBatchContinues(t *testing.T) {
	snk := &stubSink{failFirst: true}
	cfg := testConfig(300, 60, 2)
	cfg.RetryMaxAttempts = 1
	var reports []model.CycleReport
	p := newTestProducer(t, cfg, snk, 2, &reports)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Outstanding)
	assert.NotEmpty(t, reports[0].Error)
	assert.EqualValues(t, 9, reports[0].Total)
	assert.Empty(t, reports[1].Error)
}

func TestNewProducerRejectsBadConfig(t *testing.T) {
	_, err := NewProducer(ProducerOptions{Config: testConfig(3750, 60, 8), Sink: &stubSink{}})
	assert.ErrorIs(t, err, service.ErrQuotaExceedsCapacity)

	_, err = NewProducer(ProducerOptions{Config: testConfig(100, 60, 9), Sink: &stubSink{}})
	assert.ErrorIs(t, err, service.ErrTooManyObservationTypes)

	cfg := testConfig(100, 60, 2)
	cfg.PayloadEncoding = "base64"
	_, err = NewProducer(ProducerOptions{Config: cfg, Sink: &stubSink{}})
	assert.Error(t, err)
}

func TestValidateRun(t *testing.T) {
	assert.NoError(t, ValidateRun(testConfig(300, 60, 2)))
	assert.ErrorIs(t, ValidateRun(testConfig(3750, 60, 8)), service.ErrQuotaExceedsCapacity)
	assert.ErrorIs(t, ValidateRun(testConfig(10, 60, 9)), service.ErrTooManyObservationTypes)
}

func TestProductionStats(t *testing.T) {
	stats := NewProductionStats()
	stats.Observe(model.CycleReport{Accepted: 10, Retries: 1})
	stats.Observe(model.CycleReport{Accepted: 9, Outstanding: 1, Error: "gave up"})

	cycles, records, retries, dropped := stats.Snapshot()
	assert.EqualValues(t, 2, cycles)
	assert.EqualValues(t, 19, records)
	assert.EqualValues(t, 1, retries)
	assert.EqualValues(t, 1, dropped)
}

func TestWaitForProducer(t *testing.T) {
	done := make(chan error, 1)
	done <- nil
	assert.NoError(t, waitForProducer(done, time.Second))

	runErr := errors.New("generate batch: boom")
	done <- runErr
	assert.ErrorIs(t, waitForProducer(done, time.Second), runErr)

	stuck := make(chan error)
	assert.ErrorIs(t, waitForProducer(stuck, 10*time.Millisecond), ErrShutdownTimeout)
}
