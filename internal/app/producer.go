package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamloader/internal/config"
	"streamloader/internal/model"
	"streamloader/internal/service"

	"go.uber.org/zap"
)

// CycleReporter receives a report after every production cycle.
type CycleReporter func(model.CycleReport)

// ProducerOptions carries the collaborators a Producer is built from.
type ProducerOptions struct {
	Config    *config.Config
	Sink      service.RecordSink
	Logger    *zap.SugaredLogger
	Observer  service.SubmitObserver
	Reporters []CycleReporter

	// MaxCycles stops Run after that many cycles. Zero runs until ctx is done.
	MaxCycles int64
}

// Producer is the production loop: pace, pull quota records, submit, report.
type Producer struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	gen       *service.Generator
	submitter *service.Submitter
	reporters []CycleReporter
	quota     int
	maxCycles int64

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewProducer validates the run parameters. Every error it returns is a
// configuration error and means the producer must not start.
func NewProducer(opts ProducerOptions) (*Producer, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	logger.Infow("production parameters",
		"nodes", cfg.NodeCount,
		"burstsPerMinute", cfg.BurstsPerMinute, // informational, not part of the quota
		"observationTypes", cfg.ObservationTypes,
	)

	encoding, err := model.ParsePayloadEncoding(cfg.PayloadEncoding)
	if err != nil {
		return nil, err
	}

	gen, err := service.NewGenerator(service.GeneratorConfig{
		NodeCount:        cfg.NodeCount,
		ObservationTypes: cfg.ObservationTypes,
		PartitionKey:     cfg.PartitionKey,
		Encoding:         encoding,
	})
	if err != nil {
		return nil, err
	}

	quota, err := service.PlanQuota(cfg.NodeCount, cfg.ObservationTypes)
	if err != nil {
		return nil, err
	}
	logger.Infow("cycle quota computed", "quota", quota, "ceiling", service.MaxRecordsPerRequest)

	policy := service.RetryPolicy{
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		MaxAttempts:     cfg.RetryMaxAttempts,
		MaxElapsed:      cfg.RetryMaxElapsed,
	}

	return &Producer{
		cfg:       cfg,
		logger:    logger,
		gen:       gen,
		submitter: service.NewSubmitter(opts.Sink, cfg.StreamName, policy, logger, opts.Observer),
		reporters: opts.Reporters,
		quota:     quota,
		maxCycles: opts.MaxCycles,
		sleep:     sleepContext,
		now:       time.Now,
	}, nil
}

func (p *Producer) Quota() int { return p.quota }

// ValidateRun applies the startup checks without building anything, so a bad
// run is refused before any sink connection is made.
func ValidateRun(cfg *config.Config) error {
	if cfg.ObservationTypes > len(model.DefaultCatalog) {
		return fmt.Errorf("%d requested, catalog has %d: %w", cfg.ObservationTypes, len(model.DefaultCatalog), service.ErrTooManyObservationTypes)
	}
	_, err := service.PlanQuota(cfg.NodeCount, cfg.ObservationTypes)
	return err
}

// Run loops until ctx is cancelled or MaxCycles is reached. Only a generator
// failure ends it with an error; exhausted retries are logged and the loop goes on.
func (p *Producer) Run(ctx context.Context) error {
	var total int64
	p.logger.Infow("starting producer", "stream", p.submitter.StreamName(), "interval", p.cfg.CycleInterval)

	for cycle := int64(1); p.maxCycles == 0 || cycle <= p.maxCycles; cycle++ {
		// fixed spacing between PutRecords requests
		if err := p.sleep(ctx, p.cfg.CycleInterval); err != nil {
			p.logger.Info("producer context canceled, stopping loop")
			return nil
		}

		start := p.now()
		batch, err := p.gen.Next(p.quota)
		if err != nil {
			return fmt.Errorf("generate batch: %w", err)
		}

		res, err := p.submitter.SubmitUntilClean(ctx, batch)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Infow("producer stopped mid-cycle", "cycle", cycle, "outstanding", res.Outstanding)
			return nil
		}

		total += int64(res.Accepted)
		report := model.CycleReport{
			Cycle:           cycle,
			At:              start,
			Batch:           len(batch),
			Accepted:        res.Accepted,
			Total:           total,
			Attempts:        res.Attempts,
			Retries:         res.Retries,
			Outstanding:     res.Outstanding,
			TransportErrors: res.TransportErrors,
			Elapsed:         p.now().Sub(start),
		}

		if err != nil {
			report.Error = err.Error()
			p.logger.Errorw("batch abandoned", "cycle", cycle, "dropped", res.Outstanding, "error", err)
		} else {
			p.logger.Infow("batch inserted",
				"cycle", cycle,
				"batch", report.Batch,
				"total", report.Total,
				"retries", report.Retries,
				"elapsed", report.Elapsed,
			)
		}

		for _, r := range p.reporters {
			r(report)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
