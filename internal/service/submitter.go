package service

import (
	"context"
	"fmt"
	"time"

	"streamloader/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second

	transportErrorCode  = "TransportError"
	malformedResultCode = "MalformedResult"
)

// RecordSink is the capability the submitter needs from a sink client.
type RecordSink interface {
	PutRecords(ctx context.Context, streamName string, records []model.IngestionRecord) (model.BatchResult, error)
}

// SubmitObserver receives retry and failure signals. Implementations must be cheap.
type SubmitObserver interface {
	RecordsRejected(n int, code string)
	TransportFailed()
	RetryRound(outstanding int)
}

// RetryPolicy bounds the retry loop. Zero MaxAttempts and MaxElapsed mean
// retry until every record is accepted or the context is cancelled.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy starts at 500ms, doubles, caps at 10s and never gives up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{InitialInterval: DefaultInitialInterval, MaxInterval: DefaultMaxInterval}
}

// NextInterval doubles cur without exceeding max.
func NextInterval(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// SubmitResult summarizes one SubmitUntilClean call.
type SubmitResult struct {
	Attempts        int
	Retries         int
	Accepted        int
	Outstanding     int
	TransportErrors int
	Waited          []time.Duration
}

// Submitter sends a batch and keeps resending whatever the sink rejects.
type Submitter struct {
	sink       RecordSink
	streamName string
	policy     RetryPolicy
	logger     *zap.SugaredLogger
	observer   SubmitObserver

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewSubmitter(sink RecordSink, streamName string, policy RetryPolicy, logger *zap.SugaredLogger, observer SubmitObserver) *Submitter {
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = DefaultInitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = DefaultMaxInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Submitter{
		sink:       sink,
		streamName: streamName,
		policy:     policy,
		logger:     logger,
		observer:   observer,
		sleep:      sleepContext,
		now:        time.Now,
	}
}

// StreamName is the single stream every send and resend goes to.
func (s *Submitter) StreamName() string { return s.streamName }

// SubmitUntilClean blocks until the sink has accepted every record of batch,
// the retry policy gives up (ErrRetriesExhausted) or ctx is done.
// Failed records are found by position in the sink's answer.
func (s *Submitter) SubmitUntilClean(ctx context.Context, batch []model.IngestionRecord) (SubmitResult, error) {
	var res SubmitResult
	if len(batch) == 0 {
		return res, nil
	}

	start := s.now()
	outstanding := batch
	interval := s.policy.InitialInterval

	for {
		res.Attempts++
		result, transport := s.put(ctx, outstanding, &res)
		if err := ctx.Err(); err != nil {
			res.Outstanding = len(outstanding)
			return res, err
		}

		failed := result.FailedRecords(outstanding)
		res.Accepted += len(outstanding) - len(failed)
		res.Outstanding = len(failed)
		if len(failed) == 0 {
			return res, nil
		}
		if s.observer != nil && !transport {
			s.observer.RecordsRejected(len(failed), result.FirstErrorCode())
		}

		if s.policy.MaxAttempts > 0 && res.Attempts >= s.policy.MaxAttempts {
			return res, fmt.Errorf("%d of %d records after %d attempts: %w", len(failed), len(batch), res.Attempts, ErrRetriesExhausted)
		}
		if s.policy.MaxElapsed > 0 && s.now().Sub(start)+interval > s.policy.MaxElapsed {
			return res, fmt.Errorf("%d of %d records after %s: %w", len(failed), len(batch), s.now().Sub(start), ErrRetriesExhausted)
		}

		s.logger.Warnw("backing off and retrying failed records",
			"stream", s.streamName,
			"failed", len(failed),
			"errorCode", result.FirstErrorCode(),
			"interval", interval,
		)
		if err := s.sleep(ctx, interval); err != nil {
			return res, err
		}
		res.Waited = append(res.Waited, interval)
		res.Retries++
		if s.observer != nil {
			s.observer.RetryRound(len(failed))
		}

		interval = NextInterval(interval, s.policy.MaxInterval)
		outstanding = failed
	}
}

// put calls the sink and folds transport errors and malformed answers into
// an all-failed result so the retry loop handles them uniformly. transport is
// true when the call itself failed; those rounds are reported through
// TransportFailed only, never as rejections.
func (s *Submitter) put(ctx context.Context, records []model.IngestionRecord, res *SubmitResult) (model.BatchResult, bool) {
	result, err := s.sink.PutRecords(ctx, s.streamName, records)
	if err != nil {
		if ctx.Err() == nil {
			res.TransportErrors++
			s.logger.Errorw("sink call failed, treating all records as failed",
				"stream", s.streamName, "records", len(records), "kind", "transport", "error", err)
			if s.observer != nil {
				s.observer.TransportFailed()
			}
		}
		return model.AllFailed(len(records), transportErrorCode, err.Error()), true
	}
	if len(result.Records) != len(records) {
		s.logger.Errorw("sink result does not match batch length",
			"stream", s.streamName, "records", len(records), "statuses", len(result.Records))
		return model.AllFailed(len(records), malformedResultCode, "status count mismatch"), false
	}
	return result, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
