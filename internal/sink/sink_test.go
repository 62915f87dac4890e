package sink

import (
	"context"
	"errors"
	"testing"

	"streamloader/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRecords(payloads ...string) []model.IngestionRecord {
	out := make([]model.IngestionRecord, len(payloads))
	for i, p := range payloads {
		out[i] = model.IngestionRecord{Data: []byte(p), PartitionKey: model.DefaultPartitionKey}
	}
	return out
}

// --- kinesis ---

type fakeKinesis struct {
	in      *kinesis.PutRecordsInput
	out     *kinesis.PutRecordsOutput
	err     error
	summary *kinesis.DescribeStreamSummaryOutput
}

func (f *fakeKinesis) PutRecords(_ context.Context, in *kinesis.PutRecordsInput, _ ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error) {
	f.in = in
	return f.out, f.err
}

func (f *fakeKinesis) DescribeStreamSummary(_ context.Context, _ *kinesis.DescribeStreamSummaryInput, _ ...func(*kinesis.Options)) (*kinesis.DescribeStreamSummaryOutput, error) {
	if f.summary == nil {
		return nil, errors.New("ResourceNotFoundException")
	}
	return f.summary, nil
}

func TestKinesisPutRecordsMapsStatuses(t *testing.T) {
	fake := &fakeKinesis{out: &kinesis.PutRecordsOutput{
		FailedRecordCount: aws.Int32(1),
		Records: []types.PutRecordsResultEntry{
			{SequenceNumber: aws.String("1"), ShardId: aws.String("shardId-0")},
			{ErrorCode: aws.String("ProvisionedThroughputExceededException"), ErrorMessage: aws.String("rate exceeded")},
			{SequenceNumber: aws.String("3"), ShardId: aws.String("shardId-0")},
		},
	}}
	s := NewKinesisSinkWithClient(fake, "workflow_data_stream", zaptest.NewLogger(t).Sugar())

	res, err := s.PutRecords(context.Background(), "workflow_data_stream", testRecords("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, "workflow_data_stream", aws.ToString(fake.in.StreamName))
	require.Len(t, fake.in.Records, 3)
	assert.Equal(t, []byte("b"), fake.in.Records[1].Data)
	assert.Equal(t, model.DefaultPartitionKey, aws.ToString(fake.in.Records[1].PartitionKey))

	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Records, 3)
	assert.False(t, res.Records[0].Failed())
	assert.Equal(t, "ProvisionedThroughputExceededException", res.Records[1].ErrorCode)
	assert.False(t, res.Records[2].Failed())
}

func TestKinesisTransportError(t *testing.T) {
	fake := &fakeKinesis{err: errors.New("dial tcp: i/o timeout")}
	s := NewKinesisSinkWithClient(fake, "s", zaptest.NewLogger(t).Sugar())

	_, err := s.PutRecords(context.Background(), "s", testRecords("a"))
	assert.ErrorContains(t, err, "i/o timeout")
}

func TestKinesisPing(t *testing.T) {
	fake := &fakeKinesis{}
	s := NewKinesisSinkWithClient(fake, "s", zaptest.NewLogger(t).Sugar())
	assert.Error(t, s.Ping(context.Background()))

	fake.summary = &kinesis.DescribeStreamSummaryOutput{
		StreamDescriptionSummary: &types.StreamDescriptionSummary{StreamStatus: types.StreamStatusActive},
	}
	assert.NoError(t, s.Ping(context.Background()))

	fake.summary.StreamDescriptionSummary.StreamStatus = types.StreamStatusDeleting
	assert.Error(t, s.Ping(context.Background()))
}

// --- kafka ---

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = msgs
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPutRecordsPartialFailure(t *testing.T) {
	w := &fakeWriter{err: kafka.WriteErrors{nil, kafka.NotEnoughReplicas, nil, errors.New("broken pipe")}}
	s := NewKafkaSinkWithWriter(w, "observations", zaptest.NewLogger(t).Sugar())

	res, err := s.PutRecords(context.Background(), "observations", testRecords("a", "b", "c", "d"))
	require.NoError(t, err)

	require.Len(t, w.msgs, 4)
	for _, m := range w.msgs {
		assert.Equal(t, "observations", m.Topic)
		assert.Equal(t, []byte(model.DefaultPartitionKey), m.Key)
	}

	assert.Equal(t, 2, res.FailedCount)
	assert.False(t, res.Records[0].Failed())
	assert.Equal(t, kafka.NotEnoughReplicas.Title(), res.Records[1].ErrorCode)
	assert.Equal(t, "WriteError", res.Records[3].ErrorCode)
}

func TestKafkaPutRecordsTransportError(t *testing.T) {
	w := &fakeWriter{err: errors.New("dial tcp: connection refused")}
	s := NewKafkaSinkWithWriter(w, "observations", zaptest.NewLogger(t).Sugar())

	_, err := s.PutRecords(context.Background(), "observations", testRecords("a", "b"))
	assert.ErrorContains(t, err, "connection refused")
}

func TestKafkaPutRecordsAllAccepted(t *testing.T) {
	s := NewKafkaSinkWithWriter(&fakeWriter{}, "observations", zaptest.NewLogger(t).Sugar())

	res, err := s.PutRecords(context.Background(), "observations", testRecords("a", "b"))
	require.NoError(t, err)
	assert.Zero(t, res.FailedCount)
	assert.Len(t, res.Records, 2)
}

// --- postgres ---

type fakeBatchResults struct {
	errs     []error
	i        int
	closeErr error
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	err := f.errs[f.i]
	f.i++
	return pgconn.NewCommandTag("INSERT 0 1"), err
}

func (f *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (f *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (f *fakeBatchResults) Close() error             { return f.closeErr }

type fakeSender struct {
	queued  int
	results *fakeBatchResults
}

func (f *fakeSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.queued = b.Len()
	return f.results
}

func TestPostgresPutRecordsPerRowStatus(t *testing.T) {
	sender := &fakeSender{results: &fakeBatchResults{errs: []error{
		nil,
		&pgconn.PgError{Code: "23505", Message: "duplicate key"},
		nil,
	}}}
	s := NewPostgresSinkWithSender(sender, "ingest.observations", zaptest.NewLogger(t).Sugar())

	res, err := s.PutRecords(context.Background(), "workflow_data_stream", testRecords("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, sender.queued)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, "23505", res.Records[1].ErrorCode)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestPostgresPutRecordsRoundTripFailure(t *testing.T) {
	broken := errors.New("conn closed")
	sender := &fakeSender{results: &fakeBatchResults{errs: []error{broken, broken}, closeErr: broken}}
	s := NewPostgresSinkWithSender(sender, "observations", zaptest.NewLogger(t).Sugar())

	_, err := s.PutRecords(context.Background(), "s", testRecords("a", "b"))
	assert.ErrorIs(t, err, broken)
}

func TestCountFailed(t *testing.T) {
	assert.Equal(t, 2, countFailed([]model.RecordStatus{{ErrorCode: "x"}, {}, {ErrorCode: "y"}}))
}
