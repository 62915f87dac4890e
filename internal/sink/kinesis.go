package sink

import (
	"context"
	"fmt"

	"streamloader/internal/config"
	"streamloader/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"go.uber.org/zap"
)

// KinesisAPI is the subset of *kinesis.Client the sink uses.
type KinesisAPI interface {
	PutRecords(ctx context.Context, in *kinesis.PutRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error)
	DescribeStreamSummary(ctx context.Context, in *kinesis.DescribeStreamSummaryInput, optFns ...func(*kinesis.Options)) (*kinesis.DescribeStreamSummaryOutput, error)
}

type KinesisSink struct {
	client     KinesisAPI
	streamName string
	logger     *zap.SugaredLogger
}

// NewKinesisSink loads AWS configuration. Static keys from the environment
// win when both are present, otherwise the SDK default chain applies.
func NewKinesisSink(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*KinesisSink, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := kinesis.NewFromConfig(awsCfg, func(o *kinesis.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	logger.Infow("kinesis sink ready", "region", cfg.AWSRegion, "stream", cfg.StreamName)
	return NewKinesisSinkWithClient(client, cfg.StreamName, logger), nil
}

func NewKinesisSinkWithClient(client KinesisAPI, streamName string, logger *zap.SugaredLogger) *KinesisSink {
	return &KinesisSink{client: client, streamName: streamName, logger: logger}
}

func (k *KinesisSink) Name() string { return config.BackendKinesis }

func (k *KinesisSink) PutRecords(ctx context.Context, streamName string, records []model.IngestionRecord) (model.BatchResult, error) {
	entries := make([]types.PutRecordsRequestEntry, len(records))
	for i, rec := range records {
		entries[i] = types.PutRecordsRequestEntry{
			Data:         rec.Data,
			PartitionKey: aws.String(rec.PartitionKey),
		}
	}

	out, err := k.client.PutRecords(ctx, &kinesis.PutRecordsInput{
		StreamName: aws.String(streamName),
		Records:    entries,
	})
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("kinesis put records: %w", err)
	}

	// Failed entries carry only an error code, never the original data.
	statuses := make([]model.RecordStatus, len(out.Records))
	for i, r := range out.Records {
		statuses[i] = model.RecordStatus{
			ErrorCode:    aws.ToString(r.ErrorCode),
			ErrorMessage: aws.ToString(r.ErrorMessage),
		}
	}

	failed := int(aws.ToInt32(out.FailedRecordCount))
	if counted := countFailed(statuses); counted != failed {
		k.logger.Warnw("kinesis failed count disagrees with record statuses",
			"reported", failed, "counted", counted)
		failed = counted
	}
	return model.BatchResult{FailedCount: failed, Records: statuses}, nil
}

// Ping checks that the configured stream exists and is reachable.
func (k *KinesisSink) Ping(ctx context.Context) error {
	out, err := k.client.DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(k.streamName),
	})
	if err != nil {
		return fmt.Errorf("describe stream %s: %w", k.streamName, err)
	}
	if out.StreamDescriptionSummary != nil {
		status := out.StreamDescriptionSummary.StreamStatus
		if status != types.StreamStatusActive && status != types.StreamStatusUpdating {
			return fmt.Errorf("stream %s is %s", k.streamName, status)
		}
	}
	return nil
}

func (k *KinesisSink) Close() error { return nil }
