package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"streamloader/internal/config"
	"streamloader/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaSink struct {
	writer  MessageWriter
	brokers []string
	dialer  *kafka.Dialer
	stream  string
	logger  *zap.SugaredLogger
}

func NewKafkaSink(cfg *config.Config, logger *zap.SugaredLogger) (*KafkaSink, error) {
	tlsCfg, err := cfg.CreateKafkaTLSConfig()
	if err != nil {
		return nil, err
	}

	// Topic is left empty on the writer: every message names its own topic.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    500,
		BatchTimeout: 10 * time.Millisecond,
		Transport:    &kafka.Transport{TLS: tlsCfg},
	}

	logger.Infow("kafka sink ready", "brokers", cfg.KafkaBrokers, "topic", cfg.StreamName)
	return &KafkaSink{
		writer:  writer,
		brokers: cfg.KafkaBrokers,
		dialer:  newDialer(tlsCfg),
		stream:  cfg.StreamName,
		logger:  logger,
	}, nil
}

func NewKafkaSinkWithWriter(w MessageWriter, stream string, logger *zap.SugaredLogger) *KafkaSink {
	return &KafkaSink{writer: w, stream: stream, logger: logger}
}

func newDialer(tlsCfg *tls.Config) *kafka.Dialer {
	return &kafka.Dialer{Timeout: 5 * time.Second, DualStack: true, TLS: tlsCfg}
}

func (k *KafkaSink) Name() string { return config.BackendKafka }

// PutRecords writes every record as one message keyed by its partition key.
// A partial failure comes back from kafka-go as WriteErrors, indexed like msgs.
func (k *KafkaSink) PutRecords(ctx context.Context, streamName string, records []model.IngestionRecord) (model.BatchResult, error) {
	msgs := make([]kafka.Message, len(records))
	for i, rec := range records {
		msgs[i] = kafka.Message{
			Topic: streamName,
			Key:   []byte(rec.PartitionKey),
			Value: rec.Data,
		}
	}

	statuses := make([]model.RecordStatus, len(records))
	err := k.writer.WriteMessages(ctx, msgs...)
	if err != nil {
		var writeErrs kafka.WriteErrors
		if !errors.As(err, &writeErrs) || len(writeErrs) != len(records) {
			return model.BatchResult{}, fmt.Errorf("kafka write: %w", err)
		}
		for i, e := range writeErrs {
			if e != nil {
				statuses[i] = model.RecordStatus{ErrorCode: kafkaErrorCode(e), ErrorMessage: e.Error()}
			}
		}
	}
	return model.BatchResult{FailedCount: countFailed(statuses), Records: statuses}, nil
}

func kafkaErrorCode(err error) string {
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Title()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	return "WriteError"
}

// Ping dials the first reachable broker and reads the topic's partitions.
func (k *KafkaSink) Ping(ctx context.Context) error {
	if len(k.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var lastErr error
	for _, b := range k.brokers {
		conn, err := k.dialer.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		parts, err := conn.ReadPartitions(k.stream)
		conn.Close()
		if err != nil {
			return fmt.Errorf("read partitions for %s: %w", k.stream, err)
		}
		if len(parts) == 0 {
			return fmt.Errorf("topic %s has no partitions", k.stream)
		}
		return nil
	}
	return fmt.Errorf("no broker reachable: %w", lastErr)
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
