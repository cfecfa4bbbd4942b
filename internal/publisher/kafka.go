// Package publisher delivers the scored borrowers of each successful pipeline
// run to downstream collection systems through Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"loanrecovery/internal/config"
	apperrors "loanrecovery/internal/errors"
	"loanrecovery/internal/infrastructure"
	"loanrecovery/pkg/contracts/domain"
)

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AssessmentEvent is the value of every published message
type AssessmentEvent struct {
	RunID       string                `json:"run_id"`
	PublishedAt time.Time             `json:"published_at"`
	Assessment  domain.RiskAssessment `json:"assessment"`
}

// KafkaPublisher writes one message per scored borrower, keyed by Borrower_ID
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	batchSize    int
	writeTimeout time.Duration
	published    metric.Int64Counter
	logger       *slog.Logger
}

// NewKafkaPublisher creates a publisher for cfg. metrics may be nil.
func NewKafkaPublisher(cfg config.KafkaConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, cfg, metrics, logger)
}

func newKafkaPublisher(w messageWriter, cfg config.KafkaConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	p := &KafkaPublisher{
		writer:       w,
		topic:        cfg.Topic,
		batchSize:    batch,
		writeTimeout: cfg.WriteTimeout,
		logger:       infrastructure.WithComponent(logger, "kafka_publisher"),
	}
	if metrics != nil {
		p.published = metrics.AssessmentsPublished
	}
	return p
}

// PublishAssessments writes rows in batches. A failed batch aborts the rest;
// batches already written stay delivered.
func (p *KafkaPublisher) PublishAssessments(ctx context.Context, runID string, rows []domain.RiskAssessment) error {
	now := time.Now().UTC()
	sent := 0

	for start := 0; start < len(rows); start += p.batchSize {
		end := start + p.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		msgs := make([]kafka.Message, 0, end-start)
		for _, row := range rows[start:end] {
			value, err := json.Marshal(AssessmentEvent{RunID: runID, PublishedAt: now, Assessment: row})
			if err != nil {
				return apperrors.NewDeliveryError("encode assessment", err).
					WithContext("borrower_id", row.BorrowerID)
			}
			msgs = append(msgs, kafka.Message{
				Key:     []byte(row.BorrowerID),
				Value:   value,
				Headers: []kafka.Header{{Key: "run_id", Value: []byte(runID)}},
			})
		}

		if err := p.write(ctx, msgs); err != nil {
			p.record(ctx, sent)
			return apperrors.NewDeliveryError("publish assessments", err).
				WithContext("topic", p.topic).
				WithContext("run_id", runID).
				WithContext("delivered", sent)
		}
		sent += len(msgs)
	}

	p.record(ctx, sent)
	p.logger.InfoContext(ctx, "assessments published",
		slog.String("run_id", runID),
		slog.String("topic", p.topic),
		slog.Int("count", sent))
	return nil
}

func (p *KafkaPublisher) write(ctx context.Context, msgs []kafka.Message) error {
	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) record(ctx context.Context, n int) {
	if p.published == nil || n == 0 {
		return
	}
	p.published.Add(ctx, int64(n), metric.WithAttributes(attribute.String("topic", p.topic)))
}

// Close flushes pending writes and releases the connection
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
