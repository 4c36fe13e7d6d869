package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/config"
	"github.com/temcen/remedy/internal/ml"
)

// ModelFittedEvent announces that a new model version is being served.
type ModelFittedEvent struct {
	EventID      uuid.UUID     `json:"event_id"`
	ModelVersion uuid.UUID     `json:"model_version"`
	Algorithm    string        `json:"algorithm"`
	Source       string        `json:"source"`
	FittedAt     time.Time     `json:"fitted_at"`
	FitDuration  time.Duration `json:"fit_duration"`
	Summary      ml.FitSummary `json:"summary"`
}

// RefitRequest asks the service to refit from the interaction store.
type RefitRequest struct {
	RequestID   uuid.UUID `json:"request_id"`
	Components  int       `json:"components,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	RetryCount  int       `json:"retry_count"`
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageReader is satisfied by *kafka.Reader.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type MessageBus struct {
	eventWriter messageWriter
	refitReader messageReader
	dlqWriter   messageWriter
	refitTopic  string
	maxRetries  int
	baseDelay   time.Duration
	logger      *logrus.Logger
}

func NewMessageBus(cfg *config.KafkaConfig, logger *logrus.Logger) *MessageBus {
	eventWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topics.ModelEvents,
		Balancer:     &kafka.Hash{}, // Key by model version
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}

	refitReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topics.RefitRequests,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topics.RefitDeadLetter,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return newMessageBus(eventWriter, refitReader, dlqWriter, cfg.Topics.RefitRequests, cfg.MaxRetries, cfg.RetryBaseDelay, logger)
}

func newMessageBus(
	eventWriter messageWriter,
	refitReader messageReader,
	dlqWriter messageWriter,
	refitTopic string,
	maxRetries int,
	baseDelay time.Duration,
	logger *logrus.Logger,
) *MessageBus {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &MessageBus{
		eventWriter: eventWriter,
		refitReader: refitReader,
		dlqWriter:   dlqWriter,
		refitTopic:  refitTopic,
		maxRetries:  maxRetries,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

func (mb *MessageBus) PublishModelFitted(ctx context.Context, event ModelFittedEvent) error {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal model event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.ModelVersion.String()),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "event_type", Value: []byte("model_fitted")},
			{Key: "timestamp", Value: []byte(event.FittedAt.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mb.eventWriter.WriteMessages(ctx, message); err != nil {
		mb.logger.WithError(err).WithField("model_version", event.ModelVersion).Error("Failed to publish model event to Kafka")
		return fmt.Errorf("failed to write model event to Kafka: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"event_id":      event.EventID,
		"model_version": event.ModelVersion,
		"source":        event.Source,
	}).Info("Model event published to Kafka")

	return nil
}

// ConsumeRefitRequests blocks, passing each refit request to handler until ctx is done.
func (mb *MessageBus) ConsumeRefitRequests(ctx context.Context, handler func(context.Context, RefitRequest) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		message, err := mb.refitReader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mb.logger.WithError(err).Error("Failed to read refit request from Kafka")
			continue
		}

		var request RefitRequest
		if err := json.Unmarshal(message.Value, &request); err != nil {
			mb.logger.WithError(err).Error("Failed to unmarshal refit request")
			continue
		}

		if err := mb.processWithRetry(ctx, request, handler); err != nil {
			mb.logger.WithError(err).WithField("request_id", request.RequestID).Error("Failed to process refit request after retries")

			if dlqErr := mb.sendToDLQ(ctx, request, err); dlqErr != nil {
				mb.logger.WithError(dlqErr).Error("Failed to send refit request to DLQ")
			}
		}
	}
}

func (mb *MessageBus) processWithRetry(ctx context.Context, request RefitRequest, handler func(context.Context, RefitRequest) error) error {
	for attempt := 0; attempt <= mb.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := mb.baseDelay * time.Duration(1<<uint(attempt-1))
			mb.logger.WithFields(logrus.Fields{
				"request_id": request.RequestID,
				"attempt":    attempt,
				"delay":      delay,
			}).Info("Retrying refit request")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		request.RetryCount = attempt
		if err := handler(ctx, request); err != nil {
			mb.logger.WithError(err).WithFields(logrus.Fields{
				"request_id": request.RequestID,
				"attempt":    attempt,
			}).Warn("Refit request failed")

			if attempt == mb.maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			continue
		}

		mb.logger.WithFields(logrus.Fields{
			"request_id": request.RequestID,
			"attempt":    attempt,
		}).Info("Refit request processed successfully")
		return nil
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (mb *MessageBus) sendToDLQ(ctx context.Context, request RefitRequest, originalError error) error {
	dlqMessage := map[string]interface{}{
		"original_message": request,
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(request.RequestID.String()),
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "request_id", Value: []byte(request.RequestID.String())},
			{Key: "original_topic", Value: []byte(mb.refitTopic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := mb.dlqWriter.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"request_id": request.RequestID,
		"error":      originalError.Error(),
	}).Warn("Refit request sent to DLQ")

	return nil
}

func (mb *MessageBus) Close() error {
	var errors []error

	if err := mb.eventWriter.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close event writer: %w", err))
	}

	if err := mb.refitReader.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close refit reader: %w", err))
	}

	if err := mb.dlqWriter.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing message bus: %v", errors)
	}

	return nil
}
