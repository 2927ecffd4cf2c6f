package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// EventWriter persists ingested events. Duplicate provider event IDs must
// be absorbed, not surfaced as errors.
type EventWriter interface {
	Insert(ctx context.Context, evt *event.AccessEvent) error
}

// MetricsRecorder counts landed events per ingest source.
type MetricsRecorder interface {
	RecordEventIngested(ctx context.Context, source string)
}

// ConsumerConfig configures the sign-in event consumer.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// RatePerSecond caps inserts to protect the database during
	// backlog catch-up. Zero disables the limiter.
	RatePerSecond int
}

// signInMessage is the wire shape of one sign-in event on the topic.
type signInMessage struct {
	EventID           string    `json:"event_id"`
	UserID            string    `json:"user_id"`
	UserPrincipalName string    `json:"user_principal_name"`
	Timestamp         time.Time `json:"timestamp"`
	IPAddress         string    `json:"ip_address"`
	Country           string    `json:"country"`
	City              string    `json:"city"`
	DeviceID          string    `json:"device_id"`
	DeviceName        string    `json:"device_name"`
	ClientApp         string    `json:"client_app"`
	AuthMethod        string    `json:"auth_method"`
	ConditionalAccess string    `json:"conditional_access"`
	Result            string    `json:"result"`
}

// Retry backoff bounds for persistence failures.
const (
	initialIngestBackoff = time.Second
	maxIngestBackoff     = 30 * time.Second
)

// Consumer pulls sign-in events off Kafka and lands them in the event
// store. Offsets are committed only after a successful insert, so a crash
// replays rather than drops events.
type Consumer struct {
	reader       *kafka.Reader
	writer       EventWriter
	pseudo       *Pseudonymizer
	limiter      *rate.Limiter
	metrics      MetricsRecorder
	logger       *slog.Logger
	retryBackoff time.Duration
}

// NewConsumer creates a consumer. pseudo and metrics may be nil.
func NewConsumer(cfg ConsumerConfig, writer EventWriter, pseudo *Pseudonymizer, metrics MetricsRecorder, logger *slog.Logger) *Consumer {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond)
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10 << 20,
			MaxWait:  time.Second,
		}),
		writer:       writer,
		pseudo:       pseudo,
		limiter:      limiter,
		metrics:      metrics,
		logger:       logger,
		retryBackoff: initialIngestBackoff,
	}
}

// Run consumes until the context is cancelled. Malformed messages are
// logged and committed so they do not wedge the partition.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "ingest consumer started",
		"topic", c.reader.Config().Topic,
		"group", c.reader.Config().GroupID)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.ErrorContext(ctx, "failed to fetch message", "error", err)
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := c.process(ctx, msg); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "failed to commit offset",
				"offset", msg.Offset,
				"error", err)
		}
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// process retries persistence until the message lands or the context is
// cancelled. Group commits are high-water marks: committing any later
// message would advance the offset past this one and drop it, so a
// persistence failure blocks the partition instead of skipping ahead.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	backoff := c.retryBackoff
	if backoff <= 0 {
		backoff = initialIngestBackoff
	}

	for {
		err := c.handle(ctx, msg.Value)
		if err == nil {
			return nil
		}

		c.logger.ErrorContext(ctx, "failed to ingest message, retrying",
			"offset", msg.Offset,
			"partition", msg.Partition,
			"backoff", backoff.String(),
			"error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < maxIngestBackoff {
			backoff *= 2
		}
	}
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var msg signInMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// Not retryable: log, commit, move on.
		c.logger.WarnContext(ctx, "dropping malformed sign-in message", "error", err)
		return nil
	}

	evt, err := event.NewAccessEvent(msg.EventID, msg.UserID, msg.Timestamp, msg.IPAddress)
	if err != nil {
		c.logger.WarnContext(ctx, "dropping invalid sign-in message",
			"provider_event_id", msg.EventID,
			"error", err)
		return nil
	}

	upn := msg.UserPrincipalName
	if c.pseudo != nil {
		upn, err = c.pseudo.Pseudonymize(ctx, upn)
		if err != nil {
			return fmt.Errorf("pseudonymizing principal: %w", err)
		}
	}

	evt.UserPrincipalName = upn
	evt.Country = msg.Country
	evt.City = msg.City
	evt.DeviceID = msg.DeviceID
	evt.DeviceName = msg.DeviceName
	evt.ClientApp = msg.ClientApp
	evt.AuthMethod = msg.AuthMethod
	evt.ConditionalAccess = msg.ConditionalAccess
	evt.Outcome = event.ParseOutcome(msg.Result)

	if err := c.writer.Insert(ctx, evt); err != nil {
		return fmt.Errorf("inserting event %s: %w", evt.ProviderEventID, err)
	}
	if c.metrics != nil {
		c.metrics.RecordEventIngested(ctx, "kafka")
	}
	return nil
}
