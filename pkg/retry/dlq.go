package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DLQMessage is the envelope a dead-lettered payload travels in.
// The original payload is carried verbatim so operators can inspect
// or replay it with external tooling.
type DLQMessage struct {
	// ID identifies the original message (outbox entry ID, message ID, etc.)
	ID string `json:"id"`
	// OriginalTopic is the topic the message was destined for
	OriginalTopic string `json:"original_topic"`
	// OriginalKey is the partition key of the original message
	OriginalKey string `json:"original_key,omitempty"`
	// Payload is the original message body, untouched
	Payload json.RawMessage `json:"payload"`
	// Error is the last delivery error
	Error string `json:"error"`
	// Attempts is how many deliveries were tried before giving up
	Attempts int `json:"attempts"`
	// MovedToDLQAt is when the message was dead-lettered
	MovedToDLQAt time.Time `json:"moved_to_dlq_at"`
	// Source names the service that gave up on the message
	Source string `json:"source"`
}

// DLQPublisher sends messages that exhausted their delivery budget to a
// dead letter topic
type DLQPublisher interface {
	// PublishToDLQ publishes a message to the dead letter queue
	PublishToDLQ(ctx context.Context, msg *DLQMessage) error
	// DLQTopic returns the dead letter topic for an original topic
	DLQTopic(originalTopic string) string
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	// TopicSuffix is appended to the original topic name (default: ".dlq")
	TopicSuffix string
	// Source identifies the publishing service in the envelope
	Source string
}

// DefaultDLQConfig returns default DLQ configuration
func DefaultDLQConfig() *DLQConfig {
	return &DLQConfig{
		TopicSuffix: ".dlq",
		Source:      "unknown",
	}
}

// JSONProducer is the broker surface dead-lettered messages go out
// through. *kafka.Producer satisfies it.
type JSONProducer interface {
	ProduceJSON(ctx context.Context, topic, key string, value interface{}, headers map[string]string) error
}

// KafkaDLQPublisher publishes dead-lettered messages to a topic derived
// from the original one (e.g. "booking.events" -> "booking.events.dlq")
type KafkaDLQPublisher struct {
	producer JSONProducer
	config   *DLQConfig
}

// NewKafkaDLQPublisher creates a Kafka-backed DLQ publisher
func NewKafkaDLQPublisher(producer JSONProducer, config *DLQConfig) *KafkaDLQPublisher {
	if config == nil {
		config = DefaultDLQConfig()
	}
	if config.TopicSuffix == "" {
		config.TopicSuffix = ".dlq"
	}
	if config.Source == "" {
		config.Source = "unknown"
	}

	return &KafkaDLQPublisher{
		producer: producer,
		config:   config,
	}
}

// PublishToDLQ sends the envelope to the dead letter topic. The send is
// not buffered; a failure is returned to the caller.
func (p *KafkaDLQPublisher) PublishToDLQ(ctx context.Context, msg *DLQMessage) error {
	if msg == nil {
		return fmt.Errorf("DLQ message is required")
	}
	if msg.OriginalTopic == "" {
		return fmt.Errorf("DLQ message original topic is required")
	}

	msg.MovedToDLQAt = time.Now()
	if msg.Source == "" {
		msg.Source = p.config.Source
	}

	headers := map[string]string{
		"content_type":   "application/json",
		"original_topic": msg.OriginalTopic,
		"error":          msg.Error,
		"attempts":       strconv.Itoa(msg.Attempts),
		"source":         msg.Source,
	}

	return p.producer.ProduceJSON(ctx, p.DLQTopic(msg.OriginalTopic), msg.OriginalKey, msg, headers)
}

// DLQTopic returns the dead letter topic for an original topic
func (p *KafkaDLQPublisher) DLQTopic(originalTopic string) string {
	return originalTopic + p.config.TopicSuffix
}

// NoOpDLQPublisher discards dead-lettered messages. Useful in tests and
// in deployments without a broker.
type NoOpDLQPublisher struct{}

// NewNoOpDLQPublisher creates a no-op DLQ publisher
func NewNoOpDLQPublisher() *NoOpDLQPublisher {
	return &NoOpDLQPublisher{}
}

// PublishToDLQ does nothing
func (p *NoOpDLQPublisher) PublishToDLQ(ctx context.Context, msg *DLQMessage) error {
	return nil
}

// DLQTopic returns the conventional dead letter topic name
func (p *NoOpDLQPublisher) DLQTopic(originalTopic string) string {
	return originalTopic + ".dlq"
}
