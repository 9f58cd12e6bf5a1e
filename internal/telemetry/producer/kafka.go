// Package producer publishes activity entries to Kafka for downstream consumers.
package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"loandesk/backend/internal/audit/domain"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// activityMessage is the JSON value written for each entry.
type activityMessage struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// KafkaProducer writes activity entries to a Kafka topic using segmentio/kafka-go.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer creates a producer for topic. Returns nil when brokers or topic are empty,
// which callers treat as "Kafka disabled". Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Publish serializes entry as JSON keyed by user id so one user's entries stay ordered.
func (p *KafkaProducer) Publish(ctx context.Context, entry *domain.ActivityLog) error {
	if p == nil || p.writer == nil || entry == nil {
		return nil
	}
	payload, err := json.Marshal(activityMessage{
		ID:        entry.ID,
		UserID:    entry.UserID,
		UserName:  entry.UserName,
		Action:    entry.Action,
		Details:   entry.Details,
		Status:    string(entry.Status),
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return err
	}
	var key []byte
	if entry.UserID != nil {
		key = []byte(strconv.FormatInt(*entry.UserID, 10))
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{Key: key, Value: payload})
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
