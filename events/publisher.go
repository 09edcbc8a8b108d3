// Package events publishes checkout domain events to the configured transport.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	aws_pkg "checkout-service/pkg/aws"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventOrderPlaced   = "order.placed"
	EventOrderCanceled = "order.canceled"
)

// Publisher sends one event. key groups related events (the order id).
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
}

// SNSPublisher publishes to one SNS topic.
type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, eventType, _ string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return p.client.Publish(ctx, p.topicArn, b)
}

// SQSPublisher enqueues events on one queue.
type SQSPublisher struct {
	sender *aws_pkg.SQSSender
}

func NewSQSPublisher(sender *aws_pkg.SQSSender) *SQSPublisher {
	return &SQSPublisher{sender: sender}
}

func (p *SQSPublisher) Publish(ctx context.Context, eventType, _ string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return p.sender.Send(ctx, eventType, b)
}

// MessageWriter is the part of kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic keyed by order id.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 5 * time.Second,
	}
}

func NewKafkaPublisher(writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   b,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s to %s: %w", eventType, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when no transport is configured.
type NopPublisher struct {
	Logger *zap.Logger
}

func (p NopPublisher) Publish(_ context.Context, eventType, key string, _ interface{}) error {
	if p.Logger != nil {
		p.Logger.Debug("Event transport not configured, dropping event", zap.String("event_type", eventType), zap.String("key", key))
	}
	return nil
}
