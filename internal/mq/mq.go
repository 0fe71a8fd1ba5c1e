package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devnovate/api/config"
	"github.com/devnovate/api/types"
)

// Message attributes set on every article event.
const (
	AttrContentType = "content_type"
	AttrEventType   = "event_type"
	AttrArticleID   = "article_id"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend selected by cfg.Backend. It returns nil and no
// error when messaging is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

// ArticlePublisher publishes article lifecycle events as JSON on one channel.
type ArticlePublisher struct {
	mq      *MQ
	channel string
}

func NewArticlePublisher(m *MQ, channel string) *ArticlePublisher {
	return &ArticlePublisher{mq: m, channel: channel}
}

// PublishArticleEvent encodes and publishes event.
func (p *ArticlePublisher) PublishArticleEvent(ctx context.Context, event types.ArticleEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode article event: %w", err)
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		AttrContentType: "application/json",
		AttrEventType:   event.Type,
		AttrArticleID:   event.ArticleID,
	})
	return err
}

// DecodeArticleEvent parses a message produced by ArticlePublisher.
func DecodeArticleEvent(msg Message) (types.ArticleEvent, error) {
	var event types.ArticleEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.ArticleEvent{}, fmt.Errorf("decode article event %s: %w", msg.ID, err)
	}
	return event, nil
}
