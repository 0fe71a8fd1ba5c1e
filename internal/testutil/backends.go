package testutil

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/devnovate/api/internal/mq"
	"github.com/devnovate/api/internal/storage"
	"github.com/devnovate/api/types"
)

// Broker is an in-memory mq.Backend. Published messages are kept per
// channel and replayed to subscribers.
type Broker struct {
	mu       sync.Mutex
	seq      int
	messages map[string][]mq.Message
	// Err, when set, fails every Publish.
	Err error
}

func NewBroker() *Broker {
	return &Broker{messages: make(map[string][]mq.Message)}
}

func (b *Broker) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return "", b.Err
	}
	b.seq++
	id := strconv.Itoa(b.seq)
	b.messages[channel] = append(b.messages[channel], mq.Message{
		ID:         id,
		Data:       append([]byte(nil), data...),
		Attributes: attrs,
	})
	return id, nil
}

// Subscribe delivers every message published so far and returns.
func (b *Broker) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	b.mu.Lock()
	pending := append([]mq.Message(nil), b.messages[channel]...)
	b.mu.Unlock()
	for _, msg := range pending {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) Close() error { return nil }

// Events decodes the article events published on channel.
func (b *Broker) Events(channel string) []types.ArticleEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]types.ArticleEvent, 0, len(b.messages[channel]))
	for _, msg := range b.messages[channel] {
		event, err := mq.DecodeArticleEvent(msg)
		if err == nil {
			events = append(events, event)
		}
	}
	return events
}

// ObjectStore is an in-memory storage.ObjectStorage.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *ObjectStore) EnsureBucket(context.Context) error { return nil }

func (s *ObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *ObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *ObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

func (s *ObjectStore) Bucket() string { return "memory" }

// Keys lists stored object keys.
func (s *ObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	return keys
}

// ContentType returns the content type recorded for key.
func (s *ObjectStore) ContentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[key]
}
