package events

import (
	"context"
	"encoding/json"
	"sync"
)

// LocalBus delivers events in-process. It stands in for Kafka when no brokers
// are configured, so a single instance still gets live feed refreshes.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]func([]byte) error
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string]map[int]func([]byte) error)}
}

// Publish encodes value and calls every handler subscribed to topic, in the
// caller's goroutine.
func (b *LocalBus) Publish(_ context.Context, topic, _ string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	b.mu.RLock()
	handlers := make([]func([]byte) error, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		_ = h(data)
	}
	return nil
}

// Subscribe registers handler for topic until ctx is done. groupID is ignored:
// every in-process subscriber receives every message.
func (b *LocalBus) Subscribe(ctx context.Context, topic, _ string, handler func([]byte) error) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]func([]byte) error)
	}
	b.handlers[topic][id] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers[topic], id)
		b.mu.Unlock()
	}()
}
