package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

const defaultBuffer = 64

// Publisher emits pipeline events to frame's queue and to in-process
// listeners such as the SSE stream. Without a queue manager events stay
// local.
type Publisher struct {
	queueMgr queue.Manager
	queueRef string
	source   string

	mu        sync.RWMutex
	listeners map[string]chan Envelope
}

// NewPublisher publishes to queueRef on queueMgr. source identifies this
// instance so the relay can skip its own envelopes.
func NewPublisher(queueMgr queue.Manager, source, queueRef string) *Publisher {
	return &Publisher{
		queueMgr:  queueMgr,
		queueRef:  queueRef,
		source:    source,
		listeners: make(map[string]chan Envelope),
	}
}

// NewLocalPublisher creates a publisher with no event bus.
func NewLocalPublisher(source string) *Publisher {
	return NewPublisher(nil, source, "")
}

// Emit wraps data in an envelope for requestID, hands it to local listeners
// and publishes it.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, requestID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	p.fanOut(ctx, env)

	if p.queueMgr == nil || p.queueRef == "" {
		return nil
	}
	if err := p.queueMgr.Publish(ctx, p.queueRef, env); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// fanOut never blocks; a listener with a full buffer misses the event.
func (p *Publisher) fanOut(ctx context.Context, env Envelope) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, ch := range p.listeners {
		select {
		case ch <- env:
		default:
			slog.WarnContext(ctx, "listener buffer full, event dropped",
				slog.String("listener", id),
				slog.String("event_type", string(env.Type)),
				slog.String("request_id", env.RequestID))
		}
	}
}

// Subscribe registers a local listener. Re-using an id replaces and closes
// the previous channel. Call Unsubscribe when done.
func (p *Publisher) Subscribe(id string, bufSize int) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = defaultBuffer
	}
	ch := make(chan Envelope, bufSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.listeners[id]; ok {
		close(old)
	}
	p.listeners[id] = ch
	return ch
}

// Unsubscribe removes the listener and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.listeners[id]; ok {
		close(ch)
		delete(p.listeners, id)
	}
}
