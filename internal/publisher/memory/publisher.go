// Package memory records published analytics payloads in process. It backs
// the analytics fan-out when no Pub/Sub topic is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message captures one publish call in its wire form.
type Message struct {
	Topic string
	Data  []byte
}

// Publisher keeps the last Limit messages.
type Publisher struct {
	mu       sync.RWMutex
	limit    int
	total    int
	messages []Message
}

// New returns a Publisher retaining up to limit messages; limit <= 0 keeps
// everything.
func New(limit int) *Publisher {
	return &Publisher{limit: limit}
}

// Publish JSON-encodes payload the way the Pub/Sub publisher does and
// records it.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total++
	p.messages = append(p.messages, Message{Topic: topic, Data: data})
	if p.limit > 0 && len(p.messages) > p.limit {
		p.messages = append([]Message(nil), p.messages[len(p.messages)-p.limit:]...)
	}
	return fmt.Sprintf("memory-%d", p.total), nil
}

// Messages returns the retained messages, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
