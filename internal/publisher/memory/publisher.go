// Package memory records published job events in process for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	failures int
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailNext makes the next n Publish calls return an error.
func (p *Publisher) FailNext(n int) {
	p.mu.Lock()
	p.failures = n
	p.mu.Unlock()
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return "", errors.New("memory publisher: injected failure")
	}
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// EventTypes lists the type of every recorded payload that carries one.
func (p *Publisher) EventTypes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for _, m := range p.messages {
		if typed, ok := m.Payload.(interface{ EventType() string }); ok {
			out = append(out, typed.EventType())
		}
	}
	return out
}
