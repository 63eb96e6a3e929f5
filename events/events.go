// Package events publishes message log events for downstream consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the topic exchange.
const (
	KEY_MESSAGE_INBOUND  = "message.inbound"
	KEY_MESSAGE_OUTBOUND = "message.outbound"
)

type Meta struct {
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// MessageEvent mirrors one row of the messages table.
type MessageEvent struct {
	MessageID      string `json:"message_id"`
	TenantID       string `json:"tenant_id"`
	ChannelID      string `json:"channel_id"`
	ConversationID string `json:"conversation_id"`
	Direction      string `json:"direction"`
	Sender         string `json:"sender"`
	Body           string `json:"body"`
	Provenance     string `json:"provenance,omitempty"`
	SendStatus     string `json:"send_status,omitempty"`
}

// NewEnvelope stamps a fresh event id. correlationID is usually the webhook request id.
func NewEnvelope(eventType, correlationID string, data any) Envelope {
	env := Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: "wabiz",
			Time:     time.Now().UTC(),
			Type:     eventType,
		},
		Data: data,
	}
	if correlationID != "" {
		cid := correlationID
		env.Meta.CorrelationID = &cid
	}
	return env
}

type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// Noop drops every event. Used when amqp.url is empty.
type Noop struct{}

func (Noop) Publish(context.Context, string, Envelope) error {
	return nil
}

func (Noop) Close() error {
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Keys   []string
	Events []Envelope
}

func (r *Recorder) Publish(_ context.Context, key string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Keys = append(r.Keys, key)
	r.Events = append(r.Events, env)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.Keys {
		if k == key {
			n++
		}
	}
	return n
}
