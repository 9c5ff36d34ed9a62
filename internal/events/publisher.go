// Package events publishes client lifecycle events to Redis.
// Each event goes to the channel named after its type. Delivery is best
// effort: failures are logged and never returned to the caller.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Event is both the event type and the Redis channel it is published on.
type Event string

const (
	PaymentConfirmed Event = "EVENT_PAYMENT_CONFIRMED"
	PaymentFailed    Event = "EVENT_PAYMENT_FAILED"
	JobPosted        Event = "EVENT_JOB_POSTED"
)

// Client is the subset of *redis.Client the publisher needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	Type Event     `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// Publisher sends events to Redis. A nil *Publisher, or one built with a nil
// client, drops every event.
type Publisher struct {
	rdb Client
	now func() time.Time
}

// NewPublisher returns a publisher over rdb.
func NewPublisher(rdb Client) *Publisher {
	return &Publisher{rdb: rdb, now: time.Now}
}

// Publish marshals payload into an Envelope and sends it (non-fatal).
func (p *Publisher) Publish(ctx context.Context, ev Event, payload any) {
	if p == nil || p.rdb == nil {
		return
	}
	body, err := json.Marshal(Envelope{Type: ev, At: p.now().UTC(), Data: payload})
	if err != nil {
		log.WithError(err).WithField("event", ev).Warn("marshal event failed")
		return
	}
	if err := p.rdb.Publish(ctx, string(ev), body).Err(); err != nil {
		log.WithError(err).WithField("event", ev).Warn("publish event failed")
	}
}
