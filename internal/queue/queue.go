package queue

import (
	"context"
	"errors"
	"time"
)

var ErrMessageNotFound = errors.New("queue: message not in flight")

// Message is a leased job. Deliveries counts how many times the message
// has been handed to a consumer, including this one.
type Message struct {
	ID         string `json:"id"`
	Body       []byte `json:"body"`
	Deliveries int    `json:"deliveries"`
}

// Queue is an at-least-once job queue. A received message stays
// invisible to other consumers until its visibility timeout expires;
// it is only gone for good after Delete. Messages that exceed the
// delivery limit move to a dead-letter area instead of being retried
// forever.
type Queue interface {
	// Enqueue adds a job and returns its message ID.
	Enqueue(ctx context.Context, body []byte) (string, error)

	// Receive leases the next message, waiting up to wait for one to
	// arrive. Returns (nil, nil) when the queue stays empty.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)

	// Delete acks a leased message. Not acking means redelivery after
	// the visibility timeout.
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Name              string
	VisibilityTimeout time.Duration
	MaxDeliveries     int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Name == "" {
		out.Name = "colorpipe:jobs"
	}
	if out.VisibilityTimeout <= 0 {
		out.VisibilityTimeout = 5 * time.Minute
	}
	if out.MaxDeliveries <= 0 {
		out.MaxDeliveries = 5
	}
	return out
}
