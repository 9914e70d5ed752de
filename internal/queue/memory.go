package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue mirrors RedisQueue's lease semantics in memory. Used in
// tests and single-process setups.
type MemoryQueue struct {
	mu       sync.Mutex
	ready    []string
	messages map[string]*Message
	inflight map[string]time.Time
	dead     []Message
	notify   chan struct{}
	opts     Options

	// EnqueueErr, when set, makes Enqueue fail. Exercises the
	// queue-unavailable path in producer tests.
	EnqueueErr error
}

func NewMemoryQueue(opts Options) *MemoryQueue {
	return &MemoryQueue{
		messages: make(map[string]*Message),
		inflight: make(map[string]time.Time),
		notify:   make(chan struct{}, 1),
		opts:     opts.withDefaults(),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.EnqueueErr != nil {
		return "", q.EnqueueErr
	}

	id := uuid.NewString()
	data := make([]byte, len(body))
	copy(data, body)
	q.messages[id] = &Message{ID: id, Body: data}
	q.ready = append(q.ready, id)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return id, nil
}

func (q *MemoryQueue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	deadline := time.Now().Add(wait)
	for {
		if msg := q.tryReceive(); msg != nil {
			return msg, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
			return nil, nil
		}
	}
}

func (q *MemoryQueue) tryReceive() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reclaimLocked(time.Now())

	for len(q.ready) > 0 {
		id := q.ready[0]
		q.ready = q.ready[1:]

		msg, ok := q.messages[id]
		if !ok {
			continue
		}
		msg.Deliveries++
		q.inflight[id] = time.Now().Add(q.opts.VisibilityTimeout)

		out := *msg
		out.Body = append([]byte(nil), msg.Body...)
		return &out
	}
	return nil
}

func (q *MemoryQueue) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[id]; !ok {
		return ErrMessageNotFound
	}
	delete(q.inflight, id)
	delete(q.messages, id)
	return nil
}

func (q *MemoryQueue) reclaimLocked(now time.Time) {
	for id, deadline := range q.inflight {
		if deadline.After(now) {
			continue
		}
		delete(q.inflight, id)

		msg, ok := q.messages[id]
		if !ok {
			continue
		}
		if msg.Deliveries >= q.opts.MaxDeliveries {
			q.dead = append(q.dead, *msg)
			delete(q.messages, id)
			continue
		}
		q.ready = append(q.ready, id)
	}
}

// ExpireLeases force-expires every in-flight lease (test helper).
func (q *MemoryQueue) ExpireLeases() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id := range q.inflight {
		q.inflight[id] = time.Time{}
	}
	q.reclaimLocked(time.Now())
}

// Len reports how many messages are ready for delivery.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// InflightLen reports how many messages are currently leased.
func (q *MemoryQueue) InflightLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// DeadLetters returns a copy of the dead-lettered messages.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.dead...)
}
