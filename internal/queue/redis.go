package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/colorpipe/colorpipe/internal/logger"
)

var _ Queue = (*RedisQueue)(nil)

// RedisQueue keeps ready message IDs in a list, message envelopes in a
// hash, and leased IDs in a sorted set scored by their redelivery
// deadline. Expired leases are swept back to the ready list on every
// Receive; messages past the delivery limit land in <name>:dead.
type RedisQueue struct {
	rdb  *redis.Client
	opts Options
}

func NewRedisQueue(rdb *redis.Client, opts Options) *RedisQueue {
	return &RedisQueue{
		rdb:  rdb,
		opts: opts.withDefaults(),
	}
}

func (q *RedisQueue) readyKey() string    { return q.opts.Name }
func (q *RedisQueue) messagesKey() string { return q.opts.Name + ":messages" }
func (q *RedisQueue) inflightKey() string { return q.opts.Name + ":inflight" }
func (q *RedisQueue) deadKey() string     { return q.opts.Name + ":dead" }

func (q *RedisQueue) Enqueue(ctx context.Context, body []byte) (string, error) {
	id := uuid.NewString()
	envelope, err := json.Marshal(Message{ID: id, Body: body})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.messagesKey(), id, envelope)
	pipe.LPush(ctx, q.readyKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	logger.FromContext(ctx).Debug("job enqueued", "queue", q.opts.Name, "message_id", id)
	return id, nil
}

func (q *RedisQueue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	if err := q.reclaim(ctx); err != nil {
		return nil, err
	}

	var id string
	if wait > 0 {
		res, err := q.rdb.BRPop(ctx, wait, q.readyKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, nil
			}
			return nil, fmt.Errorf("receive: %w", err)
		}
		id = res[1]
	} else {
		var err error
		id, err = q.rdb.RPop(ctx, q.readyKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, nil
			}
			return nil, fmt.Errorf("receive: %w", err)
		}
	}

	raw, err := q.rdb.HGet(ctx, q.messagesKey(), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Envelope already deleted; treat as empty poll.
			return nil, nil
		}
		return nil, fmt.Errorf("fetch envelope %s: %w", id, err)
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal envelope %s: %w", id, err)
	}
	msg.Deliveries++

	envelope, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", id, err)
	}

	deadline := time.Now().Add(q.opts.VisibilityTimeout)
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.messagesKey(), id, envelope)
	pipe.ZAdd(ctx, q.inflightKey(), redis.Z{Score: float64(deadline.UnixMilli()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("lease %s: %w", id, err)
	}

	return &msg, nil
}

func (q *RedisQueue) Delete(ctx context.Context, id string) error {
	pipe := q.rdb.TxPipeline()
	zrem := pipe.ZRem(ctx, q.inflightKey(), id)
	pipe.HDel(ctx, q.messagesKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if zrem.Val() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// reclaimScript moves one expired lease in a single server-side step.
// The score re-check makes the move exclusive when several consumers
// sweep at once, and claim and requeue happen together, so a consumer
// dying mid-sweep can never leave an envelope outside both lists.
// KEYS: inflight, messages, ready, dead. ARGV: id, now, dead?, raw.
// Returns 0 lost race, 1 requeued, 2 dead-lettered.
var reclaimScript = redis.NewScript(`
local score = redis.call("ZSCORE", KEYS[1], ARGV[1])
if not score or tonumber(score) > tonumber(ARGV[2]) then
	return 0
end
redis.call("ZREM", KEYS[1], ARGV[1])
if tonumber(ARGV[3]) == 1 then
	redis.call("HDEL", KEYS[2], ARGV[1])
	redis.call("LPUSH", KEYS[4], ARGV[4])
	return 2
end
redis.call("LPUSH", KEYS[3], ARGV[1])
return 1
`)

// reclaim moves expired leases back to the ready list, or to the dead
// letter list once the delivery limit is reached.
func (q *RedisQueue) reclaim(ctx context.Context) error {
	log := logger.FromContext(ctx)
	now := time.Now().UnixMilli()

	ids, err := q.rdb.ZRangeByScore(ctx, q.inflightKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("scan expired leases: %w", err)
	}

	keys := []string{q.inflightKey(), q.messagesKey(), q.readyKey(), q.deadKey()}
	for _, id := range ids {
		raw, err := q.rdb.HGet(ctx, q.messagesKey(), id).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Orphan lease with no envelope; drop it.
				_ = q.rdb.ZRem(ctx, q.inflightKey(), id).Err()
				continue
			}
			return fmt.Errorf("fetch expired envelope %s: %w", id, err)
		}

		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return fmt.Errorf("unmarshal expired envelope %s: %w", id, err)
		}

		dead := 0
		if msg.Deliveries >= q.opts.MaxDeliveries {
			dead = 1
		}

		moved, err := reclaimScript.Run(ctx, q.rdb, keys, id, now, dead, raw).Int()
		if err != nil {
			return fmt.Errorf("reclaim %s: %w", id, err)
		}
		switch moved {
		case 1:
			log.Info("expired lease requeued",
				"queue", q.opts.Name, "message_id", id, "deliveries", msg.Deliveries)
		case 2:
			log.Warn("message moved to dead letter queue",
				"queue", q.opts.Name, "message_id", id, "deliveries", msg.Deliveries)
		}
	}

	return nil
}

// Len reports how many messages are ready for delivery.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.readyKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// DeadLen reports how many messages have been dead-lettered.
func (q *RedisQueue) DeadLen(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.deadKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("dead letter length: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
