package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"parley/internal/core/contracts"

	"parley/pkg/logging"
)

const (
	readBlock   = 2 * time.Second
	reclaimIdle = time.Minute
)

type RedisMessageQueue struct {
	rdb    *redis.Client
	maxLen int64
	log    *slog.Logger

	// entries pending longer than minIdle are claimed every reclaimEvery
	minIdle      time.Duration
	reclaimEvery time.Duration
}

var _ contracts.MessageQueue = (*RedisMessageQueue)(nil)

func NewRedisMessageQueue(rdb *redis.Client, maxLen int64, log *slog.Logger) *RedisMessageQueue {
	return &RedisMessageQueue{
		rdb:          rdb,
		maxLen:       maxLen,
		log:          log,
		minIdle:      reclaimIdle,
		reclaimEvery: reclaimIdle,
	}
}

// WithReclaim sets how long an entry may stay pending before another
// consumer takes it over, and how often subscribers look for such entries.
func (q *RedisMessageQueue) WithReclaim(minIdle, every time.Duration) *RedisMessageQueue {
	if minIdle > 0 {
		q.minIdle = minIdle
	}
	if every > 0 {
		q.reclaimEvery = every
	}
	return q
}

func (q *RedisMessageQueue) PublishToStream(ctx context.Context, stream string, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: q.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

// SubscribeToStream consumes stream as a member of conGroup and blocks until
// ctx is done. Handler errors leave the entry pending; pending entries, from
// this consumer or a crashed one, are reclaimed on start and then every
// reclaimEvery once they have been idle for minIdle.
func (q *RedisMessageQueue) SubscribeToStream(
	ctx context.Context,
	stream string,
	conGroup string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	// Create group if not exists
	err := q.rdb.XGroupCreateMkStream(ctx, stream, conGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	block := min(readBlock, q.reclaimEvery)
	q.reclaim(ctx, stream, conGroup, consumerName, handler)
	lastReclaim := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(lastReclaim) >= q.reclaimEvery {
			q.reclaim(ctx, stream, conGroup, consumerName, handler)
			lastReclaim = time.Now()
		}
		// Read new messages (">")
		res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    conGroup,
			Consumer: consumerName,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    block,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, redis.Nil) {
				q.log.ErrorContext(ctx, "queue - subscribe - stream read failed", "stream", stream, logging.Err(err))
				time.Sleep(block)
			}
			continue
		}
		for _, s := range res {
			q.dispatch(ctx, stream, s.Messages, handler)
		}
	}
}

func (q *RedisMessageQueue) reclaim(
	ctx context.Context,
	stream, conGroup, consumer string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) {
	start := "0-0"
	for {
		msgs, next, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    conGroup,
			Consumer: consumer,
			MinIdle:  q.minIdle,
			Start:    start,
			Count:    100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				q.log.WarnContext(ctx, "queue - reclaim - autoclaim failed", "stream", stream, logging.Err(err))
			}
			return
		}
		if len(msgs) > 0 {
			q.log.InfoContext(ctx, "queue - reclaim - retrying pending entries", "stream", stream, "count", len(msgs))
		}
		q.dispatch(ctx, stream, msgs, handler)
		if next == "0-0" || next == "" || next == start {
			return
		}
		start = next
	}
}

func (q *RedisMessageQueue) dispatch(
	ctx context.Context,
	stream string,
	msgs []redis.XMessage,
	handler func(ctx context.Context, messageID string, data []byte) error,
) {
	for _, msg := range msgs {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			q.log.WarnContext(ctx, "queue - dispatch - entry without data", "stream", stream, logging.Message(msg.ID))
			continue
		}
		if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
			q.log.ErrorContext(ctx, "queue - dispatch - handler failed", "stream", stream, logging.Message(msg.ID), logging.Err(err))
		}
	}
}

func (q *RedisMessageQueue) AcknowledgeMessage(ctx context.Context, stream, conGroup, mesgID string) error {
	return q.rdb.XAck(ctx, stream, conGroup, mesgID).Err()
}

func (q *RedisMessageQueue) DeleteMessage(ctx context.Context, stream, mesgID string) error {
	return q.rdb.XDel(ctx, stream, mesgID).Err()
}
