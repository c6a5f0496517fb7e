package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"parley/internal/core/contracts"
)

// LastSeenKey is the ZSET holding every user's last-seen time in unix
// milliseconds.
const LastSeenKey = "presence:last_seen"

type RedisPresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contracts.PresenceStore = (*RedisPresenceStore)(nil)

// NewRedisPresenceStore keeps entries for ttl after a user was last seen; a
// zero ttl keeps them forever.
func NewRedisPresenceStore(rdb *redis.Client, ttl time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
		ttl: ttl,
	}
}

// Touch updates the user's score and trims entries older than the ttl.
func (p *RedisPresenceStore) Touch(ctx context.Context, userID string, at time.Time) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, LastSeenKey, redis.Z{
			Score:  float64(at.UnixMilli()),
			Member: userID,
		})
		if p.ttl > 0 {
			threshold := at.Add(-p.ttl).UnixMilli()
			pipe.ZRemRangeByScore(ctx, LastSeenKey, "-inf", "("+strconv.FormatInt(threshold, 10))
		}
		return nil
	})
	return err
}

func (p *RedisPresenceStore) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	score, err := p.rdb.ZScore(ctx, LastSeenKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(int64(score)).UTC(), true, nil
}
