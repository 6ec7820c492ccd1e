package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a *redis.Client with the narrow surface the rest of the
// pipeline needs, the same shape as the teacher's RedisStatStore wrapper in
// internal/worker/achievements.go.
type Client struct {
	rdb *redis.Client
	Keys
}

// New wraps an existing redis client. Connection/auth/URL parsing is the
// caller's responsibility (cmd/server passes REDIS_URL to redis.NewClient
// as the address).
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Raw exposes the underlying client for callers that need redis-specific
// functionality (pipelines, pub/sub) not wrapped here.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// IncrBy increments an integer counter key (player:*:total_loot and similar).
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := c.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("kvstore: incrby %s: %w", key, err)
	}
	return n, nil
}

// HGet reads one field of a hash; ok is false if the field is absent.
func (c *Client) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := c.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore: hget %s.%s: %w", key, field, err)
	}
	return v, true, nil
}

// HSet writes one field of a hash (player:*:total_items).
func (c *Client) HSet(ctx context.Context, key, field, value string) error {
	if err := c.rdb.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("kvstore: hset %s.%s: %w", key, field, err)
	}
	return nil
}

// LPushTrim pushes value to the head of a list and trims it to indices
// 0..maxLen-1 (keeping the newest maxLen entries), implementing the bounded ring-buffer
// lists in §6 (recent_items, drop_history, high_value_items).
func (c *Client) LPushTrim(ctx context.Context, key, value string, maxLen int64) error {
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kvstore: lpush+trim %s: %w", key, err)
	}
	return nil
}

// LRange returns entries [start,stop] of a list, newest first.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore: lrange %s: %w", key, err)
	}
	return vals, nil
}

// ZAdd sets a member's score in a sorted set (leaderboards).
func (c *Client) ZAdd(ctx context.Context, key, member string, score float64) error {
	if err := c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("kvstore: zadd %s: %w", key, err)
	}
	return nil
}

// Rank returns the 1-based rank of member in a descending-score sorted set,
// and the set cardinality. If member is absent, ok is false and total is
// still the cardinality (the §4.3 rank query contract).
func (c *Client) Rank(ctx context.Context, key, member string) (rank int64, total int64, ok bool, err error) {
	total, err = c.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, 0, false, fmt.Errorf("kvstore: zcard %s: %w", key, err)
	}
	r, err := c.rdb.ZRevRank(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, total, false, nil
	}
	if err != nil {
		return 0, total, false, fmt.Errorf("kvstore: zrevrank %s: %w", key, err)
	}
	return r + 1, total, true, nil
}

// ZTopN returns the top-N members (highest score first) with their scores.
func (c *Client) ZTopN(ctx context.Context, key string, n int64) ([]redis.Z, error) {
	vals, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore: zrevrange %s: %w", key, err)
	}
	return vals, nil
}

// Expire sets a TTL on a key (daily partitions carry a 14-day TTL, §3/§6).
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: expire %s: %w", key, err)
	}
	return nil
}

// SAddRecent adds a member to a set bounded at about maxLen and, when ttl > 0,
// resets the key's TTL. The notification queue uses it for its per-group
// "recently enqueued" content-hash set (§4.4).
func (c *Client) SAddRecent(ctx context.Context, key, member string, maxLen int64, ttl time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, key, member)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kvstore: sadd %s: %w", key, err)
	}
	// Best-effort bound: once the set exceeds maxLen, one random member
	// (SRANDMEMBER+SREM) is removed; eviction does not follow insertion order.
	size, err := c.rdb.SCard(ctx, key).Result()
	if err == nil && size > maxLen {
		if victim, err := c.rdb.SRandMember(ctx, key).Result(); err == nil {
			c.rdb.SRem(ctx, key, victim)
		}
	}
	return nil
}

func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("kvstore: sismember %s: %w", key, err)
	}
	return ok, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("kvstore: del: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore: get %s: %w", key, err)
	}
	return v, true, nil
}

func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: set %s: %w", key, err)
	}
	return nil
}
