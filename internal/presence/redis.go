package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// countTTL expires connection counters left behind by a crashed process.
const countTTL = 24 * time.Hour

func connectionsKey(id uuid.UUID) string {
	return fmt.Sprintf("presence:%s:connections", id)
}

func callKey(id uuid.UUID) string {
	return fmt.Sprintf("call:%s:partner", id)
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

var disconnectScript = redis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
  redis.call('DEL', KEYS[1])
  return 0
end
return n
`)

// RedisTracker keeps connection counts in Redis so every process agrees on presence.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) Connect(ctx context.Context, id uuid.UUID) (int64, error) {
	key := connectionsKey(id)

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, countTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("presence: connect: %w", err)
	}
	return incr.Val(), nil
}

func (t *RedisTracker) Disconnect(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := disconnectScript.Run(ctx, t.client, []string{connectionsKey(id)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("presence: disconnect: %w", err)
	}
	return n, nil
}

var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

var extendScript = redis.NewScript(`
for i = 1, 2 do
  if redis.call('GET', KEYS[i]) == ARGV[i] then
    redis.call('PEXPIRE', KEYS[i], ARGV[3])
  end
end
return 1
`)

var releaseScript = redis.NewScript(`
for i = 1, 2 do
  if redis.call('GET', KEYS[i]) == ARGV[i] then
    redis.call('DEL', KEYS[i])
  end
end
return 1
`)

// RedisCallGuard stores each busy identity's call partner under a TTL key.
type RedisCallGuard struct {
	client    *redis.Client
	inviteTTL time.Duration
}

func NewRedisCallGuard(client *redis.Client, inviteTTL time.Duration) *RedisCallGuard {
	return &RedisCallGuard{client: client, inviteTTL: inviteTTL}
}

func (g *RedisCallGuard) Reserve(ctx context.Context, caller, callee uuid.UUID) (bool, error) {
	ok, err := reserveScript.Run(ctx, g.client,
		[]string{callKey(caller), callKey(callee)},
		callee.String(), caller.String(), g.inviteTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("presence: reserve call: %w", err)
	}
	return ok == 1, nil
}

func (g *RedisCallGuard) Extend(ctx context.Context, a, b uuid.UUID) error {
	err := extendScript.Run(ctx, g.client,
		[]string{callKey(a), callKey(b)},
		b.String(), a.String(), ActiveCallTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("presence: extend call: %w", err)
	}
	return nil
}

func (g *RedisCallGuard) Release(ctx context.Context, a, b uuid.UUID) error {
	err := releaseScript.Run(ctx, g.client,
		[]string{callKey(a), callKey(b)},
		b.String(), a.String(),
	).Err()
	if err != nil {
		return fmt.Errorf("presence: release call: %w", err)
	}
	return nil
}
