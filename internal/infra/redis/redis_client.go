package redis

import (
	"context"
	"time"

	"research-compass/internal/config"

	"github.com/go-redis/redis/v8"
)

// Nil is re-exported so callers can detect cache/list misses without
// importing the driver directly.
const Nil = redis.Nil

// Subscription is one live pub/sub subscription. Messages delivers payloads
// in publish order until Close.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

// Client is the narrow surface of Redis the application uses. Keeping it an
// interface lets the queue and cache tests run against an in-memory fake.
type Client interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	// CompareAndDelete removes key only while it still holds value. Used for
	// releasing per-job locks without stomping a newer holder.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Exists(ctx context.Context, keys ...string) (int64, error)
	Del(ctx context.Context, keys ...string) error

	LPush(ctx context.Context, key string, values ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, count int64, value string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LLen(ctx context.Context, key string) (int64, error)
	// BRPopLPush blocks up to timeout; returns redis.Nil when nothing arrived.
	BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error)

	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) Subscription

	Close() error
}

var _ Client = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redClient, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *redClient) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *redClient) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, key, value, expiration).Result()
}

var luaCompareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (c *redClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := luaCompareAndDelete.Run(ctx, c.cli, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *redClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, key, expiration).Err()
}

func (c *redClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	return c.cli.Exists(ctx, keys...).Result()
}

func (c *redClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redClient) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return c.cli.LPush(ctx, key, args...).Err()
}

func (c *redClient) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return c.cli.RPush(ctx, key, args...).Err()
}

func (c *redClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.cli.LRange(ctx, key, start, stop).Result()
}

func (c *redClient) LRem(ctx context.Context, key string, count int64, value string) error {
	return c.cli.LRem(ctx, key, count, value).Err()
}

func (c *redClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	return c.cli.LTrim(ctx, key, start, stop).Err()
}

func (c *redClient) LLen(ctx context.Context, key string) (int64, error) {
	return c.cli.LLen(ctx, key).Result()
}

func (c *redClient) BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error) {
	return c.cli.BRPopLPush(ctx, source, destination, timeout).Result()
}

func (c *redClient) Publish(ctx context.Context, channel, payload string) error {
	return c.cli.Publish(ctx, channel, payload).Err()
}

type redSubscription struct {
	ps  *redis.PubSub
	out chan string
}

func (s *redSubscription) Messages() <-chan string { return s.out }
func (s *redSubscription) Close() error            { return s.ps.Close() }

func (c *redClient) Subscribe(ctx context.Context, channel string) Subscription {
	ps := c.cli.Subscribe(ctx, channel)
	sub := &redSubscription{ps: ps, out: make(chan string, 64)}
	go func() {
		defer close(sub.out)
		for msg := range ps.Channel() {
			select {
			case sub.out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub
}

func (c *redClient) Close() error { return c.cli.Close() }
