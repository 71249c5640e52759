package redisx

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"
    "github.com/redis/go-redis/v9"

    "github.com/yourorg/tokko-sync/internal/cache"
)

type Client struct { Rdb *redis.Client }

func New(addr string, password string, db int) *Client {
    rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
    return &Client{Rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
    return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.Rdb.Close() }

// Get reports a missing key as (nil, false, nil).
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
    b, err := c.Rdb.Get(ctx, key).Bytes()
    if errors.Is(err, redis.Nil) { return nil, false, nil }
    if err != nil { return nil, false, err }
    return b, true, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
    if ttl < 0 { ttl = 0 }
    return c.Rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
    return c.Rdb.Del(ctx, key).Err()
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
    token := uuid.NewString()
    ok, err := c.Rdb.SetNX(ctx, key, token, ttl).Result()
    if err != nil { return nil, err }
    if !ok { return nil, cache.ErrLocked }
    return func(ctx context.Context) error {
        return releaseScript.Run(ctx, c.Rdb, []string{key}, token).Err()
    }, nil
}

var (
    _ cache.Cache  = (*Client)(nil)
    _ cache.Locker = (*Client)(nil)
)
