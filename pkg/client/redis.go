package client

import (
	"context"
	"time"

	"barberline/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// SetRedis connects Redis. A failed ping is logged and leaves c.Redis nil so
// callers fall back to in-process state.
func (c *Client) SetRedis(log *logger.Logger, addr, password string, db int) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, continuing without it", "addr", addr, "error", err)
		_ = rdb.Close()
		return
	}

	log.Info("Successfully connected to Redis", "addr", addr)
	c.Redis = rdb
}
