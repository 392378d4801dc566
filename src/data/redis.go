package data

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	streamEvents    = "claimd.events"
	streamMaxLength = 1000
)

func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// PublishEvent appends payload to the claim event stream, trimming it to
// roughly the last streamMaxLength entries.
func PublishEvent(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamEvents,
		MaxLen: streamMaxLength,
		Approx: true,
		Values: payload,
	}).Result()
	return err
}

// StreamName is the redis stream claim events are published to.
func StreamName() string { return streamEvents }
