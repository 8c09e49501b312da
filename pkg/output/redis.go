package output

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPublishTimeout = 5 * time.Second

// RedisOutput publishes every entry to a Pub/Sub channel. One batch is one
// pipelined round trip.
type RedisOutput struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisOutput(client redis.UniversalClient, channel string) *RedisOutput {
	return &RedisOutput{
		client:  client,
		channel: channel,
	}
}

func (r *RedisOutput) WriteBatch(entries [][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range entries {
			pipe.Publish(ctx, r.channel, entry)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis output %s: %w", r.channel, err)
	}
	return nil
}
