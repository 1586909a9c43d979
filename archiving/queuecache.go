package archiving

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"holocene.dev/holod/common"
)

// QueueDepthCache caches the last ArchiveBox queue-depth probe in
// Redis with a short TTL, grounded on queue/redis/queue.go's client-
// setup idiom, repurposed from that file's distributed-job-queue role
// to a narrow read-through cache since BackgroundRunner stays
// in-process.
type QueueDepthCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewQueueDepthCache connects to redisURL and caches under key for ttl.
// Returns nil, nil if redisURL is empty — callers treat a nil cache as
// "always probe".
func NewQueueDepthCache(redisURL, key string, ttl time.Duration) (*QueueDepthCache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &QueueDepthCache{client: client, key: key, ttl: ttl}, nil
}

// Get returns the cached depth and true if still fresh.
func (c *QueueDepthCache) Get() (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if err != redis.Nil {
			common.Logger.WithField("component", "archiving.queuecache").WithError(err).Warn("queue depth cache read failed")
		}
		return 0, false
	}
	depth, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return depth, true
}

// Set stores depth with the cache's configured TTL.
func (c *QueueDepthCache) Set(depth int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, c.key, strconv.Itoa(depth), c.ttl).Err(); err != nil {
		common.Logger.WithField("component", "archiving.queuecache").WithError(err).Warn("queue depth cache write failed")
	}
}

// Close releases the Redis connection.
func (c *QueueDepthCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
