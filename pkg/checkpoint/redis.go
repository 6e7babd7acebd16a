package checkpoint

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis ledger backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all ledger keys
	Prefix string

	// TTL is the time-to-live for ledger keys (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration

	// PoolSize is the maximum number of connections
	PoolSize int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:  address,
		Prefix:   "mastoflow:imported:",
		TTL:      0, // ledger entries stay valid indefinitely
		Timeout:  5 * time.Second,
		PoolSize: 10,
	}
}

// RedisLedger stores the imported-file ledger in Redis.
type RedisLedger struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisLedger connects to Redis and verifies the connection.
func NewRedisLedger(cfg RedisConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLedger{cfg: cfg, client: client}, nil
}

func (l *RedisLedger) key(name string) string {
	return l.cfg.Prefix + sanitizeKey(name)
}

// sanitizeKey removes characters that may cause issues in Redis keys.
func sanitizeKey(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// Seen reports whether the file was marked at exactly this size.
func (l *RedisLedger) Seen(ctx context.Context, name string, size int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	val, err := l.client.Get(ctx, l.key(name)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup failed: %w", err)
	}

	marked, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, nil
	}
	return marked == size, nil
}

// Mark records the file at this size.
func (l *RedisLedger) Mark(ctx context.Context, name string, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	err := l.client.Set(ctx, l.key(name), strconv.FormatInt(size, 10), l.cfg.TTL).Err()
	if err != nil {
		return fmt.Errorf("ledger mark failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
