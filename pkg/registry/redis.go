package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis-backed registry.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// EntryTTL bounds how long an entry outlives its last report. A bot
	// that dies without reporting stopped simply ages out.
	EntryTTL time.Duration
}

// RedisRegistry is the distributed Registry implementation, suitable for
// fleets where many bots report concurrently.
type RedisRegistry struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	ttl         time.Duration
}

// NewRedisRegistry creates and connects a RedisRegistry. It pings the server
// to ensure connectivity before returning.
func NewRedisRegistry(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisRegistry, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis for bot registry: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis for bot registry.")

	return &RedisRegistry{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisRegistry").Logger(),
		ttl:         cfg.EntryTTL,
	}, nil
}

// Register creates or replaces the bot's entry.
func (r *RedisRegistry) Register(ctx context.Context, status BotStatus) error {
	status.LastUpdated = time.Now().UTC()
	return r.write(ctx, status)
}

// UpdateCount records the bot's current counter value.
func (r *RedisRegistry) UpdateCount(ctx context.Context, botID string, count int) error {
	status, err := r.Get(ctx, botID)
	if err != nil {
		return err
	}
	status.Count = count
	status.LastUpdated = time.Now().UTC()
	return r.write(ctx, status)
}

// SetState records a lifecycle transition.
func (r *RedisRegistry) SetState(ctx context.Context, botID string, state State) error {
	status, err := r.Get(ctx, botID)
	if err != nil {
		return err
	}
	status.State = state
	status.LastUpdated = time.Now().UTC()
	return r.write(ctx, status)
}

// Get returns the bot's entry.
func (r *RedisRegistry) Get(ctx context.Context, botID string) (BotStatus, error) {
	var zero BotStatus
	data, err := r.redisClient.Get(ctx, botKey(botID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, fmt.Errorf("bot '%s' not found in registry", botID)
		}
		return zero, fmt.Errorf("redis get failed for bot %s: %w", botID, err)
	}
	var status BotStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return zero, fmt.Errorf("failed to unmarshal registry entry for bot %s: %w", botID, err)
	}
	return status, nil
}

// Close closes the Redis client connection.
func (r *RedisRegistry) Close() error {
	if r.redisClient != nil {
		return r.redisClient.Close()
	}
	return nil
}

func (r *RedisRegistry) write(ctx context.Context, status BotStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal registry entry for bot %s: %w", status.BotID, err)
	}
	if err := r.redisClient.Set(ctx, botKey(status.BotID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write registry entry for bot %s: %w", status.BotID, err)
	}
	return nil
}

func botKey(botID string) string {
	return "bots:" + botID
}
