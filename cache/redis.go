package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/madbus/madbus/model"
)

const DefaultRedisPrefix = "madbus:arrivals:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis implementation of Arrivals, for sharing predictions between
// bot instances.
type Redis struct {
	Prefix string

	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Prefix: DefaultRedisPrefix,
		client: client,
	}
}

// Connects and pings.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedis(client), nil
}

func (r *Redis) Key(stopID string) string {
	return r.Prefix + stopID
}

func (r *Redis) Get(ctx context.Context, stopID string) ([]model.Arrival, bool, error) {
	data, err := r.client.Get(ctx, r.Key(stopID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting %s: %w", r.Key(stopID), err)
	}

	arrivals := []model.Arrival{}
	if err := json.Unmarshal(data, &arrivals); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", r.Key(stopID), err)
	}
	return arrivals, true, nil
}

func (r *Redis) Set(ctx context.Context, stopID string, arrivals []model.Arrival, ttl time.Duration) error {
	data, err := json.Marshal(arrivals)
	if err != nil {
		return fmt.Errorf("encoding arrivals: %w", err)
	}
	if err := r.client.Set(ctx, r.Key(stopID), data, ttl).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", r.Key(stopID), err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
