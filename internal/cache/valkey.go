package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type ValkeyConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	SessionTTL time.Duration
}

// ValkeyStore keeps persisted sessions in Valkey.
type ValkeyStore struct {
	client *redis.Client
}

func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyStore{client: rdb}, nil
}

func (v *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := v.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, nil
}

func (v *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := v.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

func (v *ValkeyStore) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (v *ValkeyStore) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyStore) Close() error {
	return v.client.Close()
}
