package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"PerpIndexer/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisFeed reads snapshots from Redis hashes written by an external
// price service: HSET <prefix>:<source> <token> <integer value>.
type RedisFeed struct {
	client    *redis.Client
	keyPrefix string
}

var _ Feed = (*RedisFeed)(nil)

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func NewRedisFeed(client *redis.Client, keyPrefix string) *RedisFeed {
	return &RedisFeed{client: client, keyPrefix: keyPrefix}
}

func (f *RedisFeed) key(source Source) string {
	return f.keyPrefix + ":" + source.String()
}

func (f *RedisFeed) Latest(ctx context.Context, source Source, token string) (*big.Int, error) {
	raw, err := f.client.HGet(ctx, f.key(source), config.NormalizeAddress(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis %s price %s: %w", source, token, err)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("redis %s price %s: invalid value %q", source, token, raw)
	}
	return v, nil
}

func (f *RedisFeed) Put(ctx context.Context, snap Snapshot) error {
	if snap.Value == nil || snap.Value.Sign() < 0 {
		return fmt.Errorf("%s price %s: invalid value %v", snap.Source, snap.Token, snap.Value)
	}
	err := f.client.HSet(ctx, f.key(snap.Source), config.NormalizeAddress(snap.Token), snap.Value.String()).Err()
	if err != nil {
		return fmt.Errorf("redis put %s price %s: %w", snap.Source, snap.Token, err)
	}
	return nil
}
