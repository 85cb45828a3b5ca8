// internal/cache/wallet_cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/javajoker/commission-backend/internal/config"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/repository"
)

// WalletCache stores the latest validation of each wallet. Get returns nil
// without error on a miss. Freshness is judged by the caller from ValidatedAt.
type WalletCache interface {
	Get(ctx context.Context, walletID string) (*models.WalletValidation, error)
	Put(ctx context.Context, v *models.WalletValidation, ttl time.Duration) error
}

const walletKeyPrefix = "wallet:validation:"

// Connect initializes a Redis client from URL or host:port settings.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB}
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisWalletCache keeps one JSON document per wallet with a TTL.
type RedisWalletCache struct {
	client redis.UniversalClient
}

func NewRedisWalletCache(client redis.UniversalClient) *RedisWalletCache {
	return &RedisWalletCache{client: client}
}

func (c *RedisWalletCache) Get(ctx context.Context, walletID string) (*models.WalletValidation, error) {
	raw, err := c.client.Get(ctx, walletKeyPrefix+walletID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var v models.WalletValidation
	if err := json.Unmarshal(raw, &v); err != nil {
		// A corrupt entry is a miss; the next Put overwrites it.
		return nil, nil
	}
	return &v, nil
}

func (c *RedisWalletCache) Put(ctx context.Context, v *models.WalletValidation, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, walletKeyPrefix+v.WalletID, raw, ttl).Err()
}

// DBWalletCache persists validations in the wallet_validations table.
type DBWalletCache struct {
	repo repository.WalletValidationRepository
}

func NewDBWalletCache(repo repository.WalletValidationRepository) *DBWalletCache {
	return &DBWalletCache{repo: repo}
}

func (c *DBWalletCache) Get(ctx context.Context, walletID string) (*models.WalletValidation, error) {
	v, err := c.repo.Get(ctx, walletID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (c *DBWalletCache) Put(ctx context.Context, v *models.WalletValidation, _ time.Duration) error {
	return c.repo.Upsert(ctx, v)
}

var (
	_ WalletCache = (*RedisWalletCache)(nil)
	_ WalletCache = (*DBWalletCache)(nil)
)
