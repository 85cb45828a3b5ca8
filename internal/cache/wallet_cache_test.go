package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/commission-backend/internal/config"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/repository"
)

func newRedisCache(t *testing.T) (*RedisWalletCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWalletCache(client), mr
}

func TestRedisWalletCacheRoundTrip(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	got, err := c.Get(ctx, "wal_1")
	require.NoError(t, err)
	assert.Nil(t, got)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.Put(ctx, &models.WalletValidation{WalletID: "wal_1", IsValid: true, IsActive: true, Name: "Loja", ValidatedAt: at}, time.Hour))

	got, err = c.Get(ctx, "wal_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsValid)
	assert.Equal(t, "Loja", got.Name)
	assert.True(t, at.Equal(got.ValidatedAt))
	assert.Equal(t, time.Hour, mr.TTL(walletKeyPrefix+"wal_1"))

	mr.FastForward(2 * time.Hour)
	got, err = c.Get(ctx, "wal_1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisWalletCacheLastWriteWins(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, &models.WalletValidation{WalletID: "wal_1", IsValid: true, ValidatedAt: time.Now()}, time.Hour))
	require.NoError(t, c.Put(ctx, &models.WalletValidation{WalletID: "wal_1", IsValid: false, Error: "wallet not found", ValidatedAt: time.Now()}, time.Minute))

	got, err := c.Get(ctx, "wal_1")
	require.NoError(t, err)
	assert.False(t, got.IsValid)
	assert.Equal(t, "wallet not found", got.Error)
}

func TestRedisWalletCacheCorruptEntryIsMiss(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set(walletKeyPrefix+"wal_x", "{not json"))

	got, err := c.Get(context.Background(), "wal_x")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisWalletCacheUnavailable(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "wal_1")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	_ = client.Close()

	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	client, err = Connect(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	_ = client.Close()
}

type memWalletRepo struct {
	rows map[string]models.WalletValidation
}

func (m *memWalletRepo) Get(_ context.Context, id string) (*models.WalletValidation, error) {
	v, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (m *memWalletRepo) Upsert(_ context.Context, v *models.WalletValidation) error {
	m.rows[v.WalletID] = *v
	return nil
}

func TestDBWalletCache(t *testing.T) {
	c := NewDBWalletCache(&memWalletRepo{rows: map[string]models.WalletValidation{}})
	ctx := context.Background()

	got, err := c.Get(ctx, "wal_1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Put(ctx, &models.WalletValidation{WalletID: "wal_1", IsValid: true}, time.Hour))
	got, err = c.Get(ctx, "wal_1")
	require.NoError(t, err)
	assert.True(t, got.IsValid)
}
