package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "user-record-service/internal/domain/user"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func testUser() *domain.User {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.User{
		ID:        1,
		Email:     "john@example.com",
		Password:  "secret",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestRedisUserCache_SetThenGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	user := testUser()
	require.NoError(t, cache.Set(context.Background(), user))
	assert.True(t, mr.Exists("user:1"))

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, user.ID, cached.ID)
	assert.Equal(t, user.Email, cached.Email)
	assert.Equal(t, user.Password, cached.Password)
	assert.True(t, user.CreatedAt.Equal(cached.CreatedAt))
	assert.True(t, user.UpdatedAt.Equal(cached.UpdatedAt))
}

func TestRedisUserCache_Set_NilUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	err := cache.Set(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cache nil user")
}

func TestRedisUserCache_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	cached, err := cache.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_Get_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	require.NoError(t, mr.Set(Key(7), "{not json"))

	cached, err := cache.Get(context.Background(), 7)
	assert.Error(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	require.NoError(t, cache.Set(context.Background(), testUser()))
	require.NoError(t, cache.Delete(context.Background(), 1))

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, cached)

	// deleting an absent key is not an error
	require.NoError(t, cache.Delete(context.Background(), 1))
}

func TestRedisUserCache_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, 2*time.Second, zaptest.NewLogger(t))

	require.NoError(t, cache.Set(context.Background(), testUser()))

	mr.FastForward(3 * time.Second)

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_ServerError(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, time.Minute, zaptest.NewLogger(t))

	mr.SetError("ERR injected failure")

	_, err := cache.Get(context.Background(), 1)
	assert.Error(t, err)
}
