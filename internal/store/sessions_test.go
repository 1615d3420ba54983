package store

import (
	"context"
	"testing"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisKV(client)
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	_, kv := setupKV(t)
	s := NewSessionStore(kv, time.Hour)
	ctx := context.Background()

	sess, err := s.Create(ctx, "google", "google:sub-1", "admin@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)

	got, err := s.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "google", got.Provider)
	assert.Equal(t, "google:sub-1", got.IdentityID)
	assert.Equal(t, "admin@example.com", got.Email)
}

func TestSessionStore_UnknownTokenIsExpired(t *testing.T) {
	_, kv := setupKV(t)
	s := NewSessionStore(kv, time.Hour)

	_, err := s.Get(context.Background(), "no-such-token")
	require.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestSessionStore_TTLExpiry(t *testing.T) {
	mr, kv := setupKV(t)
	s := NewSessionStore(kv, time.Minute)
	ctx := context.Background()

	sess, err := s.Create(ctx, "apple", "apple:sub-2", "carer@example.com")
	require.NoError(t, err)

	// miniredis 的时钟需要手动推进
	mr.FastForward(2 * time.Minute)

	_, err = s.Get(ctx, sess.Token)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestSessionStore_Logout(t *testing.T) {
	_, kv := setupKV(t)
	s := NewSessionStore(kv, time.Hour)
	ctx := context.Background()

	sess, err := s.Create(ctx, "google", "google:sub-3", "x@example.com")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, sess.Token))

	_, err = s.Get(ctx, sess.Token)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
}
