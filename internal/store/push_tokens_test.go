package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushTokenStore_SetSemantics(t *testing.T) {
	_, kv := setupKV(t)
	s := NewPushTokenStore(kv)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "user-1", "tok-a"))
	require.NoError(t, s.Register(ctx, "user-1", "tok-b"))
	// 重复注册同一 token 不产生重复项
	require.NoError(t, s.Register(ctx, "user-1", "tok-a"))

	tokens, err := s.Tokens(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tok-a", "tok-b"}, tokens)
}

func TestPushTokenStore_Unregister(t *testing.T) {
	_, kv := setupKV(t)
	s := NewPushTokenStore(kv)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "user-1", "tok-a"))
	require.NoError(t, s.Register(ctx, "user-1", "tok-b"))
	require.NoError(t, s.Unregister(ctx, "user-1", "tok-a"))

	tokens, err := s.Tokens(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-b"}, tokens)
}

func TestPushTokenStore_IsolatedPerUser(t *testing.T) {
	_, kv := setupKV(t)
	s := NewPushTokenStore(kv)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "user-1", "tok-a"))
	require.NoError(t, s.Register(ctx, "user-2", "tok-b"))

	tokens, err := s.Tokens(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-b"}, tokens)
}
