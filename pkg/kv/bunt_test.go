package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuntStoreRoundTrip(t *testing.T) {
	s, err := OpenBunt(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "theme", "dark", 0))
	v, err := s.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	require.NoError(t, s.Del(ctx, "theme"))
	require.NoError(t, s.Del(ctx, "theme"))
	_, err = s.Get(ctx, "theme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuntStoreTakeConsumesOnce(t *testing.T) {
	s, err := OpenBunt(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "otp:abc", "a@b.co", time.Minute))
	v, err := s.Take(ctx, "otp:abc")
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", v)

	_, err = s.Take(ctx, "otp:abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuntStoreExpiry(t *testing.T) {
	s, err := OpenBunt(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", "v", 20*time.Millisecond))
	time.Sleep(60 * time.Millisecond)
	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}
