package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	_, err = Connect(context.Background(), Options{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.ErrorContains(t, err, "ping redis at 127.0.0.1:1")
}

func TestSubmitLockerReleasesAfterRun(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewSubmitLocker(rdb, 5*time.Second)

	ran := false
	err := locker.WithLock(context.Background(), "booking:Dr. Lee:2025-03-10:09:00", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:booking:Dr. Lee:2025-03-10:09:00"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:booking:Dr. Lee:2025-03-10:09:00"))
}

func TestSubmitLockerRejectsSecondHolder(t *testing.T) {
	_, rdb := newTestClient(t)
	locker := NewSubmitLocker(rdb, 5*time.Second)

	err := locker.WithLock(context.Background(), "appointment:7", func(ctx context.Context) error {
		inner := locker.WithLock(ctx, "appointment:7", func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		assert.Equal(t, "This slot is currently being booked, please retry shortly",
			appointment.MessageOf(inner, "fallback"))
		return nil
	})
	require.NoError(t, err)
}

func TestSubmitLockerPropagatesError(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewSubmitLocker(rdb, 5*time.Second)

	boom := errors.New("backend said no")
	err := locker.WithLock(context.Background(), "appointment:9", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:appointment:9"))
}

func TestSubmitLockerKeepsForeignToken(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewSubmitLocker(rdb, 5*time.Second)

	err := locker.WithLock(context.Background(), "appointment:3", func(context.Context) error {
		// lock expired and someone else took it
		mr.Set("lock:appointment:3", "other-token")
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("lock:appointment:3")
	require.NoError(t, err)
	assert.Equal(t, "other-token", got)
}

func TestDirectoryCache(t *testing.T) {
	mr, rdb := newTestClient(t)
	cache := NewDirectoryCache(rdb, "http://localhost:8081", time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	dir := appointment.StaffDirectory{"Central": {"Cardiology": {"Dr. Lee"}}}
	require.NoError(t, cache.Set(ctx, dir))

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dir, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectoryCacheCorruptValue(t *testing.T) {
	mr, rdb := newTestClient(t)
	cache := NewDirectoryCache(rdb, "ns", time.Minute)
	mr.Set("directory:ns", "{not json")

	_, _, err := cache.Get(context.Background())
	assert.Error(t, err)
}
