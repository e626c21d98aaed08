package redisdb

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedis(t *testing.T) *Locker {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	logg := logrus.New()
	logg.SetOutput(io.Discard)

	rdb, err := Connect(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0, 1, logg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	return NewLocker(rdb)
}

func TestLocker_OnlyOneHolderUntilTTL(t *testing.T) {
	l := getRedis(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	ok, err := l.Obtain(ctx, key, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Obtain(ctx, key, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocker_ObtainAgainAfterExpiry(t *testing.T) {
	l := getRedis(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	ok, err := l.Obtain(ctx, key, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(250 * time.Millisecond)

	ok, err = l.Obtain(ctx, key, 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}
