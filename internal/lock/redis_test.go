package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedToken() string { return "token-1" }

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, WithTokenGenerator(fixedToken))

	mock.ExpectSetNX("resale:lock:sweeper", "token-1", 30*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"resale:lock:sweeper"}, "token-1").SetVal(int64(1))

	lease, ok, err := locker.Acquire(context.Background(), "sweeper", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lease.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_HeldByAnotherReplica(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, WithPrefix("test:"), WithTokenGenerator(fixedToken))

	mock.ExpectSetNX("test:sweeper", "token-1", time.Minute).SetVal(false)

	lease, ok, err := locker.Acquire(context.Background(), "sweeper", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, lease)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_ReleaseAfterExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, WithTokenGenerator(fixedToken))

	mock.ExpectSetNX("resale:lock:sweeper", "token-1", time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"resale:lock:sweeper"}, "token-1").SetVal(int64(0))

	lease, ok, err := locker.Acquire(context.Background(), "sweeper", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.ErrorIs(t, lease.Release(context.Background()), ErrNotHeld)
}

func TestRedisLocker_AcquireError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, WithTokenGenerator(fixedToken))

	mock.ExpectSetNX("resale:lock:sweeper", "token-1", time.Second).SetErr(errors.New("connection refused"))

	_, ok, err := locker.Acquire(context.Background(), "sweeper", time.Second)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "connection refused")
}
