//go:build integration

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "visaflow/pkg/domain"
	"visaflow/pkg/testutil/containers"
)

func TestRedisLocker_SerializesSameUser(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	locker := NewRedisLocker(rc.Client, 10*time.Second)
	ctx := context.Background()

	userID, err := id.ParseUserID(uuid.NewString())
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, userID)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "two holders overlapped for the same user")
}

func TestRedisLocker_ReleaseOnlyDeletesOwnLease(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	userID, err := id.ParseUserID(uuid.NewString())
	require.NoError(t, err)
	key := "interview:lock:" + userID.String()

	// A short-TTL lock expires while held; another locker then acquires.
	short := NewRedisLocker(rc.Client, 50*time.Millisecond)
	releaseExpired, err := short.Acquire(ctx, userID)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	long := NewRedisLocker(rc.Client, 10*time.Second)
	releaseCurrent, err := long.Acquire(ctx, userID)
	require.NoError(t, err)
	defer releaseCurrent()

	// Releasing the expired lease must not clobber the current holder.
	releaseExpired()
	val, err := rc.Client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.NotEmpty(t, val, "the current lease was deleted by a stale release")
}

func TestRedisLocker_AcquireHonorsContext(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	locker := NewRedisLocker(rc.Client, 10*time.Second)

	userID, err := id.ParseUserID(uuid.NewString())
	require.NoError(t, err)

	release, err := locker.Acquire(context.Background(), userID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, userID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
