package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	id "visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// Locker serializes engine operations per user. Operations for different
// users run concurrently; two operations for the same user never overlap.
type Locker interface {
	// Acquire blocks until the per-user lock is held or ctx is done. The
	// returned release function must be called exactly once.
	Acquire(ctx context.Context, userID id.UserID) (release func(), err error)
}

// KeyedMutex is the in-process locker used when Redis is not configured.
// Entries are reference-counted so the map does not grow with user count.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[id.UserID]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty in-process locker.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[id.UserID]*keyedLock)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, userID id.UserID) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[userID]
	if !ok {
		entry = &keyedLock{}
		k.locks[userID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		entry.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine still holds or will hold the mutex; release it
		// once acquired so waiters are not wedged.
		go func() {
			<-acquired
			k.release(userID, entry)
		}()
		return nil, ctx.Err()
	}

	return func() { k.release(userID, entry) }, nil
}

func (k *KeyedMutex) release(userID id.UserID, entry *keyedLock) {
	entry.mu.Unlock()
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, userID)
	}
	k.mu.Unlock()
}

// RedisLocker serializes per-user operations across replicas with a
// SET NX PX lease. Release compares the lease token before deleting so an
// expired lock held by another replica is never clobbered.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a distributed locker with the given lease TTL.
func NewRedisLocker(client *goredis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Acquire(ctx context.Context, userID id.UserID) (func(), error) {
	key := "interview:lock:" + userID.String()
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire interview lock: %w: %w", sentinel.ErrUnavailable, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
