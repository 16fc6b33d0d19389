package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

var ErrReconcileInProgress = errors.New("reconciliation already running for this user")

// UserLocker serializes reconciliation per user. release must be called once.
type UserLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

func reconcileLockKey(userId string) string {
	return fmt.Sprintf("reconcile:%s", userId)
}

// RedisUserLocker holds the lock across instances.
type RedisUserLocker struct {
	Client *redislock.Client
	Retry  redislock.RetryStrategy
}

func NewRedisUserLocker(client *redislock.Client) *RedisUserLocker {
	return &RedisUserLocker{
		Client: client,
		Retry:  redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 10),
	}
}

func (l *RedisUserLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.Client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: l.Retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrReconcileInProgress
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

// LocalUserLocker serializes within one process; used when Redis is not configured.
type LocalUserLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalUserLocker() *LocalUserLocker {
	return &LocalUserLocker{held: map[string]chan struct{}{}}
}

// Lock waits for the current holder until ctx is done. ttl is not enforced.
func (l *LocalUserLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ErrReconcileInProgress
		}
	}
}

type noopUserLocker struct{}

func (noopUserLocker) Lock(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

// FallbackUserLocker uses Redis once a lock client is connected and the
// in-process locker until then.
type FallbackUserLocker struct {
	Redis func() *redislock.Client
	Local *LocalUserLocker
}

func NewFallbackUserLocker(redis func() *redislock.Client) *FallbackUserLocker {
	return &FallbackUserLocker{Redis: redis, Local: NewLocalUserLocker()}
}

func (l *FallbackUserLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.Redis != nil {
		if client := l.Redis(); client != nil {
			return NewRedisUserLocker(client).Lock(ctx, key, ttl)
		}
	}
	return l.Local.Lock(ctx, key, ttl)
}
