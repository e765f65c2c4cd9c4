package service

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgredis "cadenza/backend/pkg/redis"
)

// GroupLocker 按课程加互斥锁，只在批准事务期间持有
// 谁赢由数据库行锁决定；这把锁只让同组并发批准在进入事务前排队
type GroupLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func lessonLockKey(lessonID string) string {
	return "substitution:lesson:" + lessonID
}

// ── 单机实现 ──

type keyedLock struct {
	ch   chan struct{}
	refs int
}

type localGroupLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
	wait  time.Duration
}

// NewLocalGroupLocker 进程内按 key 互斥；等待超过 wait 返回 ErrGroupBusy
func NewLocalGroupLocker(wait time.Duration) GroupLocker {
	return &localGroupLocker{locks: make(map[string]*keyedLock), wait: wait}
}

func (l *localGroupLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl, false)
		return nil, ctx.Err()
	case <-timer.C:
		l.release(key, kl, false)
		return nil, ErrGroupBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, kl, true) })
	}, nil
}

func (l *localGroupLocker) release(key string, kl *keyedLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// ── Redis 实现（多实例部署） ──

type redisLockClient interface {
	AcquireLock(ctx context.Context, key string, ttl, wait time.Duration) (func(), error)
}

type redisGroupLocker struct {
	client redisLockClient
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisGroupLocker 基于 SET NX PX 的分布式锁
func NewRedisGroupLocker(client redisLockClient, ttl, wait time.Duration) GroupLocker {
	return &redisGroupLocker{client: client, ttl: ttl, wait: wait}
}

func (l *redisGroupLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.client.AcquireLock(ctx, key, l.ttl, l.wait)
	if errors.Is(err, pkgredis.ErrLockTimeout) {
		return nil, ErrGroupBusy
	}
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(unlock) }, nil
}
