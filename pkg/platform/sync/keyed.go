// Package sync provides a context-aware keyed lock for serialising work on
// one entity inside a single process.
package sync

import (
	"context"
	"sync"
)

// KeyedMutex locks by key. Holders of different keys never wait for each
// other. Each key is a one-slot semaphore so a waiter can give up when its
// context ends; a key's entry lives only while someone holds or waits on it.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (m *KeyedMutex) ref(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) unref(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Lock blocks until key is free or ctx ends.
func (m *KeyedMutex) Lock(ctx context.Context, key string) error {
	l := m.ref(key)
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.unref(key, l)
		return ctx.Err()
	}
}

// Acquire is Lock returning the matching release func.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	if err := m.Lock(ctx, key); err != nil {
		return nil, err
	}
	return func() { m.Unlock(key) }, nil
}

// TryLock takes key only if nobody holds it.
func (m *KeyedMutex) TryLock(key string) bool {
	l := m.ref(key)
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		m.unref(key, l)
		return false
	}
}

// Unlock releases key. Unlocking a free key panics, like sync.Mutex.
func (m *KeyedMutex) Unlock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	m.mu.Unlock()
	if ok {
		select {
		case <-l.sem:
			m.unref(key, l)
			return
		default:
		}
	}
	panic("sync: unlock of unlocked key")
}

// held reports how many keys are held or waited on.
func (m *KeyedMutex) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
