package session

import (
	"context"
	"sync"
)

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// Locker serializes work per session while letting different sessions proceed
// in parallel. Entries are dropped once nobody holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*sessionLock),
	}
}

// Lock blocks until the session is free or ctx is done. The returned func
// releases the lock and is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, sessionID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lock.ch
				l.release(sessionID, lock)
			})
		}, nil
	case <-ctx.Done():
		l.release(sessionID, lock)
		return nil, ctx.Err()
	}
}

func (l *Locker) release(sessionID string, lock *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, sessionID)
	}
}

// Held reports how many sessions currently have holders or waiters.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
