package usecase

import (
	"context"
	"fmt"
	"sync"
)

// IdentityLocker provides operation-level mutual exclusion per identity.
// It fully serializes history and quota mutations for one identity across
// concurrent Chat/SetPersona/ResetHistory calls.
type IdentityLocker struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu      sync.Mutex
	holders int // goroutines holding or waiting on this identity
}

// NewIdentityLocker creates a new identity locker.
func NewIdentityLocker() *IdentityLocker {
	return &IdentityLocker{
		locks: make(map[string]*identityLock),
	}
}

// Lock acquires the lock for the given identity. It blocks until the lock
// is acquired or the context is cancelled. Returns an unlock function that
// MUST be called when the operation is complete.
func (l *IdentityLocker) Lock(ctx context.Context, identity string) (unlock func(), err error) {
	l.mu.Lock()
	il, ok := l.locks[identity]
	if !ok {
		il = &identityLock{}
		l.locks[identity] = il
	}
	il.holders++
	l.mu.Unlock()

	// Acquire in a goroutine so the wait stays cancellable.
	acquired := make(chan struct{})
	go func() {
		il.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { l.release(identity, il) }, nil

	case <-ctx.Done():
		// The acquiring goroutine will still get the mutex eventually;
		// release it as soon as that happens so the identity is not
		// blocked forever.
		go func() {
			<-acquired
			l.release(identity, il)
		}()
		return nil, fmt.Errorf("identity lock: %w", ctx.Err())
	}
}

// release unlocks the identity mutex, drops one holder, and removes the
// entry once nobody holds or waits on it.
func (l *IdentityLocker) release(identity string, il *identityLock) {
	il.mu.Unlock()
	l.mu.Lock()
	il.holders--
	if il.holders == 0 {
		delete(l.locks, identity)
	}
	l.mu.Unlock()
}

// ActiveCount returns the number of identities with active or pending locks.
// Intended for testing.
func (l *IdentityLocker) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Holders reports how many goroutines currently hold or wait on the lock
// for identity. Zero means the identity is idle.
func (l *IdentityLocker) Holders(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if il, ok := l.locks[identity]; ok {
		return il.holders
	}
	return 0
}
