package server

import (
	"fmt"
	"sync"
)

// pairLocks serializes store writes for one conversation at a time. Entries
// are dropped once no goroutine holds or waits on them.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*pairLock)}
}

func pairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// lock acquires the lock for the unordered pair (a, b) and returns its release.
func (pl *pairLocks) lock(a, b int) func() {
	key := pairKey(a, b)

	pl.mu.Lock()
	l, ok := pl.locks[key]
	if !ok {
		l = &pairLock{}
		pl.locks[key] = l
	}
	l.refs++
	pl.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		pl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(pl.locks, key)
		}
		pl.mu.Unlock()
	}
}

func (pl *pairLocks) size() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.locks)
}
