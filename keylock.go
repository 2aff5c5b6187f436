package blobkeep

import "sync"

// keyLock serializes work on the same key while leaving different keys
// independent. Entries are created on first use and dropped once no
// goroutine holds or waits for them.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	sync.RWMutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyLockEntry)}
}

func (l *keyLock) acquire(key string) *keyLockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &keyLockEntry{}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *keyLock) release(key string, e *keyLockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock takes the exclusive side for key and returns the matching unlock.
func (l *keyLock) Lock(key string) (unlock func()) {
	e := l.acquire(key)
	e.Lock()
	return func() {
		e.Unlock()
		l.release(key, e)
	}
}

// RLock takes the shared side for key and returns the matching unlock.
func (l *keyLock) RLock(key string) (unlock func()) {
	e := l.acquire(key)
	e.RLock()
	return func() {
		e.RUnlock()
		l.release(key, e)
	}
}

// size returns the number of live entries.
func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
