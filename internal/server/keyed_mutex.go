package server

import "sync"

// keyedMutex serializes all mutating operations on the same room. The
// store has no per-record lock, so two handlers interleaving their
// read-modify-write cycles on one room would lose updates; holding the
// room's mutex across load-mutate-save makes each transition atomic
// within this process. Cross-process writers are caught by the store's
// CAS version instead.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*roomLock)}
}

// Lock acquires the mutex for key and returns its unlock func. Entries
// are reference counted so idle rooms don't accumulate locks.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &roomLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
