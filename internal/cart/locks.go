package cart

import "sync"

// lockTable hands out one mutex per key so concurrent mutations of the same
// cart line queue up instead of superseding each other. Later arrivals wait;
// they are never dropped.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the key's lock is free and returns its release func.
func (lt *lockTable) acquire(key string) func() {
	lt.mu.Lock()
	l, ok := lt.locks[key]
	if !ok {
		l = &sync.Mutex{}
		lt.locks[key] = l
	}
	lt.mu.Unlock()

	l.Lock()
	return l.Unlock
}
