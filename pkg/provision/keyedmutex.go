package provision

import "sync"

// keyedMutex serializes work per key. The hosting substrate here offers no
// single-active-instance-per-tenant guarantee, so the executor takes a
// per-tenant lock for the duration of a resume.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function. Entries
// are kept for the process lifetime; the key space is one entry per tenant.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}

	k.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
