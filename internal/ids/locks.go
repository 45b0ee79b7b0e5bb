package ids

import "sync"

// Locks serializes number assignment per project. Reading the current MAX
// and inserting the incremented number is a read-then-write race under
// concurrent requests; holding the project's lock across both steps makes
// the sequence gap-free within one process.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the named key and returns the release function.
func (l *Locks) Acquire(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
