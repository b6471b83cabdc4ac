package session

import "sync"

// Locker serializes work per chat while letting different chats run in parallel
type Locker struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu      sync.Mutex
	waiters int
}

// NewLocker creates an empty locker
func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]*chatLock)}
}

// Lock blocks until chatID is free and returns its unlock function
func (l *Locker) Lock(chatID int64) func() {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{}
		l.locks[chatID] = cl
	}
	cl.waiters++
	l.mu.Unlock()

	cl.mu.Lock()

	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.waiters--
		if cl.waiters == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of chats currently holding or waiting for a lock
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
