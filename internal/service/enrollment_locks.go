package service

import "sync"

// enrollmentLocks serializes scheduling work per enrollment. The pause
// quota check and the reschedule collision guard both need a consistent
// read of all occurrences for one enrollment, so every mutating
// scheduling operation takes the enrollment's lock for its duration.
type enrollmentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEnrollmentLocks() *enrollmentLocks {
	return &enrollmentLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for an enrollment and returns its unlock func.
func (l *enrollmentLocks) Lock(enrollmentID string) func() {
	l.mu.Lock()
	m, ok := l.locks[enrollmentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[enrollmentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
