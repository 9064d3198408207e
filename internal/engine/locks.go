package engine

import "sync"

// DayLocks serializes mutations per day id. TryLock never blocks; a
// rebuild that loses the race reports the conflict to its caller
// instead of queueing behind the winner.
type DayLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewDayLocks() *DayLocks {
	return &DayLocks{held: make(map[string]bool)}
}

func (l *DayLocks) TryLock(dayID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[dayID] {
		return false
	}
	l.held[dayID] = true
	return true
}

func (l *DayLocks) Unlock(dayID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, dayID)
}
