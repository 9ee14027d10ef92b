package storage

import (
	"sync"

	"spendwise/internal/core"
)

// MonthLocker serializes writers per calendar month. Writers on disjoint
// months proceed in parallel; LockAll excludes every month writer.
type MonthLocker struct {
	global sync.RWMutex

	mu     sync.Mutex
	months map[core.Month]*monthLock
}

type monthLock struct {
	sync.Mutex
	refs int
}

func NewMonthLocker() *MonthLocker {
	return &MonthLocker{months: make(map[core.Month]*monthLock)}
}

// Lock acquires the given months in ascending order and returns the release
// function. Duplicate months are ignored.
func (l *MonthLocker) Lock(months []core.Month) (unlock func()) {
	ordered := core.SortMonths(append([]core.Month(nil), months...))

	l.global.RLock()
	held := make([]*monthLock, 0, len(ordered))
	for _, m := range ordered {
		ml := l.acquire(m)
		ml.Lock()
		held = append(held, ml)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			l.release(ordered[i])
		}
		l.global.RUnlock()
	}
}

// LockAll waits for in-flight month writers and blocks new ones.
func (l *MonthLocker) LockAll() (unlock func()) {
	l.global.Lock()
	return l.global.Unlock
}

func (l *MonthLocker) acquire(m core.Month) *monthLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	ml, ok := l.months[m]
	if !ok {
		ml = &monthLock{}
		l.months[m] = ml
	}
	ml.refs++
	return ml
}

func (l *MonthLocker) release(m core.Month) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ml := l.months[m]
	ml.refs--
	if ml.refs == 0 {
		delete(l.months, m)
	}
}

// size reports how many month locks are allocated.
func (l *MonthLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.months)
}
