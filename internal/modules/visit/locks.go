// README: Per-representative mutual exclusion for visit commands.
package visit

import (
	"sync"

	"fieldforce/internal/types"
)

// repLocks hands out one mutex per representative; entries are dropped once
// no goroutine holds or waits on them.
type repLocks struct {
	mu    sync.Mutex
	locks map[types.ID]*repLock
}

type repLock struct {
	sync.Mutex
	refs int
}

func newRepLocks() *repLocks {
	return &repLocks{locks: make(map[types.ID]*repLock)}
}

func (l *repLocks) lock(repID types.ID) (unlock func()) {
	l.mu.Lock()
	rl, ok := l.locks[repID]
	if !ok {
		rl = &repLock{}
		l.locks[repID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, repID)
		}
		l.mu.Unlock()
	}
}

func (l *repLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
