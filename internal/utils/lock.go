package utils

import "sync"

// RWLock is a reader/writer lock that can be switched off at construction for types whose
// callers already serialize access. The zero value is switched off. RWLock holds a pointer, so
// copying it shares the underlying lock.
type RWLock struct {
	mutex *sync.RWMutex
}

func NewRWLock(enabled bool) RWLock {
	if !enabled {
		return RWLock{}
	}
	return RWLock{mutex: &sync.RWMutex{}}
}

// Enabled reports whether the lock actually locks
func (l RWLock) Enabled() bool {
	return l.mutex != nil
}

func (l RWLock) Lock() {
	if l.mutex != nil {
		l.mutex.Lock()
	}
}

func (l RWLock) Unlock() {
	if l.mutex != nil {
		l.mutex.Unlock()
	}
}

func (l RWLock) RLock() {
	if l.mutex != nil {
		l.mutex.RLock()
	}
}

func (l RWLock) RUnlock() {
	if l.mutex != nil {
		l.mutex.RUnlock()
	}
}
