package utils

import (
	"strconv"
	"sync"
)

type refLock struct {
	mu   sync.Mutex
	refs int
}

var playerLocks = struct {
	mu sync.Mutex
	m  map[string]*refLock
}{m: make(map[string]*refLock)}

// LockPlayer serializes wallet work for one player inside this process and
// returns the unlock func. Entries are dropped once nobody holds or waits on them.
func LockPlayer(playerID int64) func() {
	return LockKey(strconv.FormatInt(playerID, 10))
}

// LockKey is LockPlayer for arbitrary keys.
func LockKey(key string) func() {
	playerLocks.mu.Lock()
	l, ok := playerLocks.m[key]
	if !ok {
		l = &refLock{}
		playerLocks.m[key] = l
	}
	l.refs++
	playerLocks.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		playerLocks.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(playerLocks.m, key)
		}
		playerLocks.mu.Unlock()
	}
}

// heldLocks is used by tests to check cleanup.
func heldLocks() int {
	playerLocks.mu.Lock()
	defer playerLocks.mu.Unlock()
	return len(playerLocks.m)
}
