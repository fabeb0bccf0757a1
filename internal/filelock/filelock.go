// Package filelock serialises access to persisted files within the process.
//
// Two independent block trees may be backed by the same file. Acquire hands
// out one mutex per cleaned absolute path so that a load never observes a
// half-written save.
package filelock

import (
	"path/filepath"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

var (
	mu    sync.Mutex
	locks = make(map[string]*entry)
)

// Acquire blocks until the lock for path is held and returns its release
// function. Release must be called exactly once; defer it right away.
func Acquire(path string) (release func()) {
	key := normalize(path)

	mu.Lock()
	e, ok := locks[key]
	if !ok {
		e = &entry{}
		locks[key] = e
	}
	e.refs++
	mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(locks, key)
			}
			mu.Unlock()
		})
	}
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// held reports how many callers hold or wait for path. Used by tests.
func held(path string) int {
	mu.Lock()
	defer mu.Unlock()
	if e, ok := locks[normalize(path)]; ok {
		return e.refs
	}
	return 0
}
