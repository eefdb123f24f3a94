// Package lock provides mutex primitives used across git-uplink.
//
// Mutex and RWMutex are aliases for go-deadlock mutexes so that lock
// ordering issues surface during development without changing call sites.
// Gate is a non-blocking exclusive lock used for single-flight execution.
package lock

import (
	"github.com/sasha-s/go-deadlock"
)

type (
	Mutex   = deadlock.Mutex
	RWMutex = deadlock.RWMutex
)

// Gate allows at most one holder at a time. Unlike a mutex, acquisition
// never blocks; callers that lose the race are expected to drop their work
// rather than queue it.
type Gate struct {
	ch chan struct{}
}

func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

// TryAcquire reports whether the gate was acquired. A caller that gets
// true must call Release exactly once.
func (g *Gate) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the gate. Releasing an unheld gate panics as it indicates
// a programming error.
func (g *Gate) Release() {
	select {
	case <-g.ch:
	default:
		panic("lock: release of unheld gate")
	}
}
