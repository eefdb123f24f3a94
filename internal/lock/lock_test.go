package lock

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGateTryAcquire(t *testing.T) {
	g := NewGate()

	if !g.TryAcquire() {
		t.Fatal("expected to acquire free gate")
	}
	if g.TryAcquire() {
		t.Fatal("acquired gate twice")
	}

	g.Release()

	if !g.TryAcquire() {
		t.Fatal("expected to acquire released gate")
	}
	g.Release()
}

func TestGateReleaseUnheld(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on release of unheld gate")
		}
	}()
	NewGate().Release()
}

func TestGateConcurrent(t *testing.T) {
	g := NewGate()

	var acquired atomic.Int32
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAcquire() {
				acquired.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := acquired.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}
