package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestLaneSerializesSameSession(t *testing.T) {
	t.Parallel()

	ll := NewLaneLock()

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ll.Acquire("sess")
			defer ll.Release("sess")

			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("max in-flight for one session = %d, want 1", maxInFlight)
	}
}

func TestLanesIndependentAcrossSessions(t *testing.T) {
	t.Parallel()

	ll := NewLaneLock()
	ll.Acquire("a")
	defer ll.Release("a")

	// A different session must not block behind "a".
	acquired := make(chan struct{})
	go func() {
		ll.Acquire("b")
		close(acquired)
		ll.Release("b")
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("session b blocked behind session a")
	}
}

func TestLaneCleanup(t *testing.T) {
	t.Parallel()

	ll := NewLaneLock()
	ll.Acquire("live")
	ll.Release("live")
	ll.Acquire("dead")
	ll.Release("dead")

	ll.Cleanup(map[string]struct{}{"live": {}})

	ll.mu.Lock()
	_, liveOK := ll.lanes["live"]
	_, deadOK := ll.lanes["dead"]
	ll.mu.Unlock()

	if !liveOK {
		t.Error("live lane removed")
	}
	if deadOK {
		t.Error("dead lane retained")
	}
}

func TestLaneCleanupDefersWhileHeld(t *testing.T) {
	t.Parallel()

	ll := NewLaneLock()
	ll.Acquire("busy")

	// Held lanes are marked stale, not deleted.
	ll.Cleanup(map[string]struct{}{})

	ll.mu.Lock()
	_, ok := ll.lanes["busy"]
	ll.mu.Unlock()
	if !ok {
		t.Fatal("held lane deleted during cleanup")
	}

	ll.Release("busy")

	ll.mu.Lock()
	_, ok = ll.lanes["busy"]
	ll.mu.Unlock()
	if ok {
		t.Error("stale lane retained after release")
	}
}
