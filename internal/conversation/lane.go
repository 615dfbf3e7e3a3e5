package conversation

import "sync"

// LaneLock provides per-session serialization: messages within the same
// session are processed one at a time, while different sessions proceed
// concurrently.
//
// A global mutex protects the lane map; each lane carries its own mutex for
// intra-session serialization. The global mutex is held only briefly to
// look up or create the per-session mutex.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// lane stores per-session synchronization metadata. refs counts goroutines
// that acquired (or are waiting on) the lane; stale marks lanes eligible
// for cleanup once refs drops to zero.
type lane struct {
	mu    sync.Mutex
	refs  int
	stale bool
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{
		lanes: make(map[string]*lane),
	}
}

// Acquire gets or creates the per-session mutex and locks it.
// The caller must call Release with the same session ID when done.
func (l *LaneLock) Acquire(sessionID string) {
	l.mu.Lock()
	ln, ok := l.lanes[sessionID]
	if !ok {
		ln = &lane{}
		l.lanes[sessionID] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	// Lock outside the global mutex so other sessions are not blocked.
	ln.mu.Lock()
}

// Release unlocks the per-session mutex for the given session ID.
// The caller must have previously called Acquire with the same ID.
func (l *LaneLock) Release(sessionID string) {
	l.mu.Lock()
	ln, ok := l.lanes[sessionID]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	deleteNow := ln.refs == 0 && ln.stale
	if deleteNow {
		delete(l.lanes, sessionID)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Cleanup removes lane entries for sessions that are no longer live.
// activeIDs should contain only the IDs of currently live sessions.
// Prevents unbounded growth of the lane map over time.
func (l *LaneLock) Cleanup(activeIDs map[string]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ln := range l.lanes {
		if _, active := activeIDs[id]; !active {
			ln.stale = true
			if ln.refs == 0 {
				delete(l.lanes, id)
			}
			continue
		}
		ln.stale = false
	}
}
