// Package stream provides the one-writer, many-reader text channel used to
// surface partial assistant output while it is being generated.
package stream

import (
	"errors"
	"strings"
	"sync"
)

// ErrDone is returned by Update or Done when the stream has already been
// finalized. Writing after the terminal transition is a usage error.
var ErrDone = errors.New("stream: already done")

// Text is an append-then-finalize text buffer. Exactly one writer calls
// Update any number of times followed by Done (or Fail) exactly once.
// Readers observe a monotonically growing prefix via Snapshot until the
// terminal transition, after which the value is immutable.
type Text struct {
	mu      sync.Mutex
	buf     strings.Builder
	done    bool
	err     error
	doneCh  chan struct{}
	waiters []chan struct{}
}

// NewText creates an empty, open text stream.
func NewText() *Text {
	return &Text{doneCh: make(chan struct{})}
}

// Update appends a delta to the buffer and wakes blocked readers.
// It returns ErrDone if the stream has been finalized.
func (t *Text) Update(delta string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrDone
	}
	t.buf.WriteString(delta)
	t.notifyLocked()
	return nil
}

// Done marks the stream terminal. It must be called exactly once;
// a second call returns ErrDone.
func (t *Text) Done() error {
	return t.finish(nil)
}

// Fail marks the stream terminal with an error. Readers that drained the
// buffer can inspect Err to distinguish completion from mid-stream failure.
func (t *Text) Fail(err error) error {
	return t.finish(err)
}

func (t *Text) finish(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrDone
	}
	t.done = true
	t.err = err
	close(t.doneCh)
	t.notifyLocked()
	return nil
}

// Snapshot returns the current buffer content and whether the stream is done.
func (t *Text) Snapshot() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String(), t.done
}

// Err returns the failure recorded by Fail, or nil. Meaningful only after
// the terminal transition.
func (t *Text) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// DoneCh returns a channel that is closed on the terminal transition.
// Every reader observes the close exactly once.
func (t *Text) DoneCh() <-chan struct{} {
	return t.doneCh
}

// Changed returns a channel that is closed once the stream has grown beyond
// seen bytes or has been finalized. A reader that has observed a snapshot of
// length seen can select on it to wait for the next observable state.
func (t *Text) Changed(seen int) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan struct{})
	if t.buf.Len() > seen || t.done {
		close(ch)
		return ch
	}
	t.waiters = append(t.waiters, ch)
	return ch
}

// notifyLocked wakes all blocked readers. Callers must hold t.mu.
func (t *Text) notifyLocked() {
	for _, ch := range t.waiters {
		close(ch)
	}
	t.waiters = nil
}
