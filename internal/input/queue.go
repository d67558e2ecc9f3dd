// Package input replaces per-frame key polling with an event queue: the host's
// input callback pushes transitions as they happen and the tick driver drains
// them once per tick.
package input

import (
	"sync"

	"keytrail/internal/eventlog"
)

// KeyTransition is one key state change reported by the host.
type KeyTransition struct {
	KeyID      string
	Transition eventlog.Transition
}

// Queue is safe for concurrent use by one or more producers and one consumer.
type Queue struct {
	mu      sync.Mutex
	pending []KeyTransition
	dropped int
	limit   int
}

// NewQueue returns a queue holding at most limit transitions between drains.
// A non-positive limit means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

// Push enqueues a transition. It reports false when the queue is full.
func (q *Queue) Push(t KeyTransition) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && len(q.pending) >= q.limit {
		q.dropped++
		return false
	}
	q.pending = append(q.pending, t)
	return true
}

// Press and Release are shorthands for Push.
func (q *Queue) Press(keyID string) bool {
	return q.Push(KeyTransition{KeyID: keyID, Transition: eventlog.Press})
}

func (q *Queue) Release(keyID string) bool {
	return q.Push(KeyTransition{KeyID: keyID, Transition: eventlog.Release})
}

// Drain returns everything queued since the last drain, in push order, and
// the number of transitions dropped because the queue was full.
func (q *Queue) Drain() ([]KeyTransition, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	dropped := q.dropped
	q.pending = nil
	q.dropped = 0
	return out, dropped
}

// Len returns the number of queued transitions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
