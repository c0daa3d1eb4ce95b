package scheduler

import (
	"github.com/gantry-ci/gantry/agent"
)

// pendingEntry pairs a queued agent spec with its result handler. The queue
// exclusively owns entries until they are removed by a match or a
// cancellation.
type pendingEntry struct {
	spec    agent.Spec
	handler agent.ResultHandler
}

// requestQueue is a FIFO of pending agent requests. An offer may satisfy a
// request that is not at the head, so removal from any position is
// supported. Not safe for concurrent use; the scheduler's mutex guards it.
type requestQueue struct {
	entries []*pendingEntry
}

func newRequestQueue() *requestQueue {
	return &requestQueue{}
}

// push appends an entry at the tail.
func (q *requestQueue) push(e *pendingEntry) {
	q.entries = append(q.entries, e)
}

// remove drops the first entry with the given agent name and returns it,
// or nil when no such entry is queued.
func (q *requestQueue) remove(name string) *pendingEntry {
	for i, e := range q.entries {
		if e.spec.Name == name {
			return q.removeAt(i)
		}
	}
	return nil
}

// removeAt drops and returns the entry at index i, preserving the order of
// the remaining entries.
func (q *requestQueue) removeAt(i int) *pendingEntry {
	e := q.entries[i]
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return e
}

// contains reports whether an entry with the given agent name is queued.
func (q *requestQueue) contains(name string) bool {
	for _, e := range q.entries {
		if e.spec.Name == name {
			return true
		}
	}
	return false
}

func (q *requestQueue) len() int {
	return len(q.entries)
}
