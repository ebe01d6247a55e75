package engine

import (
	"sync"
	"sync/atomic"
)

// Handle is the cancellation token of one execution. Each submission owns
// its own handle; nothing is shared between executions.
type Handle struct {
	id        string
	cancelled atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
}

func NewHandle(id string) *Handle {
	return &Handle{id: id, done: make(chan struct{})}
}

func (h *Handle) ID() string {
	return h.id
}

// Cancel asks the execution to stop at its next checkpoint. The step that is
// currently executing is not preempted.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done is closed once the execution has been finalized.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}
