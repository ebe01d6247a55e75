// Package dispatch turns bus requests into engine executions and streams
// their progress back onto the bus.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/neuroassist/neuroassist/pkg/bus"
	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/engine"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

var ErrUnknownRequest = errors.New("unknown request kind")

// Submitter is the part of the engine the dispatcher drives.
type Submitter interface {
	Submit(ctx context.Context, raw string, opts ...engine.SubmitOption) *command.Execution
	RequestCancel(id string) error
}

type Dispatcher struct {
	bus    *bus.MessageBus
	engine Submitter
	pool   *WorkerPool

	mu      sync.Mutex
	handles map[string]*engine.Handle
}

func NewDispatcher(messageBus *bus.MessageBus, eng Submitter) *Dispatcher {
	return NewDispatcherWithQueue(messageBus, eng, defaultQueueSize)
}

// NewDispatcherWithQueue limits how many submissions each client may have
// waiting behind its running one.
func NewDispatcherWithQueue(messageBus *bus.MessageBus, eng Submitter, queue int) *Dispatcher {
	d := &Dispatcher{
		bus:     messageBus,
		engine:  eng,
		handles: map[string]*engine.Handle{},
	}
	d.pool = NewWorkerPoolWithQueue(d, queue)
	return d
}

// Run consumes requests until the bus closes or ctx ends. Cancellations are
// applied immediately; submissions queue behind the client's earlier ones.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.pool.Close()
	for {
		req, ok := d.bus.ConsumeRequest(ctx)
		if !ok {
			return nil
		}

		switch req.Kind {
		case bus.RequestSubmit:
			d.accept(ctx, req)
		case bus.RequestCancel:
			if err := d.Cancel(req.ExecutionID); err != nil {
				d.reply(ctx, req, bus.Event{Type: bus.EventError, ExecutionID: req.ExecutionID, Error: err.Error()})
			}
		default:
			d.reply(ctx, req, bus.Event{Type: bus.EventError, Error: fmt.Sprintf("%s: %q", ErrUnknownRequest, req.Kind)})
		}
	}
}

// Release drops the worker of a client that went away, along with the
// handles of its queued executions.
func (d *Dispatcher) Release(clientID string) {
	dropped := d.pool.Release(clientID)
	for _, req := range dropped {
		d.forget(req.ExecutionID)
	}
	if len(dropped) > 0 {
		logger.InfoCF("dispatch", "Dropped queued commands", map[string]interface{}{
			"client_id": clientID,
			"count":     len(dropped),
		})
	}
}

// Cancel stops a queued or running execution.
func (d *Dispatcher) Cancel(executionID string) error {
	d.mu.Lock()
	h, ok := d.handles[executionID]
	d.mu.Unlock()
	if ok {
		h.Cancel()
		logger.InfoCF("dispatch", "Cancellation requested", map[string]interface{}{"execution_id": executionID})
		return nil
	}
	return d.engine.RequestCancel(executionID)
}

func (d *Dispatcher) accept(ctx context.Context, req bus.Request) {
	if strings.TrimSpace(req.Command) == "" {
		d.reply(ctx, req, bus.Event{Type: bus.EventError, Error: "command is empty"})
		return
	}

	// Run is the only producer: a free slot seen here is still free at Dispatch.
	if d.pool.Full(req.ClientID) {
		d.reply(ctx, req, bus.Event{Type: bus.EventError, Error: ErrQueueFull.Error()})
		return
	}

	h := engine.NewHandle(uuid.NewString())
	d.mu.Lock()
	d.handles[h.ID()] = h
	d.mu.Unlock()

	req.ExecutionID = h.ID()
	// accepted goes out before the worker can publish any update
	d.reply(ctx, req, bus.Event{Type: bus.EventAccepted, ExecutionID: h.ID()})
	if err := d.pool.Dispatch(ctx, req.ClientID, req); err != nil {
		d.forget(h.ID())
		logger.ErrorCF("dispatch", "Failed to queue request", map[string]interface{}{
			"client_id": req.ClientID,
			"error":     err.Error(),
		})
		d.reply(ctx, req, bus.Event{Type: bus.EventError, ExecutionID: h.ID(), Error: err.Error()})
	}
}

// HandleRequest runs one submission on the client's worker.
func (d *Dispatcher) HandleRequest(ctx context.Context, req bus.Request) {
	d.mu.Lock()
	h, ok := d.handles[req.ExecutionID]
	d.mu.Unlock()
	if !ok {
		h = engine.NewHandle(req.ExecutionID)
	}
	defer d.forget(h.ID())

	logger.InfoCF("dispatch", "Running remote command", map[string]interface{}{
		"client_id":    req.ClientID,
		"execution_id": h.ID(),
	})

	exec := d.engine.Submit(ctx, req.Command,
		engine.WithHandle(h),
		engine.OnStepUpdate(func(snap *command.Execution, step *command.Step) {
			d.reply(ctx, req, bus.Event{Type: bus.EventUpdate, ExecutionID: snap.ID, Execution: snap, Step: step})
		}),
	)
	d.reply(ctx, req, bus.Event{Type: bus.EventFinal, ExecutionID: exec.ID, Execution: exec.Snapshot()})
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.handles, id)
	d.mu.Unlock()
}

func (d *Dispatcher) reply(ctx context.Context, req bus.Request, ev bus.Event) {
	ev.ClientID = req.ClientID
	ev.RequestID = req.RequestID
	if err := d.bus.PublishEvent(ctx, ev); err != nil && !errors.Is(err, bus.ErrBusClosed) {
		logger.WarnCF("dispatch", "Dropped event", map[string]interface{}{
			"client_id": req.ClientID,
			"type":      string(ev.Type),
			"error":     err.Error(),
		})
	}
}
