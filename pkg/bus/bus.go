// Package bus carries remote requests to the dispatcher and execution
// events back to the front end.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrBusClosed = errors.New("message bus closed")

const defaultCapacity = 100

type MessageBus struct {
	requests chan Request
	events   chan Event
	done     chan struct{}
	closed   atomic.Bool
}

func NewMessageBus() *MessageBus {
	return NewMessageBusWithCapacity(defaultCapacity)
}

func NewMessageBusWithCapacity(capacity int) *MessageBus {
	if capacity < 1 {
		capacity = defaultCapacity
	}
	return &MessageBus{
		requests: make(chan Request, capacity),
		events:   make(chan Event, capacity),
		done:     make(chan struct{}),
	}
}

func (mb *MessageBus) PublishRequest(ctx context.Context, req Request) error {
	if err := mb.publishStateErr(ctx); err != nil {
		return err
	}
	select {
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	case mb.requests <- req:
		return nil
	}
}

// ConsumeRequest blocks for the next request. ok is false once the bus is
// closed or ctx ends.
func (mb *MessageBus) ConsumeRequest(ctx context.Context) (Request, bool) {
	select {
	case req, ok := <-mb.requests:
		return req, ok
	case <-mb.done:
		return Request{}, false
	case <-ctx.Done():
		return Request{}, false
	}
}

func (mb *MessageBus) PublishEvent(ctx context.Context, ev Event) error {
	if err := mb.publishStateErr(ctx); err != nil {
		return err
	}
	select {
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	case mb.events <- ev:
		return nil
	}
}

func (mb *MessageBus) ConsumeEvent(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-mb.events:
		return ev, ok
	case <-mb.done:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

func (mb *MessageBus) publishStateErr(ctx context.Context) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	return ctx.Err()
}

func (mb *MessageBus) Closed() bool {
	return mb.closed.Load()
}

func (mb *MessageBus) Close() {
	if mb.closed.CompareAndSwap(false, true) {
		close(mb.done)
	}
}
