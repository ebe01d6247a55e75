package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/neuroassist/neuroassist/pkg/bus"
)

const defaultQueueSize = 64

// ErrQueueFull is returned when a client already has the maximum number of
// requests waiting.
var ErrQueueFull = errors.New("client queue is full")

type requestHandler interface {
	HandleRequest(context.Context, bus.Request)
}

type workerEntry struct {
	inbound chan bus.Request
	cancel  context.CancelFunc
}

// WorkerPool keeps one sequential worker per client so that commands from
// the same client run in submission order while different clients proceed
// independently.
type WorkerPool struct {
	mu      sync.Mutex
	workers map[string]*workerEntry
	closed  bool
	wg      sync.WaitGroup
	handler requestHandler
	queue   int
}

func NewWorkerPool(handler requestHandler) *WorkerPool {
	return NewWorkerPoolWithQueue(handler, defaultQueueSize)
}

func NewWorkerPoolWithQueue(handler requestHandler, queue int) *WorkerPool {
	if queue < 1 {
		queue = 1
	}
	return &WorkerPool{
		workers: map[string]*workerEntry{},
		handler: handler,
		queue:   queue,
	}
}

// Dispatch queues req on the client's worker without blocking. A client
// whose queue is full gets ErrQueueFull.
func (p *WorkerPool) Dispatch(ctx context.Context, clientID string, req bus.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, err := p.getOrCreate(clientID)
	if err != nil {
		return err
	}

	select {
	case entry.inbound <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Full reports whether the client's queue has no free slot.
func (p *WorkerPool) Full(clientID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.workers[clientID]
	return ok && len(e.inbound) >= cap(e.inbound)
}

func (p *WorkerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Release stops the worker of a disconnected client. Its running execution
// sees a cancelled context; the requests still queued are returned.
func (p *WorkerPool) Release(clientID string) []bus.Request {
	p.mu.Lock()
	entry, ok := p.workers[clientID]
	if ok {
		delete(p.workers, clientID)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	entry.cancel()

	var dropped []bus.Request
	for {
		select {
		case req := <-entry.inbound:
			dropped = append(dropped, req)
		default:
			return dropped
		}
	}
}

func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true

	entries := make([]*workerEntry, 0, len(p.workers))
	for _, e := range p.workers {
		entries = append(entries, e)
	}
	p.workers = map[string]*workerEntry{}
	p.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
	p.wg.Wait()
}

func (p *WorkerPool) getOrCreate(clientID string) (*workerEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("worker pool is closed")
	}

	if e, ok := p.workers[clientID]; ok {
		return e, nil
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	entry := &workerEntry{
		inbound: make(chan bus.Request, p.queue),
		cancel:  cancel,
	}
	p.workers[clientID] = entry

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case req := <-entry.inbound:
				p.handler.HandleRequest(workerCtx, req)
			}
		}
	}()

	return entry, nil
}
