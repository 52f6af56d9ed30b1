// Package worker implements the per-alias serial dispatcher: a single
// long-lived goroutine that drains a multi-producer/single-consumer channel
// of Requests in strict enqueue order, giving every alias single-writer
// semantics regardless of how many goroutines call the Facade concurrently.
package worker

import (
	"context"
	"sync"

	"github.com/crossdeck/odm/internal/backend"
	"github.com/crossdeck/odm/internal/model"
	"github.com/crossdeck/odm/internal/odmerr"
	"github.com/crossdeck/odm/internal/value"
)

// Op identifies the operation a Request carries.
type Op int

const (
	OpCreate Op = iota
	OpFindByID
	OpFind
	OpUpdate
	OpUpdateByID
	OpDelete
	OpDeleteByID
	OpCount
	OpExists
	OpCreateTable
	OpCreateIndex
	OpTableExists
	OpDropTable
)

// Request is one unit of work enqueued on an alias's worker. Reply is a
// one-shot channel: the worker sends exactly one Response then never
// touches it again.
type Request struct {
	ID          string
	Op          Op
	Collection  string
	Payload     any
	BypassCache bool
	Ctx         context.Context
	Reply       chan Response
}

// Response is the outcome of one Request. Exactly one of Value/Err is
// meaningful.
type Response struct {
	OK          bool
	Value       value.Value
	Records     []map[string]value.Value
	Count       int64
	Err         error
	Diagnostics string
}

// Payload shapes carried by Request.Payload, one per Op. The alias
// directory's Handler type-switches on these; the worker itself never
// inspects Payload.
type (
	CreatePayload struct {
		Record backend.Record
	}
	FindByIDPayload struct {
		ID value.Value
	}
	FindPayload struct {
		Conditions []backend.QueryCondition
		Opts       backend.FindOptions
	}
	UpdatePayload struct {
		Conditions []backend.QueryCondition
		Patch      backend.Record
	}
	UpdateByIDPayload struct {
		ID    value.Value
		Patch backend.Record
	}
	DeleteByIDPayload struct {
		ID value.Value
	}
	ConditionsPayload struct {
		Conditions []backend.QueryCondition
	}
	CreateTablePayload struct {
		Meta *model.ModelMeta
	}
	CreateIndexPayload struct {
		Name   string
		Fields []string
		Unique bool
	}
)

// Handler executes one Request against a live backend connection. It is
// supplied by the alias directory, which owns the adapter and pool the
// handler closes over; the worker itself knows nothing about backends.
type Handler func(ctx context.Context, req *Request) Response

// Worker serializes all requests for one alias onto a single consumer
// goroutine. The queue is a buffered channel rather than truly unbounded:
// when full, Enqueue fails fast with QueueFull instead of blocking
// indefinitely, per the "soft cap" backpressure policy.
type Worker struct {
	alias   string
	queue   chan *Request
	handler Handler

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// New starts a worker for alias with the given queue capacity and request
// handler. The consumer goroutine is started immediately.
func New(alias string, capacity int, handler Handler) *Worker {
	w := &Worker{
		alias:   alias,
		queue:   make(chan *Request, capacity),
		handler: handler,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for req := range w.queue {
		w.process(req)
	}
}

func (w *Worker) process(req *Request) {
	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	resp := w.handler(ctx, req)
	select {
	case req.Reply <- resp:
	default:
		// Reply channel has no reader (caller dropped it, e.g. on
		// cancellation): the response is simply discarded.
	}
}

// Enqueue submits req for processing and returns immediately. It fails with
// QueueFull if the queue is at capacity, rather than blocking the caller.
func (w *Worker) Enqueue(req *Request) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return odmerr.New(odmerr.KindAliasNotFound, "worker is shutting down").WithAlias(w.alias)
	}
	select {
	case w.queue <- req:
		return nil
	default:
		return odmerr.New(odmerr.KindQueueFull, "worker queue is full").WithAlias(w.alias)
	}
}

// Submit is a convenience wrapper around Enqueue that blocks for the
// response (or context cancellation), the shape every Facade operation
// actually uses.
func (w *Worker) Submit(ctx context.Context, req *Request) (Response, error) {
	req.Ctx = ctx
	req.Reply = make(chan Response, 1)
	if err := w.Enqueue(req); err != nil {
		return Response{}, err
	}
	select {
	case resp := <-req.Reply:
		if !resp.OK && resp.Err != nil {
			return resp, resp.Err
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, odmerr.Wrap(odmerr.KindCancelled, ctx.Err(), "request cancelled before reply").WithAlias(w.alias)
	}
}

// Close stops accepting new requests and drains everything already queued
// before returning: the channel closes to new sends, the worker drains
// pending requests, then terminates.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	<-w.done
}
