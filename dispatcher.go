package mongolog

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Dispatcher moves documents off the logging goroutine. Accept places the
// document in a queue, and worker goroutines pass queued documents to the
// wrapped Sink, typically a BatchWriter. Errors returned by the wrapped Sink
// are written to the internal logger, never back into the logging pipeline.
type Dispatcher struct {
	opts    *DispatcherOptions
	sink    Sink
	workers []*dispatchWorker
	wg      *sync.WaitGroup
	queue   chan bson.Raw

	// mu guards closed and the queue's closing; Accept holds the read lock
	// while sending
	mu     sync.RWMutex
	closed bool
}

type dispatchWorker struct {
	id      int
	verbose bool
	sink    Sink
	wg      *sync.WaitGroup
	queue   chan bson.Raw
}

var _ Sink = (*Dispatcher)(nil)

// NewDispatcher starts the workers and returns the Dispatcher. If opts is nil,
// the default options are used.
func NewDispatcher(sink Sink, opts *DispatcherOptions) *Dispatcher {
	if opts == nil {
		opts = DefaultDispatcherOptions()
	} else {
		opts.resolve()
	}

	d := &Dispatcher{
		opts:    opts,
		sink:    sink,
		workers: make([]*dispatchWorker, opts.Concurrency),
		wg:      &sync.WaitGroup{},
		queue:   make(chan bson.Raw, opts.QueueDepth),
	}

	d.debug("starting Dispatcher with the resolved DispatcherOptions: %+v", opts)

	// add workers and track concurrency
	d.wg.Add(opts.Concurrency)
	for i := 0; i < opts.Concurrency; i++ {
		d.workers[i] = &dispatchWorker{
			id:      i + 1,
			verbose: opts.Verbose,
			sink:    sink,
			wg:      d.wg,
			queue:   d.queue,
		}
		go d.workers[i].run()
	}

	return d
}

func (w *dispatchWorker) run() {
	defer w.wg.Done()

	// loop until the queue closes
	for doc := range w.queue {
		if err := w.sink.Accept(context.Background(), doc); err != nil {
			w.reportError("failed to write document: %v", err)
		}
	}

	w.debug("queue closed; returning from worker goroutine")
}

// Accept places the document into the queue.
//
// This operation is sync/blocking when:
//   - the QueueDepth is 0, or
//   - the queue is full and DropIfQueueFull is false
//
// This operation is async/non-blocking when:
//   - QueueDepth > 0, and
//   - the queue is not full, or DropIfQueueFull is true
//
// A blocked Accept returns early with the context's error if ctx is done.
// After Close, Accept returns ErrClosed.
func (d *Dispatcher) Accept(ctx context.Context, doc bson.Raw) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	if d.opts.DropIfQueueFull {
		select {
		case d.queue <- doc:
			return nil
		default:
			d.debug("full queue: dropping document: queue depth: %d", d.opts.QueueDepth)
			return ErrQueueFull
		}
	}

	// otherwise block if the queue is full
	select {
	case d.queue <- doc:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is used to support graceful shutdown. It closes the queue, so any
// further calls to Accept return ErrClosed. Close waits for Accept calls
// already blocked on a full queue, then blocks until the queue is fully
// drained and all workers have stopped, or the context expires, whichever
// occurs first, and then closes the wrapped Sink. Later calls return nil.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.debug("queue closed; passing on previously enqueued documents")

	doneCh := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		return errors.Join(ctx.Err(), d.sink.Close(ctx))
	case <-doneCh:
		d.debug("queue successfully drained")
		return d.sink.Close(ctx)
	}
}

// internal logging helpers:
func (d *Dispatcher) debug(format string, args ...any) {
	if !d.opts.Verbose {
		return
	}
	InternalLogger().Printf("dispatcher: "+format, args...)
}

func (w *dispatchWorker) debug(format string, args ...any) {
	if !w.verbose {
		return
	}
	args = append([]any{w.id}, args...)
	InternalLogger().Printf("dispatcher worker %d: "+format, args...)
}

func (w *dispatchWorker) reportError(format string, args ...any) {
	args = append([]any{w.id}, args...)
	InternalLogger().Printf("dispatcher worker %d: "+format, args...)
}
