package mongolog

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection is the part of *mongo.Collection used by the BatchWriter.
type Collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
}

var _ Collection = (*mongo.Collection)(nil)

// Sink receives serialized documents. Both the BatchWriter and the Dispatcher
// implement it.
type Sink interface {
	Accept(ctx context.Context, doc bson.Raw) error
	Close(ctx context.Context) error
}

// BatchWriter writes documents to a Collection, either one at a time or in
// unordered batches. It is safe for concurrent use: one mutex guards the
// pending batch and the flush clock across append, check and drain, and the
// insert itself runs without holding it.
type BatchWriter struct {
	opts *WriterOptions
	coll Collection
	now  func() time.Time

	mu        sync.Mutex
	pending   []bson.Raw
	lastFlush time.Time
	closed    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ Sink = (*BatchWriter)(nil)

// NewBatchWriter returns a BatchWriter for coll. If opts is nil, the default
// options are used, which write every document immediately.
func NewBatchWriter(coll Collection, opts *WriterOptions) *BatchWriter {
	return newBatchWriter(coll, opts, time.Now)
}

func newBatchWriter(coll Collection, opts *WriterOptions, now func() time.Time) *BatchWriter {
	if opts == nil {
		opts = DefaultWriterOptions()
	} else {
		opts.resolve()
	}

	w := &BatchWriter{
		opts:      opts,
		coll:      coll,
		now:       now,
		lastFlush: now(),
		stopCh:    make(chan struct{}),
	}

	w.debug("starting BatchWriter with the resolved WriterOptions: %+v", opts)

	if opts.buffered() {
		w.pending = make([]bson.Raw, 0, opts.BatchSize)
		if opts.BackgroundFlush {
			w.wg.Add(1)
			go w.run()
		}
	}

	return w
}

// Accept hands one document to the writer. In unbuffered mode the document is
// inserted before Accept returns. In buffered mode it is appended to the
// pending batch, and if that brings the batch to BatchSize documents, or
// FlushInterval has passed since the last flush, the whole batch is drained
// and inserted by this call.
//
// A failed insert is returned wrapped in ErrWrite. Documents of a failed batch
// are not requeued.
func (w *BatchWriter) Accept(ctx context.Context, doc bson.Raw) error {
	if !w.opts.buffered() {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return ErrClosed
		}
		return w.insertOne(ctx, doc)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.pending = append(w.pending, doc)
	var batch []bson.Raw
	if now := w.now(); w.due(now) {
		batch = w.drain(now)
	}
	w.mu.Unlock()

	if batch == nil {
		return nil
	}
	return w.insertMany(ctx, batch)
}

// Flush drains the pending batch and inserts it, regardless of its size or
// age. It is a no-op when nothing is pending.
func (w *BatchWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.drain(w.now())
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return w.insertMany(ctx, batch)
}

// Close stops the background flush loop, if any, and inserts whatever is
// still pending. Further calls to Accept return ErrClosed. Close does not
// disconnect the Collection's client.
func (w *BatchWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()

	w.debug("BatchWriter closed; writing out pending documents")
	return w.Flush(ctx)
}

// Pending returns the number of documents waiting for the next flush.
func (w *BatchWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// due reports whether the pending batch must be flushed. The caller must hold
// w.mu. A clock reading before lastFlush counts as not elapsed.
func (w *BatchWriter) due(now time.Time) bool {
	if len(w.pending) >= w.opts.BatchSize {
		return true
	}
	elapsed := now.Sub(w.lastFlush)
	return elapsed > 0 && elapsed >= w.opts.FlushInterval
}

// drain empties the pending batch and restarts the flush clock, before the
// write is issued, so that records arriving during a slow write do not
// trigger redundant flushes. The caller must hold w.mu.
func (w *BatchWriter) drain(now time.Time) []bson.Raw {
	w.lastFlush = now
	if len(w.pending) == 0 {
		return nil
	}
	batch := w.pending
	w.pending = make([]bson.Raw, 0, w.opts.BatchSize)
	return batch
}

// run flushes idle batches once FlushInterval has passed, until Close.
func (w *BatchWriter) run() {
	defer w.wg.Done()

	t := time.NewTicker(w.opts.FlushInterval)
	defer t.Stop()

	for {
		select {
		case <-w.stopCh:
			w.debug("stopping background flush loop")
			return
		case <-t.C:
			w.mu.Lock()
			var batch []bson.Raw
			if now := w.now(); len(w.pending) > 0 && w.due(now) {
				batch = w.drain(now)
			}
			w.mu.Unlock()

			if batch == nil {
				continue
			}
			w.debug("background flush of %d documents", len(batch))
			if err := w.insertMany(context.Background(), batch); err != nil {
				w.reportError("background flush failed: %v", err)
			}
		}
	}
}

// writeContext detaches the write from the caller's cancellation and bounds
// it by WriteTimeout instead.
func (w *BatchWriter) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if w.opts.WriteTimeout > 0 {
		return context.WithTimeout(ctx, w.opts.WriteTimeout)
	}
	return context.WithCancel(ctx)
}

func (w *BatchWriter) insertOne(ctx context.Context, doc bson.Raw) error {
	ctx, cancel := w.writeContext(ctx)
	defer cancel()

	if _, err := w.coll.InsertOne(ctx, doc); err != nil {
		w.dropped([]bson.Raw{doc}, err)
		return writeError("InsertOne", 1, err)
	}
	return nil
}

// insertMany writes the batch unordered, so that the server keeps inserting
// the remaining documents after rejecting one.
func (w *BatchWriter) insertMany(ctx context.Context, batch []bson.Raw) error {
	ctx, cancel := w.writeContext(ctx)
	defer cancel()

	w.debug("flushing %d documents", len(batch))

	_, err := w.coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	if err != nil {
		w.dropped(batch, err)
		return writeError("InsertMany", len(batch), err)
	}
	return nil
}

func (w *BatchWriter) dropped(docs []bson.Raw, err error) {
	w.debug("write failed; dropping %d documents: %v", len(docs), err)
	if w.opts.OnDrop != nil {
		w.opts.OnDrop(docs, err)
	}
}

// internal logging helpers:
func (w *BatchWriter) debug(format string, args ...any) {
	if !w.opts.Verbose {
		return
	}
	InternalLogger().Printf("writer: "+format, args...)
}

func (w *BatchWriter) reportError(format string, args ...any) {
	InternalLogger().Printf("writer: "+format, args...)
}
