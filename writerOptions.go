package mongolog

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// WriterOptions are used to customize the BatchWriter.
//
// # Invalid options are coerced
//
// NB: The struct pointer options approach is used to be consistent with the
// options used for the Handler, which uses the struct pointer approach to be
// consistent with the `HandlerOptions` used by log/slog.
type WriterOptions struct {

	// BatchSize is the number of pending documents that triggers a flush. A
	// value of 0 or 1 disables buffering, and every document is written on
	// its own with InsertOne. Negative values are coerced to 0. The default
	// is 0.
	BatchSize int

	// FlushInterval is the time after the previous flush at which the next
	// accepted document triggers a flush, regardless of the batch size. It
	// must be positive. The default is 5 seconds.
	FlushInterval time.Duration

	// WriteTimeout bounds each insert call. If WriteTimeout < 0, then no
	// timeout is set. The default is 10 seconds.
	WriteTimeout time.Duration

	// BackgroundFlush starts a goroutine that flushes a non-empty batch once
	// FlushInterval has passed, even if no further documents arrive. Without
	// it, documents wait for the next Accept, Flush or Close.
	BackgroundFlush bool

	// OnDrop, if set, receives the documents of every failed write, along
	// with the error. It is called synchronously, after the write returns.
	OnDrop func(docs []bson.Raw, err error)

	// Verbose controls whether debug logs are written to the internal logger.
	Verbose bool
}

const (
	defaultFlushInterval = time.Second * 5
	defaultWriteTimeout  = time.Second * 10
)

// DefaultWriterOptions returns *WriterOptions with all default values.
func DefaultWriterOptions() *WriterOptions {
	return &WriterOptions{
		FlushInterval: defaultFlushInterval,
		WriteTimeout:  defaultWriteTimeout,
	}
}

// resolve ensures that all options have valid values.
func (o *WriterOptions) resolve() {

	// 0 and 1 both mean unbuffered
	if o.BatchSize < 0 {
		o.BatchSize = 0
	}

	// must be positive
	if o.FlushInterval < 1 {
		o.FlushInterval = defaultFlushInterval
	}

	// can be negative (infinity) or positive, but not 0
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
}

func (o *WriterOptions) buffered() bool { return o.BatchSize > 1 }
