package mongolog

// DispatcherOptions are used to customize the Dispatcher.
//
// # Invalid options are coerced
type DispatcherOptions struct {

	// Concurrency controls the number of workers the Dispatcher will spin up.
	// Each worker independently pulls documents from the queue and passes
	// them to the wrapped Sink. The default is 1, which preserves acceptance
	// order.
	Concurrency int

	// QueueDepth sets the maximum number of documents that can be queued
	// before Accept blocks. If blocked and DropIfQueueFull is true, load
	// shedding will occur, with later documents discarded until queue space
	// frees up. The default depth is 256.
	QueueDepth int

	// DropIfQueueFull controls how documents are handled when the queue is
	// full. The default is to block the log handler until the queue can
	// receive the document. With this option enabled, overflow documents are
	// dropped and Accept returns ErrQueueFull. This enables a tradeoff
	// between log completeness and system performance predictability.
	DropIfQueueFull bool

	// Verbose controls whether debug logs are written to the internal logger.
	Verbose bool
}

const (
	defaultConcurrency = 1
	defaultQueueDepth  = 256
)

// DefaultDispatcherOptions returns *DispatcherOptions with all default values.
func DefaultDispatcherOptions() *DispatcherOptions {
	return &DispatcherOptions{
		Concurrency: defaultConcurrency,
		QueueDepth:  defaultQueueDepth,
	}
}

// resolve ensures that all options have valid values.
func (o *DispatcherOptions) resolve() {

	// must have at least one worker
	if o.Concurrency < 1 {
		o.Concurrency = defaultConcurrency
	}

	// 0 is valid (synchronous handoff), negative is not
	if o.QueueDepth < 0 {
		o.QueueDepth = defaultQueueDepth
	}
}
