package mongolog

import (
	"errors"
	"fmt"
)

var (
	// ErrEncoding reports that a field could not be converted into a BSON
	// value. The record is dropped.
	ErrEncoding = errors.New("mongolog: failed to encode field")

	// ErrUnsupportedResultShape reports that serialization produced something
	// other than a document. Only documents can be inserted as log entries,
	// so this is a programming error rather than a transient condition.
	ErrUnsupportedResultShape = errors.New("mongolog: serialized value is not a document")

	// ErrWrite reports that the collection rejected or could not execute an
	// insert. In buffered mode every document of the failed flush is lost.
	ErrWrite = errors.New("mongolog: failed to write to collection")

	// ErrClosed is returned by Accept after the sink has been closed.
	ErrClosed = errors.New("mongolog: sink is closed")

	// ErrQueueFull is returned by a Dispatcher that drops documents when its
	// queue is full.
	ErrQueueFull = errors.New("mongolog: dispatch queue is full")
)

func encodingError(key string, err error) error {
	return fmt.Errorf("%w: key %q: %w", ErrEncoding, key, err)
}

func writeError(op string, n int, err error) error {
	return fmt.Errorf("%w: %s of %d documents: %w", ErrWrite, op, n, err)
}
