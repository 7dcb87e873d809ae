package mongolog

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Open connects to MongoDB and assembles the stack described by c: a
// BatchWriter, optionally fronted by a Dispatcher and backed by a Spool, and
// a Handler carrying the default keys followed by fields.
//
// The returned function shuts the Handler down, which writes out pending
// documents, then closes the spool file and disconnects the client.
func Open(ctx context.Context, c *Config, fields ...Field) (*Handler, func(context.Context) error, error) {
	client, coll, err := Connect(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	wopts := c.WriterOptions()

	var spoolFile *os.File
	if len(c.SpoolPath) > 0 {
		spoolFile, err = os.OpenFile(c.SpoolPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("failed to open spool file: %w", err)
		}
		wopts.OnDrop = NewSpool(spoolFile).Drop
	}

	var sink Sink = NewBatchWriter(coll, wopts)
	if dopts := c.DispatcherOptions(); dopts != nil {
		sink = NewDispatcher(sink, dopts)
	}

	h := NewBuilder(sink, c.HandlerOptions()).
		WithDefaultKeys().
		AddFields(fields...).
		Build()

	shutdown := func(ctx context.Context) error {
		err := h.Shutdown(ctx)
		if spoolFile != nil {
			err = errors.Join(err, spoolFile.Close())
		}
		return errors.Join(err, client.Disconnect(ctx))
	}

	return h, shutdown, nil
}
