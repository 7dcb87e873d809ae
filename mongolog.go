/*
Package mongolog provides a structured logging sink that persists log records
as documents in a MongoDB collection, including:

  - `mongolog.Handler` - gathers record fields (implements `slog.Handler`)
  - `mongolog.Serializer` - folds typed fields into one ordered BSON document
  - `mongolog.BatchWriter` - buffers documents and flushes them to the
    collection as unordered bulk inserts
  - `mongolog.Dispatcher` - optional queue that moves writes off the caller's
    goroutine

Every record becomes one document. Fields are appended in the order they are
supplied: the sink's static fields first, then the logger's accumulated
attrs, then the attrs of the call itself. Repeated keys are not deduplicated.

The BatchWriter either writes every document on its own (BatchSize <= 1) or
appends to a pending batch and flushes it when the batch reaches BatchSize
documents or FlushInterval has passed since the previous flush, whichever
comes first. A batch is written with ordered=false, so one rejected document
does not stop the server from inserting its siblings. Failed writes are never
retried; the documents of a failed flush are handed to the OnDrop hook, for
example a `mongolog.Spool`, and otherwise lost.

	coll := client.Database("app").Collection("logs")
	h := mongolog.New(coll, 100, 5*time.Second)
	defer h.Shutdown(context.Background())

	slog.SetDefault(slog.New(h))
	slog.Info("logging ready", "pid", os.Getpid())
*/
package mongolog
