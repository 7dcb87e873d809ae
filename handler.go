package mongolog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"
)

// Keys of the default fields added by Builder.WithDefaultKeys.
const (
	TimeKey      = "ts"
	LevelKey     = "level"
	LevelRankKey = "leveli"
	MessageKey   = "msg"
)

type ccKey struct{}

// ContextKey is used to extract a log value from context.Context. The value
// must be be `slog.Attr`.
//
//		Example:
//	 	ctx := context.WithValue(ctx, mongolog.ContextKey,
//	 		slog.Group("req",
//	 			slog.String("method", r.Method),
//	 			slog.String("url", r.URL.String()),
//	 		)
//	 	)
//
// These attrs are added to the top scope of the document, ahead of the attrs
// of the record.
var ContextKey *ccKey = &ccKey{}

// scope holds the fields added with WithAttrs while one group, created with
// WithGroup, was the innermost group. The root scope has no key.
type scope struct {
	key    string
	fields []Field
}

// Handler is an adapter that turns Go structured logs into MongoDB documents.
// Each document holds, in order, the static fields configured on the Builder,
// the fields accumulated through WithAttrs and WithGroup, and the attrs of
// the record itself.
//
//	// Example of basic usage
//	h := mongolog.New(coll, 100, 5*time.Second)
//	defer h.Shutdown(context.Background())
//
//	logger := slog.New(h)
//	slog.SetDefault(logger)
//
//	slog.Info("unrecognized user", "user_id", user_id)
type Handler struct {
	*HandlerOptions
	sink   Sink
	ser    *Serializer
	static []Field
	scopes []scope
}

// New returns a Handler writing to coll through a BatchWriter that flushes
// every batchSize documents, or every flushInterval, and that carries the
// default keys `ts`, `level`, `leveli` and `msg`. A batchSize of 0 or 1 writes
// every record as soon as it is handled.
func New(coll Collection, batchSize int, flushInterval time.Duration) *Handler {
	w := NewBatchWriter(coll, &WriterOptions{
		BatchSize:     batchSize,
		FlushInterval: flushInterval,
	})
	return NewBuilder(w, nil).WithDefaultKeys().Build()
}

// Builder collects the static fields of a Handler before first use.
type Builder struct {
	sink   Sink
	opts   *HandlerOptions
	ser    *Serializer
	static []Field
}

// NewBuilder starts building a Handler that hands its documents to sink.
func NewBuilder(sink Sink, opts *HandlerOptions) *Builder {
	if opts == nil {
		opts = DefaultHandlerOptions()
	} else {
		opts.resolve()
	}
	return &Builder{sink: sink, opts: opts}
}

// WithSerializer sets the Serializer used by the Handler. By default one
// with the default options is used.
func (b *Builder) WithSerializer(s *Serializer) *Builder {
	b.ser = s
	return b
}

// AddFields appends static fields that are added to every document.
func (b *Builder) AddFields(fields ...Field) *Builder {
	b.static = append(b.static, fields...)
	return b
}

// WithDefaultKeys adds the default static fields:
//
//   - `ts` - the local time at serialization, formatted with TimeFormat,
//     or a BSON datetime with TimeAsDate
//   - `level` - the name of the record's level
//   - `leveli` - the level rank, see LevelRank
//   - `msg` - the log message
func (b *Builder) WithDefaultKeys() *Builder {
	timeFormat, asDate := b.opts.TimeFormat, b.opts.TimeAsDate
	return b.AddFields(
		Func(TimeKey, func(*slog.Record) any {
			if asDate {
				return time.Now()
			}
			return time.Now().Format(timeFormat)
		}),
		Func(LevelKey, func(r *slog.Record) any {
			return r.Level.String()
		}),
		Func(LevelRankKey, func(r *slog.Record) any {
			return LevelRank(r.Level)
		}),
		Lazy(MessageKey, func(w io.Writer, r *slog.Record) error {
			_, err := io.WriteString(w, r.Message)
			return err
		}),
	)
}

// Build returns the Handler.
func (b *Builder) Build() *Handler {
	ser := b.ser
	if ser == nil {
		ser = NewSerializer(nil)
	}
	return &Handler{
		HandlerOptions: b.opts,
		sink:           b.sink,
		ser:            ser,
		static:         append(b.static[:0:0], b.static...),
		scopes:         make([]scope, 1), // 1 for the root scope
	}
}

// LevelRank maps a level to a rank where the most severe level has the
// smallest value: 1 above Error, 2 for Error, 3 for Warn, 4 for Info, 5 for
// Debug and 6 below Debug.
func LevelRank(l slog.Level) int {
	switch {
	case l > slog.LevelError:
		return 1
	case l >= slog.LevelError:
		return 2
	case l >= slog.LevelWarn:
		return 3
	case l >= slog.LevelInfo:
		return 4
	case l >= slog.LevelDebug:
		return 5
	default:
		return 6
	}
}

// Shutdown closes the Sink, which writes out pending documents. You MUST NOT
// call any other logger methods after calling Shutdown.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.debug("shutting down the logging stack")
	return h.sink.Close(ctx)
}

// clone creates a copy of the Handler that can be independently modified
// moving forward without impacting the parent handler it derives from.
func (h *Handler) clone() *Handler {
	h2 := *h
	h2.scopes = make([]scope, len(h.scopes))
	copy(h2.scopes, h.scopes)
	return &h2
}

func (h *Handler) debug(format string, args ...any) {
	if !h.Verbose {
		return
	}
	InternalLogger().Printf(format, args...)
}

// Enabled reports whether the handler handles records at the given level. The
// handler ignores records whose level is lower.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.Level.Level()
}

// Handle serializes the Record into one document and passes it to the Sink.
// The Context argument is as for Enabled; a `slog.Attr` stored under
// ContextKey is added to the document.
//
// Handle follows the slog.Handler rules:
//   - If r.PC is zero, ignore it.
//   - Attr's values should be resolved.
//   - If an Attr's key and value are both the zero value, ignore the Attr.
//   - If a group's key is empty, inline the group's Attrs.
//   - If a group has no Attrs (even if it has a non-empty key),
//     ignore it.
//
// Serialization and write errors are returned, wrapping ErrEncoding,
// ErrUnsupportedResultShape or ErrWrite.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {

	// slog record attrs are added to the last scope
	fields := make([]Field, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		if f, ok := h.attrField(a); ok {
			fields = append(fields, f)
		}
		return true // continue iterating
	})

	// wrap each open group around its own fields and everything nested in it
	for i := len(h.scopes) - 1; i > 0; i-- {
		s := h.scopes[i]

		// rule: remove empty groups
		if len(s.fields) == 0 && len(fields) == 0 {
			continue
		}
		gfs := make([]Field, 0, len(s.fields)+len(fields))
		gfs = append(append(gfs, s.fields...), fields...)
		fields = []Field{Group(s.key, gfs...)}
	}

	top := make([]Field, 0, len(fields)+2)

	// rule: ignore source if no program counter, else add to top scope
	if h.AddSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		top = append(top, String(slog.SourceKey, fmt.Sprintf("%s:%d", f.File, f.Line)))
	}

	// slog.Attrs passed in via the ctx also go to the top scope
	if ctxAttr, ok := ctx.Value(ContextKey).(slog.Attr); ok {
		if f, ok := h.attrField(ctxAttr); ok {
			top = append(top, f)
		}
	}
	top = append(top, fields...)

	doc, err := h.ser.Serialize(&r, h.static, h.scopes[0].fields, top)
	if err != nil {
		h.debug("failed to serialize record %q: %v", r.Message, err)
		return fmt.Errorf("failed to Handle slog record: %w", err)
	}

	return h.sink.Accept(ctx, doc)
}

// attrField converts an slog.Attr into a Field. It reports false for attrs
// that must be skipped.
func (h *Handler) attrField(a slog.Attr) (Field, bool) {

	// rule: must first resolve, and then ignore if empty
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return Field{}, false
	}

	k, v := a.Key, a.Value

	if v.Kind() != slog.KindGroup {
		if len(k) == 0 {
			// rule: ignore non-group attrs with empty keys
			return Field{}, false
		}

		switch v.Kind() {
		case slog.KindBool:
			return Bool(k, v.Bool()), true
		case slog.KindDuration:
			return Int64(k, int64(v.Duration())), true
		case slog.KindFloat64:
			return Float64(k, v.Float64()), true
		case slog.KindInt64:
			return Int64(k, v.Int64()), true
		case slog.KindString:
			return String(k, v.String()), true
		case slog.KindTime:
			return Any(k, v.Time()), true
		case slog.KindUint64:
			return Uint64(k, v.Uint64()), true
		default:
			return Any(k, v.Any()), true
		}
	}

	// static groups: slog.Group attr
	gAttrs := v.Group()
	fs := make([]Field, 0, len(gAttrs))
	for i := 0; i < len(gAttrs); i++ {
		if f, ok := h.attrField(gAttrs[i]); ok {
			fs = append(fs, f)
		}
	}

	// rule: ignore empty groups entirely
	if len(fs) == 0 {
		return Field{}, false
	}

	// rule: inline attrs if key is empty, which the Serializer does for
	// groups without a key
	return Group(k, fs...), true
}

// WithAttrs returns a new Handler whose fields consist of both the receiver's
// fields and the arguments, added to the innermost group.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {

	// rule: skip if no attrs
	if len(attrs) == 0 {
		return h
	}

	fs := make([]Field, 0, len(attrs))
	for i := 0; i < len(attrs); i++ {
		if f, ok := h.attrField(attrs[i]); ok {
			fs = append(fs, f)
		}
	}

	// if none added, don't create a new handler
	if len(fs) == 0 {
		return h
	}

	// make independent copy
	h2 := h.clone()
	idx := len(h2.scopes) - 1
	s := h2.scopes[idx]
	h2.scopes[idx].fields = append(s.fields[:len(s.fields):len(s.fields)], fs...)

	return h2
}

// WithGroup returns a new Handler with the given group appended to the
// receiver's existing groups. The new group becomes an embedded document that
// holds all fields added afterwards, including the attrs of each record.
//
// If the name is empty, WithGroup returns the receiver, which results in the
// nested attributes being inlined into the parent scope.
func (h *Handler) WithGroup(name string) slog.Handler {

	// rule: ignore if name is empty (true for any attr)
	if len(name) == 0 {
		return h
	}

	h2 := h.clone()
	h2.scopes = append(h2.scopes, scope{key: name})

	return h2
}
