package mongolog

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
)

// scratchPool is a shared pool of buffers used to render lazy text fields.
type scratchPool struct {
	p      sync.Pool
	maxCap int
}

func newScratchPool(newCap, maxCap int) *scratchPool {
	sp := &scratchPool{maxCap: maxCap}
	sp.p = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, newCap))
		},
	}
	return sp
}

func (sp *scratchPool) get() *bytes.Buffer {
	return sp.p.Get().(*bytes.Buffer)
}

func (sp *scratchPool) put(b *bytes.Buffer) {
	// drop if the buffer got too large
	if b.Cap() > sp.maxCap {
		return
	}
	b.Reset()
	sp.p.Put(b)
}

// Serializer folds ordered Fields into BSON documents. It writes elements
// straight into the document bytes, without building an intermediate
// map[string]any or bson.D. A Serializer is safe for concurrent use.
type Serializer struct {
	*SerializerOptions
	scratch *scratchPool
}

// NewSerializer returns a Serializer. If opts is nil, the default options are
// used.
func NewSerializer(opts *SerializerOptions) *Serializer {
	if opts == nil {
		opts = DefaultSerializerOptions()
	} else {
		opts.resolve()
	}
	return &Serializer{
		SerializerOptions: opts,
		scratch:           newScratchPool(opts.ScratchCap, opts.MaxScratchCap),
	}
}

// Serialize appends every Field of every source, in order, to a new document.
// Later fields with a key already present are appended again rather than
// replacing the earlier element.
//
// If any single field fails to encode, the whole call fails with ErrEncoding
// and no document is returned.
func (s *Serializer) Serialize(r *slog.Record, sources ...[]Field) (bson.Raw, error) {
	idx, dst := bsoncore.AppendDocumentStart(make([]byte, 0, s.DocumentCap))

	var err error
	for _, src := range sources {
		for i := 0; i < len(src); i++ {
			dst, err = s.appendField(dst, r, src[i])
			if err != nil {
				return nil, err
			}
		}
	}

	dst, err = bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedResultShape, err)
	}

	return finish(bsoncore.Value{Type: bsoncore.TypeEmbeddedDocument, Data: dst})
}

// finish enforces that only documents leave the Serializer.
func finish(v bsoncore.Value) (bson.Raw, error) {
	if v.Type != bsoncore.TypeEmbeddedDocument {
		return nil, fmt.Errorf("%w: got BSON type %s", ErrUnsupportedResultShape, v.Type)
	}
	doc := bsoncore.Document(v.Data)
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedResultShape, err)
	}
	return bson.Raw(doc), nil
}

func (s *Serializer) appendField(dst []byte, r *slog.Record, f Field) ([]byte, error) {

	// BSON keys are C strings
	if strings.IndexByte(f.Key, 0) >= 0 {
		return dst, encodingError(f.Key, errors.New("key contains a NUL byte"))
	}

	k := f.Key
	switch f.kind {
	case KindNone, KindUnit:
		return bsoncore.AppendNullElement(dst, k), nil
	case KindBool:
		return bsoncore.AppendBooleanElement(dst, k, f.bool()), nil
	case KindChar:
		return bsoncore.AppendStringElement(dst, k, string(rune(f.num))), nil
	case KindInt8, KindInt16, KindInt32, KindUint8, KindUint16:
		return bsoncore.AppendInt32Element(dst, k, int32(f.int64())), nil
	case KindInt64, KindUint32:
		return bsoncore.AppendInt64Element(dst, k, f.int64()), nil
	case KindUint64:
		if f.num > math.MaxInt64 {
			return dst, encodingError(k, fmt.Errorf("unsigned value %d overflows int64", f.num))
		}
		return bsoncore.AppendInt64Element(dst, k, f.int64()), nil
	case KindFloat32, KindFloat64:
		return bsoncore.AppendDoubleElement(dst, k, f.float64()), nil
	case KindString:
		return bsoncore.AppendStringElement(dst, k, f.str), nil
	case KindLazy:
		return s.appendLazy(dst, r, k, f.any.(LazyFunc))
	case KindFunc:
		v := Any(k, f.any.(RecordFunc)(r))
		if v.kind == KindFunc {
			return dst, encodingError(k, errors.New("record func returned another record func"))
		}
		return s.appendField(dst, r, v)
	case KindAny:
		t, data, err := bson.MarshalValue(f.any)
		if err != nil {
			return dst, encodingError(k, err)
		}
		return bsoncore.AppendValueElement(dst, k, bsoncore.Value{Type: bsoncore.Type(t), Data: data}), nil
	case KindGroup:
		return s.appendGroup(dst, r, k, f.group())
	case KindInline:
		return s.appendInline(dst, k, f.any)
	default:
		return dst, encodingError(k, fmt.Errorf("unknown mongolog.Kind: %d", f.kind))
	}
}

// appendLazy renders a lazy field into a pooled scratch buffer. The buffer is
// reset and released on every path.
func (s *Serializer) appendLazy(dst []byte, r *slog.Record, k string, fn LazyFunc) ([]byte, error) {
	buf := s.scratch.get()
	defer s.scratch.put(buf)

	if err := fn(buf, r); err != nil {
		return dst, encodingError(k, err)
	}
	return bsoncore.AppendStringElement(dst, k, buf.String()), nil
}

func (s *Serializer) appendGroup(dst []byte, r *slog.Record, k string, fields []Field) ([]byte, error) {

	// rule: omit empty groups
	if len(fields) == 0 {
		return dst, nil
	}

	var err error

	// rule: inline fields if key is empty
	if len(k) == 0 {
		for i := 0; i < len(fields); i++ {
			dst, err = s.appendField(dst, r, fields[i])
			if err != nil {
				return dst, err
			}
		}
		return dst, nil
	}

	idx, dst := bsoncore.AppendDocumentElementStart(dst, k)
	for i := 0; i < len(fields); i++ {
		dst, err = s.appendField(dst, r, fields[i])
		if err != nil {
			return dst, err
		}
	}
	dst, err = bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return dst, encodingError(k, err)
	}
	return dst, nil
}

func (s *Serializer) appendInline(dst []byte, k string, v any) ([]byte, error) {
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		return dst, encodingError(k, err)
	}
	if t != bson.TypeEmbeddedDocument {
		return dst, fmt.Errorf("%w: inline field %q has BSON type %s", ErrUnsupportedResultShape, k, t)
	}
	elems, err := bsoncore.Document(data).Elements()
	if err != nil {
		return dst, encodingError(k, err)
	}
	for _, e := range elems {
		dst = append(dst, e...)
	}
	return dst, nil
}
