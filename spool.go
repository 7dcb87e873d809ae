package mongolog

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Spool records documents lost in failed writes as a stream of msgpack maps,
// one per document, so they can be inspected or reloaded by hand later. It
// does not retry anything.
//
//	f, _ := os.OpenFile("mongolog.spool", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
//	spool := mongolog.NewSpool(f)
//	w := mongolog.NewBatchWriter(coll, &mongolog.WriterOptions{
//		BatchSize: 100,
//		OnDrop:    spool.Drop,
//	})
type Spool struct {
	mu  sync.Mutex
	enc *msgpack.Encoder
}

// NewSpool returns a Spool appending to w.
func NewSpool(w io.Writer) *Spool {
	return &Spool{enc: msgpack.NewEncoder(w)}
}

// Drop appends docs to the spool. It matches the signature of
// WriterOptions.OnDrop. Failures are reported to the internal logger.
func (s *Spool) Drop(docs []bson.Raw, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	for i := 0; i < len(docs); i++ {
		if err := encodeDocument(s.enc, docs[i]); err != nil {
			errs = errors.Join(errs, fmt.Errorf("document %d: %w", i, err))
		}
	}
	if errs != nil {
		InternalLogger().Printf("spool: failed to record documents dropped after %v:\n%v", cause, errs)
	}
}

// encodeDocument writes doc as a msgpack map, keeping element order.
func encodeDocument(enc *msgpack.Encoder, doc bson.Raw) error {
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	if err := enc.EncodeMapLen(len(elems)); err != nil {
		return err
	}
	for _, e := range elems {
		if err := enc.EncodeString(e.Key()); err != nil {
			return err
		}
		if err := encodeValue(enc, e.Value()); err != nil {
			return fmt.Errorf("key %q: %w", e.Key(), err)
		}
	}
	return nil
}

func encodeValue(enc *msgpack.Encoder, v bson.RawValue) error {
	switch v.Type {
	case bson.TypeNull, bson.TypeUndefined:
		return enc.EncodeNil()
	case bson.TypeBoolean:
		return enc.EncodeBool(v.Boolean())
	case bson.TypeInt32:
		return enc.EncodeInt(int64(v.Int32()))
	case bson.TypeInt64:
		return enc.EncodeInt(v.Int64())
	case bson.TypeDouble:
		return enc.EncodeFloat64(v.Double())
	case bson.TypeString:
		return enc.EncodeString(v.StringValue())
	case bson.TypeDateTime:
		return enc.EncodeTime(v.Time())
	case bson.TypeEmbeddedDocument:
		return encodeDocument(enc, v.Document())
	default:
		var x any
		if err := v.Unmarshal(&x); err != nil {
			return err
		}
		return enc.Encode(x)
	}
}

// ReadSpool decodes every document recorded in a spool. Integers come back
// as int64 or uint64 and floats as float64.
func ReadSpool(r io.Reader) ([]map[string]any, error) {
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)

	var docs []map[string]any
	for {
		var m map[string]any
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return docs, fmt.Errorf("failed to decode spooled document %d: %w", len(docs), err)
		}
		docs = append(docs, m)
	}
}
