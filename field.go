package mongolog

import (
	"io"
	"log/slog"
	"math"
)

// Kind identifies the type of value carried by a Field.
type Kind int

const (
	KindNone Kind = iota
	KindUnit
	KindBool
	KindChar
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindLazy
	KindFunc
	KindAny
	KindGroup
	KindInline
)

var kindNames = []string{
	"None",
	"Unit",
	"Bool",
	"Char",
	"Int8",
	"Int16",
	"Int32",
	"Int64",
	"Uint8",
	"Uint16",
	"Uint32",
	"Uint64",
	"Float32",
	"Float64",
	"String",
	"Lazy",
	"Func",
	"Any",
	"Group",
	"Inline",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "<unknown mongolog.Kind>"
}

// LazyFunc writes a text value at serialization time. The bytes written to w
// become a string element; w is only valid for the duration of the call.
type LazyFunc func(w io.Writer, r *slog.Record) error

// RecordFunc computes a value from the record at serialization time. The
// result is converted as if it had been passed to Any.
type RecordFunc func(r *slog.Record) any

// Field is one key and typed value destined for a document. The zero Field
// has an empty key and the None kind.
type Field struct {
	Key  string
	kind Kind
	num  uint64
	str  string
	any  any
}

// Kind returns the kind of the Field's value.
func (f Field) Kind() Kind { return f.kind }

// Bool returns a Field for a boolean.
func Bool(key string, v bool) Field {
	var n uint64
	if v {
		n = 1
	}
	return Field{Key: key, kind: KindBool, num: n}
}

// Unit returns a Field whose value is the unit marker. It is stored as null.
func Unit(key string) Field { return Field{Key: key, kind: KindUnit} }

// None returns a Field for an absent value. The key is kept and the value is
// stored as null.
func None(key string) Field { return Field{Key: key, kind: KindNone} }

// Char returns a Field for a single character, stored as a one-rune string.
func Char(key string, v rune) Field { return Field{Key: key, kind: KindChar, num: uint64(v)} }

func Int8(key string, v int8) Field   { return Field{Key: key, kind: KindInt8, num: uint64(v)} }
func Int16(key string, v int16) Field { return Field{Key: key, kind: KindInt16, num: uint64(v)} }
func Int32(key string, v int32) Field { return Field{Key: key, kind: KindInt32, num: uint64(v)} }
func Int64(key string, v int64) Field { return Field{Key: key, kind: KindInt64, num: uint64(v)} }
func Int(key string, v int) Field     { return Int64(key, int64(v)) }

func Uint8(key string, v uint8) Field   { return Field{Key: key, kind: KindUint8, num: uint64(v)} }
func Uint16(key string, v uint16) Field { return Field{Key: key, kind: KindUint16, num: uint64(v)} }
func Uint32(key string, v uint32) Field { return Field{Key: key, kind: KindUint32, num: uint64(v)} }
func Uint64(key string, v uint64) Field { return Field{Key: key, kind: KindUint64, num: v} }
func Uint(key string, v uint) Field     { return Uint64(key, uint64(v)) }

func Float32(key string, v float32) Field {
	return Field{Key: key, kind: KindFloat32, num: math.Float64bits(float64(v))}
}

func Float64(key string, v float64) Field {
	return Field{Key: key, kind: KindFloat64, num: math.Float64bits(v)}
}

// String returns a Field for a string.
func String(key, v string) Field { return Field{Key: key, kind: KindString, str: v} }

// Lazy returns a Field whose text is produced by fn when the record is
// serialized. fn is called exactly once per serialization.
func Lazy(key string, fn LazyFunc) Field { return Field{Key: key, kind: KindLazy, any: fn} }

// Func returns a Field whose value is computed by fn when the record is
// serialized.
func Func(key string, fn RecordFunc) Field { return Field{Key: key, kind: KindFunc, any: fn} }

// Group returns a Field holding a nested document. A group with an empty key
// has its fields inlined into the parent, and a group without fields is
// omitted.
func Group(key string, fields ...Field) Field {
	return Field{Key: key, kind: KindGroup, any: fields}
}

// Inline returns a Field that merges the top-level elements of v, which must
// marshal to a BSON document (a struct, map, bson.D or bson.Raw), into the
// enclosing document. The key is only used in error messages.
func Inline(key string, v any) Field { return Field{Key: key, kind: KindInline, any: v} }

// Any returns a Field for an arbitrary value. Go types with a dedicated kind
// are mapped onto it; everything else is handed to the BSON codecs when the
// record is serialized.
func Any(key string, v any) Field {
	switch v := v.(type) {
	case nil:
		return None(key)
	case bool:
		return Bool(key, v)
	case int8:
		return Int8(key, v)
	case int16:
		return Int16(key, v)
	case int32:
		return Int32(key, v)
	case int64:
		return Int64(key, v)
	case int:
		return Int(key, v)
	case uint8:
		return Uint8(key, v)
	case uint16:
		return Uint16(key, v)
	case uint32:
		return Uint32(key, v)
	case uint64:
		return Uint64(key, v)
	case uint:
		return Uint(key, v)
	case float32:
		return Float32(key, v)
	case float64:
		return Float64(key, v)
	case string:
		return String(key, v)
	case error:
		return String(key, v.Error())
	case LazyFunc:
		return Lazy(key, v)
	case []Field:
		return Group(key, v...)
	case Field:
		v.Key = key
		return v
	default:
		return Field{Key: key, kind: KindAny, any: v}
	}
}

func (f Field) bool() bool { return f.num == 1 }

func (f Field) int64() int64 { return int64(f.num) }

func (f Field) float64() float64 { return math.Float64frombits(f.num) }

func (f Field) group() []Field {
	fs, _ := f.any.([]Field)
	return fs
}
