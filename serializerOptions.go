package mongolog

// SerializerOptions are used to customize the Serializer and its pool of
// scratch buffers.
//
// NB: The struct pointer options approach is used to be consistent with the
// approach used in the standard library for `HandlerOptions`.
type SerializerOptions struct {

	// ScratchCap sets the capacity, in bytes, for newly created scratch
	// buffers used to render lazy text fields. The minimum value is 64 bytes.
	// The default is 128 bytes.
	ScratchCap int

	// MaxScratchCap sets the maximum buffer capacity, in bytes, beyond which a
	// scratch buffer will not be returned to the pool, to prevent rare,
	// unusually large buffers from staying resident in memory. The minimum
	// value is ScratchCap. The default is 8KiB (1<<13).
	MaxScratchCap int

	// DocumentCap sets the initial capacity, in bytes, of each document
	// buffer. The minimum value is 64 bytes. The default is 512 bytes.
	DocumentCap int
}

const (
	minBufferCap         = 64
	defaultScratchCap    = 128
	defaultMaxScratchCap = 8192
	defaultDocumentCap   = 512
)

// DefaultSerializerOptions returns *SerializerOptions with all default values.
func DefaultSerializerOptions() *SerializerOptions {
	return &SerializerOptions{
		ScratchCap:    defaultScratchCap,
		MaxScratchCap: defaultMaxScratchCap,
		DocumentCap:   defaultDocumentCap,
	}
}

// resolve ensures that all options have valid values.
func (o *SerializerOptions) resolve() {
	if o.ScratchCap == 0 {
		o.ScratchCap = defaultScratchCap
	}
	o.ScratchCap = max(o.ScratchCap, minBufferCap)

	if o.MaxScratchCap == 0 {
		o.MaxScratchCap = defaultMaxScratchCap
	}
	o.MaxScratchCap = max(o.ScratchCap, o.MaxScratchCap)

	if o.DocumentCap == 0 {
		o.DocumentCap = defaultDocumentCap
	}
	o.DocumentCap = max(o.DocumentCap, minBufferCap)
}
