package mongolog

import (
	"testing"
	"time"
)

func TestWriterOptions_resolvedBatchSize(t *testing.T) {
	tests := []struct {
		name   string
		input  int
		expect int
	}{
		{"positive BatchSize unchanged", 100, 100},
		{"1 (unbuffered) unchanged", 1, 1},
		{"0 (unbuffered) unchanged", 0, 0},
		{"negative BatchSize coerced to 0", -5, 0},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &WriterOptions{BatchSize: tt.input}
			opts.resolve()
			if opts.BatchSize != tt.expect {
				t.Errorf("failed: %s, expected: %d, got: %d", tt.name, tt.expect, opts.BatchSize)
			}
		})
	}
}

func TestWriterOptions_buffered(t *testing.T) {
	tests := []struct {
		input  int
		expect bool
	}{
		{-1, false},
		{0, false},
		{1, false},
		{2, true},
	}
	for _, tt := range tests {
		opts := &WriterOptions{BatchSize: tt.input}
		opts.resolve()
		if opts.buffered() != tt.expect {
			t.Errorf("BatchSize %d: expected buffered() = %t", tt.input, tt.expect)
		}
	}
}

func TestWriterOptions_resolvedFlushInterval(t *testing.T) {
	tests := []struct {
		name   string
		input  time.Duration
		expect time.Duration
	}{
		{"valid (positive) FlushInterval unchanged", time.Minute, time.Minute},
		{"0 duration gets coerced to the default", 0, defaultFlushInterval},
		{"negative duration gets coerced to the default", time.Second * -1, defaultFlushInterval},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &WriterOptions{FlushInterval: tt.input}
			opts.resolve()
			if opts.FlushInterval != tt.expect {
				t.Errorf("failed: %s, expected: %s, got: %s", tt.name, tt.expect, opts.FlushInterval)
			}
		})
	}
}

// WriteTimeout must be negative or positive, but not 0
func TestWriterOptions_resolvedWriteTimeout(t *testing.T) {
	tests := []struct {
		name   string
		input  time.Duration
		expect time.Duration
	}{
		{"valid (positive) WriteTimeout unchanged", time.Minute, time.Minute},
		{"negative duration is unchanged", -time.Minute, -time.Minute},
		{"0 duration gets coerced to the default", 0, defaultWriteTimeout},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := &WriterOptions{WriteTimeout: tt.input}
			opts.resolve()
			if opts.WriteTimeout != tt.expect {
				t.Errorf("failed: %s, expected: %s, got: %s", tt.name, tt.expect, opts.WriteTimeout)
			}
		})
	}
}
