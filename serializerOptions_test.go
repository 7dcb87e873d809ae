package mongolog

import (
	"testing"
)

func TestSerializerOptions_Defaults(t *testing.T) {
	s := NewSerializer(nil)
	if s.ScratchCap != defaultScratchCap {
		t.Fatalf("expected default ScratchCap %d, got %d", defaultScratchCap, s.ScratchCap)
	}
	if s.MaxScratchCap != defaultMaxScratchCap {
		t.Fatalf("expected default MaxScratchCap %d, got %d", defaultMaxScratchCap, s.MaxScratchCap)
	}
	if s.DocumentCap != defaultDocumentCap {
		t.Fatalf("expected default DocumentCap %d, got %d", defaultDocumentCap, s.DocumentCap)
	}
}

func TestSerializerOptions_resolvedScratchCap(t *testing.T) {
	tests := []struct {
		name      string
		input     SerializerOptions
		expectNew int
		expectMax int
	}{
		{"zero values get defaults", SerializerOptions{}, defaultScratchCap, defaultMaxScratchCap},
		{"small ScratchCap raised to minimum", SerializerOptions{ScratchCap: 8}, minBufferCap, defaultMaxScratchCap},
		{"MaxScratchCap raised to ScratchCap", SerializerOptions{ScratchCap: 4096, MaxScratchCap: 1024}, 4096, 4096},
		{"valid values unchanged", SerializerOptions{ScratchCap: 256, MaxScratchCap: 2048}, 256, 2048},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.resolve()
			if opts.ScratchCap != tt.expectNew {
				t.Errorf("failed: %s, expected ScratchCap: %d, got: %d", tt.name, tt.expectNew, opts.ScratchCap)
			}
			if opts.MaxScratchCap != tt.expectMax {
				t.Errorf("failed: %s, expected MaxScratchCap: %d, got: %d", tt.name, tt.expectMax, opts.MaxScratchCap)
			}
		})
	}
}

func TestSerializerOptions_resolvedDocumentCap(t *testing.T) {
	opts := &SerializerOptions{DocumentCap: 1}
	opts.resolve()
	if opts.DocumentCap != minBufferCap {
		t.Fatalf("expected DocumentCap to be raised to %d, got %d", minBufferCap, opts.DocumentCap)
	}
}
