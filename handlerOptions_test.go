package mongolog

import (
	"log/slog"
	"testing"
	"time"
)

func TestHandlerOptions_Defaults(t *testing.T) {
	h := NewBuilder(&testSink{}, nil).Build()

	if h.Level.Level() != slog.LevelInfo {
		t.Fatalf("expected default Level to be INFO, got %s", h.Level.Level())
	}
	if h.TimeFormat != time.RFC3339Nano {
		t.Fatalf("expected default TimeFormat to be RFC3339Nano, got %s", h.TimeFormat)
	}
	if h.AddSource {
		t.Fatal("expected default for `AddSource` to be false")
	}
}

func TestHandlerOptions_resolve(t *testing.T) {
	tests := []struct {
		name         string
		input        HandlerOptions
		expectLevel  slog.Level
		expectFormat string
	}{
		{"nil level coerced to INFO", HandlerOptions{}, slog.LevelInfo, defaultTimeFormat},
		{"custom level unchanged", HandlerOptions{Level: slog.LevelDebug}, slog.LevelDebug, defaultTimeFormat},
		{"custom time format unchanged", HandlerOptions{TimeFormat: time.Kitchen}, slog.LevelInfo, time.Kitchen},
		{"layout without time elements replaced", HandlerOptions{TimeFormat: "timestamp"}, slog.LevelInfo, defaultTimeFormat},
		{"layout that cannot parse its output replaced", HandlerOptions{TimeFormat: "12"}, slog.LevelInfo, defaultTimeFormat},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.resolve()
			if opts.Level.Level() != tt.expectLevel {
				t.Errorf("failed: %s, expected level: %s, got: %s", tt.name, tt.expectLevel, opts.Level.Level())
			}
			if opts.TimeFormat != tt.expectFormat {
				t.Errorf("failed: %s, expected format: %s, got: %s", tt.name, tt.expectFormat, opts.TimeFormat)
			}
		})
	}
}

func TestCheckTimeFormat(t *testing.T) {
	tests := []struct {
		layout string
		valid  bool
	}{
		{time.RFC3339Nano, true},
		{time.RFC1123Z, true},
		{time.DateOnly, true},
		{"ts", false},
		{"12", false}, // month then day, read back as month 23
		{"", false},
	}
	for _, tt := range tests {
		err := checkTimeFormat(tt.layout)
		if (err == nil) != tt.valid {
			t.Errorf("layout %q: expected valid = %t, got err: %v", tt.layout, tt.valid, err)
		}
	}
}
