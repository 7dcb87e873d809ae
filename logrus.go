package mongolog

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sirupsen/logrus"
)

// Hook is a logrus hook that writes entries through a Handler, so that
// logrus and slog call sites end up in the same collection with the same
// static fields.
//
//	logrus.AddHook(mongolog.NewHook(h))
type Hook struct {
	h      *Handler
	levels []logrus.Level
}

// NewHook returns a Hook for the given levels. Without levels, the hook fires
// for every level the Handler is enabled for.
func NewHook(h *Handler, levels ...logrus.Level) *Hook {
	if len(levels) == 0 {
		for _, l := range logrus.AllLevels {
			if h.Enabled(context.Background(), SlogLevel(l)) {
				levels = append(levels, l)
			}
		}
	}
	return &Hook{h: h, levels: levels}
}

// Levels implements logrus.Hook.
func (k *Hook) Levels() []logrus.Level { return k.levels }

// Fire implements logrus.Hook. Entries below the Handler's level are
// skipped. The entry's data fields become per-call fields, sorted by key,
// since logrus keeps them in a map.
func (k *Hook) Fire(e *logrus.Entry) error {
	ctx := e.Context
	if ctx == nil {
		ctx = context.Background()
	}

	// levels given to NewHook may be below the Handler's level
	level := SlogLevel(e.Level)
	if !k.h.Enabled(ctx, level) {
		return nil
	}

	r := slog.NewRecord(e.Time, level, e.Message, 0)

	keys := make([]string, 0, len(e.Data))
	for key := range e.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		r.AddAttrs(slog.Any(key, e.Data[key]))
	}

	return k.h.Handle(ctx, r)
}

// SlogLevel maps a logrus level onto the slog level scale. Panic and Fatal
// land above Error, Trace below Debug.
func SlogLevel(l logrus.Level) slog.Level {
	switch l {
	case logrus.PanicLevel:
		return slog.LevelError + 8
	case logrus.FatalLevel:
		return slog.LevelError + 4
	case logrus.ErrorLevel:
		return slog.LevelError
	case logrus.WarnLevel:
		return slog.LevelWarn
	case logrus.InfoLevel:
		return slog.LevelInfo
	case logrus.DebugLevel:
		return slog.LevelDebug
	default:
		return slog.LevelDebug - 4
	}
}
