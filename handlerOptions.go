package mongolog

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// HandlerOptions configure a Handler. A nil *HandlerOptions passed to
// NewBuilder means DefaultHandlerOptions; other values are coerced into range
// when the Builder is created.
type HandlerOptions struct {

	// Level is the minimum level a record needs to be written; nil means
	// LevelInfo. It is read on every Enabled call, so a *slog.LevelVar can
	// raise or lower it at runtime.
	Level slog.Leveler

	// TimeFormat is the layout of the `ts` default field, as accepted by
	// time.Format. Layouts that do not round-trip through time.Parse are
	// replaced by time.RFC3339Nano, the default.
	TimeFormat string

	// TimeAsDate stores `ts` as a BSON datetime instead of a formatted
	// string, which TTL indexes and date range queries need. TimeFormat is
	// ignored when it is set. Datetimes have millisecond precision.
	TimeAsDate bool

	// AddSource adds the file:line of the log call under slog.SourceKey.
	AddSource bool

	// Verbose writes debug output about the Handler to the internal logger.
	Verbose bool
}

const defaultTimeFormat = time.RFC3339Nano

// DefaultHandlerOptions returns *HandlerOptions with all default values.
func DefaultHandlerOptions() *HandlerOptions {
	return &HandlerOptions{
		Level:      slog.LevelInfo,
		TimeFormat: defaultTimeFormat,
	}
}

// resolve coerces every option into a usable value.
func (o *HandlerOptions) resolve() {
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}

	if len(o.TimeFormat) == 0 {
		o.TimeFormat = defaultTimeFormat
	} else if err := checkTimeFormat(o.TimeFormat); err != nil {
		InternalLogger().Printf("HandlerOptions.TimeFormat %q is invalid, using %s: %v", o.TimeFormat, defaultTimeFormat, err)
		o.TimeFormat = defaultTimeFormat
	}
}

// layoutCheckTime has every field different from the reference time, so a
// layout without reference elements renders as itself.
var layoutCheckTime = time.Date(2001, 2, 3, 4, 5, 6, 7e6, time.UTC)

var errNoTimeElements = errors.New("layout has no time elements")

// checkTimeFormat reports whether layout renders a time that it can parse
// back.
func checkTimeFormat(layout string) error {
	s := layoutCheckTime.Format(layout)
	if s == layout {
		return errNoTimeElements
	}
	if _, err := time.Parse(layout, s); err != nil {
		return fmt.Errorf("cannot parse own output %q: %w", s, err)
	}
	return nil
}
