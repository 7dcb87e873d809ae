package mongolog

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of the environment variables read by LoadConfig,
// e.g. MONGOLOG_URI or MONGOLOG_BATCH_SIZE.
const EnvPrefix = "MONGOLOG"

// Config describes a complete logging stack: where to connect, where to write
// and how to buffer. It is loaded from a YAML file and environment variables
// by LoadConfig.
type Config struct {
	URI        string `yaml:"uri" envconfig:"uri" validate:"required"`
	Database   string `yaml:"database" envconfig:"database" validate:"required"`
	Collection string `yaml:"collection" envconfig:"collection" validate:"required"`

	// Level is the minimum level handled, in slog.Level text form.
	Level string `yaml:"level" envconfig:"level"`

	BatchSize       int           `yaml:"batch_size" envconfig:"batch_size" validate:"gte=0"`
	FlushInterval   time.Duration `yaml:"flush_interval" envconfig:"flush_interval" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"write_timeout"`
	BackgroundFlush bool          `yaml:"background_flush" envconfig:"background_flush"`

	// QueueDepth > 0 puts a Dispatcher in front of the BatchWriter.
	QueueDepth      int  `yaml:"queue_depth" envconfig:"queue_depth" validate:"gte=0"`
	DropIfQueueFull bool `yaml:"drop_if_queue_full" envconfig:"drop_if_queue_full"`

	// SpoolPath, if set, names a file that receives documents lost in
	// failed writes.
	SpoolPath string `yaml:"spool_path" envconfig:"spool_path"`

	DialTimeout  time.Duration `yaml:"dial_timeout" envconfig:"dial_timeout" validate:"gte=0"`
	ConnectTries int           `yaml:"connect_tries" envconfig:"connect_tries"`

	// TimeAsDate stores `ts` as a BSON datetime, see HandlerOptions.
	TimeAsDate bool `yaml:"time_as_date" envconfig:"time_as_date"`

	AddSource bool `yaml:"add_source" envconfig:"add_source"`
	Verbose   bool `yaml:"verbose" envconfig:"verbose"`
}

var validate *validator.Validate
var vOnce sync.Once

// Validator returns the shared validator.
func Validator() *validator.Validate {
	vOnce.Do(func() {
		validate = validator.New()
	})

	return validate
}

// LoadConfig reads the YAML file at path, if path is not empty, then applies
// MONGOLOG_* environment variables on top and validates the result.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}

	if len(path) > 0 {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(b, c); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks the struct constraints and the level name.
func (c *Config) Validate() error {
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.level(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if len(c.Level) == 0 {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(c.Level))
	return l, err
}

// HandlerOptions returns the options for the Handler.
func (c *Config) HandlerOptions() *HandlerOptions {
	l, _ := c.level()
	return &HandlerOptions{
		Level:      l,
		TimeAsDate: c.TimeAsDate,
		AddSource:  c.AddSource,
		Verbose:    c.Verbose,
	}
}

// WriterOptions returns the options for the BatchWriter. OnDrop is left for
// the caller.
func (c *Config) WriterOptions() *WriterOptions {
	return &WriterOptions{
		BatchSize:       c.BatchSize,
		FlushInterval:   c.FlushInterval,
		WriteTimeout:    c.WriteTimeout,
		BackgroundFlush: c.BackgroundFlush,
		Verbose:         c.Verbose,
	}
}

// DispatcherOptions returns the options for the Dispatcher, or nil when the
// config does not ask for one.
func (c *Config) DispatcherOptions() *DispatcherOptions {
	if c.QueueDepth == 0 {
		return nil
	}
	return &DispatcherOptions{
		QueueDepth:      c.QueueDepth,
		DropIfQueueFull: c.DropIfQueueFull,
		Verbose:         c.Verbose,
	}
}
