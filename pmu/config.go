package pmu

import (
	"log/slog"
	"slices"
	"time"

	"dynamicdevices.com/eink/pmuctl/shell"
)

// Config carries the tunables of one serial link. All durations are
// externally supplied policy, not hard-coded protocol facts; the defaults
// match current firmware behaviour.
type Config struct {
	Dialer Dialer

	// CommandTimeout bounds a whole command round-trip when no terminator
	// is seen. Commands may override it individually.
	CommandTimeout time.Duration
	// IdleWindow is the maximum gap between successive byte arrivals
	// before a reply is considered finished absent a terminator.
	IdleWindow time.Duration
	// DrainWindow bounds the pre-send read that discards stale bytes.
	DrainWindow time.Duration
	// TrailWindow bounds the post-terminator read that catches trailing
	// bytes still in flight.
	TrailWindow time.Duration
	// PollInterval is the per-read wait during accumulation.
	PollInterval time.Duration
	// DisruptiveWindow is the fixed read window for commands expected to
	// sever the link.
	DisruptiveWindow time.Duration

	// Terminators is the set of prompt markers that end a reply. The set
	// is firmware-build dependent.
	Terminators []string

	// SkipProbe disables the ping round-trip normally performed on
	// Connect to verify the firmware is responding.
	SkipProbe bool

	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 3 * time.Second
	}
	if c.IdleWindow == 0 {
		c.IdleWindow = 500 * time.Millisecond
	}
	if c.DrainWindow == 0 {
		c.DrainWindow = 100 * time.Millisecond
	}
	if c.TrailWindow == 0 {
		c.TrailWindow = 200 * time.Millisecond
	}
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.DisruptiveWindow == 0 {
		c.DisruptiveWindow = 500 * time.Millisecond
	}
	if len(c.Terminators) == 0 {
		c.Terminators = shell.DefaultTerminators()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ConfigBuilder assembles a Config fluently.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.CommandTimeout = d
	return b
}

func (b *ConfigBuilder) WithIdleWindow(d time.Duration) *ConfigBuilder {
	b.config.IdleWindow = d
	return b
}

func (b *ConfigBuilder) WithDrainWindow(d time.Duration) *ConfigBuilder {
	b.config.DrainWindow = d
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.PollInterval = d
	return b
}

func (b *ConfigBuilder) WithDisruptiveWindow(d time.Duration) *ConfigBuilder {
	b.config.DisruptiveWindow = d
	return b
}

func (b *ConfigBuilder) WithTerminators(terminators []string) *ConfigBuilder {
	b.config.Terminators = slices.Clone(terminators)
	return b
}

func (b *ConfigBuilder) WithSkipProbe(skip bool) *ConfigBuilder {
	b.config.SkipProbe = skip
	return b
}

func (b *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	b.config.Logger = logger
	return b
}

// Build validates the assembled configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	config := b.config
	config.setDefaults()
	return config, nil
}
