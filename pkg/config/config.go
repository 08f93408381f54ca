// Package config provides configuration types, defaults and loading for
// goalrun.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ormasoftchile/goalrun/pkg/kernel/engine"
	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
)

// EnvPrefix prefixes environment overrides, e.g. GOALRUN_LOG_LEVEL.
const EnvPrefix = "GOALRUN"

// Config holds all configuration options.
type Config struct {
	Timers  TimersConfig  `mapstructure:"timers" yaml:"timers"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Trace   TraceConfig   `mapstructure:"trace" yaml:"trace"`
}

// TimersConfig tunes reminder and sleep behavior.
type TimersConfig struct {
	// MinReminderInterval is the floor every reminder is clamped up to.
	MinReminderInterval time.Duration `mapstructure:"min_reminder_interval" yaml:"min_reminder_interval"`
	// SleepSkipAfter is how long a sleep must run before it can be
	// skipped. Negative disables skipping.
	SleepSkipAfter time.Duration `mapstructure:"sleep_skip_after" yaml:"sleep_skip_after"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// HistoryConfig selects where run history is stored.
type HistoryConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // sqlite, memory or none
	Path   string `mapstructure:"path" yaml:"path"`
}

// TraceConfig enables the JSONL lifecycle trace. An empty path disables it.
type TraceConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Timers: TimersConfig{
			MinReminderInterval: model.DefaultMinReminderInterval,
			SleepSkipAfter:      engine.DefaultSkipAfter,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		History: HistoryConfig{Driver: "sqlite", Path: "goalrun.db"},
	}
}

// Load reads the configuration: defaults, then the YAML file at path (if
// path is non-empty), then GOALRUN_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("timers.min_reminder_interval", d.Timers.MinReminderInterval)
	v.SetDefault("timers.sleep_skip_after", d.Timers.SleepSkipAfter)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("history.driver", d.History.Driver)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("trace.path", d.Trace.Path)
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	switch c.History.Driver {
	case "sqlite":
		if c.History.Path == "" {
			errs = append(errs, errors.New("history.path: required for the sqlite driver"))
		}
	case "memory", "none":
	default:
		errs = append(errs, fmt.Errorf("history.driver: must be sqlite, memory or none, got %q", c.History.Driver))
	}
	if c.Timers.MinReminderInterval < 0 {
		errs = append(errs, errors.New("timers.min_reminder_interval: must not be negative"))
	}
	return errors.Join(errs...)
}

// ModelOptions returns the compile options derived from the configuration.
func (c Config) ModelOptions() model.Options {
	return model.Options{MinReminderInterval: c.Timers.MinReminderInterval}
}

// EngineConfig returns the cursor configuration.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{SkipAfter: c.Timers.SleepSkipAfter}
}
