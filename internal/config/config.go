// The application's root configuration.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Store    StoreConfig    `mapstructure:"store"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Merge    MergeConfig    `mapstructure:"merge"`
	Guard    GuardConfig    `mapstructure:"guard"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Explore  ExploreConfig  `mapstructure:"explore"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// StoreConfig selects and tunes the persisted-document backend.
type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend string `mapstructure:"backend"`
	// DataDir is where the file backend keeps one document per application.
	DataDir string `mapstructure:"data_dir"`
}

// PostgresConfig holds settings for the optional database-backed store.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// MergeConfig tunes the indicator-glyph merger.
type MergeConfig struct {
	// VerticalTolerancePx bounds how far apart the vertical centers of a
	// glyph and its owning element may be.
	VerticalTolerancePx int `mapstructure:"vertical_tolerance_px"`
}

// GuardConfig tunes the bounded-retry guard for corrective actions.
type GuardConfig struct {
	MaxAttempts        int           `mapstructure:"max_attempts"`
	Window             time.Duration `mapstructure:"window"`
	AttemptLogCap      int           `mapstructure:"attempt_log_cap"`
	PixelDiffThreshold float64       `mapstructure:"pixel_diff_threshold"`
	// AssumeSuccessAfter enables the wait-then-assume-success fallback when
	// no effect comparator is available. Zero disables the fallback and
	// treats unverifiable attempts as failed.
	AssumeSuccessAfter time.Duration `mapstructure:"assume_success_after"`
}

// EngineConfig holds settings for the exploration session loop.
type EngineConfig struct {
	ActivationTimeout time.Duration `mapstructure:"activation_timeout"`
	CaptureTimeout    time.Duration `mapstructure:"capture_timeout"`
	PersistTimeout    time.Duration `mapstructure:"persist_timeout"`
	MaxIterations     int           `mapstructure:"max_iterations"`
}

// BrowserConfig holds settings for the reference browser collaborators.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args"`
	Viewport        map[string]int `mapstructure:"viewport"`
	NavTimeout      time.Duration  `mapstructure:"nav_timeout"`
	SettleDelay     time.Duration  `mapstructure:"settle_delay"`
}

// ExploreConfig holds settings specific to one exploration run
// (populated by CLI flags).
type ExploreConfig struct {
	AppName string
	Target  string
	Policy  string
}

// SetDefaults installs the baseline values so the app can run with a
// minimal config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "cartographer")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "red")

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.data_dir", "./exploration")

	v.SetDefault("merge.vertical_tolerance_px", 30)

	v.SetDefault("guard.max_attempts", 3)
	v.SetDefault("guard.window", time.Minute)
	v.SetDefault("guard.attempt_log_cap", 10)
	v.SetDefault("guard.pixel_diff_threshold", 0.005)
	v.SetDefault("guard.assume_success_after", time.Duration(0))

	v.SetDefault("engine.activation_timeout", 30*time.Second)
	v.SetDefault("engine.capture_timeout", 30*time.Second)
	v.SetDefault("engine.persist_timeout", 10*time.Second)
	v.SetDefault("engine.max_iterations", 0)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", 45*time.Second)
	v.SetDefault("browser.settle_delay", 1500*time.Millisecond)
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the file backend")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want file or postgres)", c.Store.Backend)
	}

	if c.Merge.VerticalTolerancePx < 0 {
		return fmt.Errorf("merge.vertical_tolerance_px must not be negative")
	}
	if c.Guard.MaxAttempts <= 0 {
		return fmt.Errorf("guard.max_attempts must be positive")
	}
	if c.Guard.Window <= 0 {
		return fmt.Errorf("guard.window must be positive")
	}
	if c.Guard.AttemptLogCap <= 0 {
		return fmt.Errorf("guard.attempt_log_cap must be positive")
	}
	if c.Guard.PixelDiffThreshold <= 0 || c.Guard.PixelDiffThreshold >= 1 {
		return fmt.Errorf("guard.pixel_diff_threshold must be in (0, 1)")
	}
	return nil
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores an already-built configuration as the singleton. Intended for
// tests and for callers that assemble the config themselves.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
