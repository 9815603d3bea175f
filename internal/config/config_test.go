package config

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetSingleton() {
	instance = nil
	once = sync.Once{}
	loadErr = nil
}

// TestGetUninitialized verifies that calling Get() before Load() causes a panic.
func TestGetUninitialized(t *testing.T) {
	resetSingleton()

	assert.Panics(t, func() {
		Get()
	}, "Get() should panic if configuration is not initialized")
}

// TestLoadAndGet verifies the basic singleton load and get functionality.
func TestLoadAndGet(t *testing.T) {
	resetSingleton()

	yamlConfig := []byte(`
store:
  backend: "file"
  data_dir: "/tmp/exploration"
merge:
  vertical_tolerance_px: 40
guard:
  max_attempts: 5
`)

	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBuffer(yamlConfig))
	require.NoError(t, err)

	err = Load(v)
	require.NoError(t, err)

	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, "/tmp/exploration", cfg.Store.DataDir)
	assert.Equal(t, 40, cfg.Merge.VerticalTolerancePx)
	assert.Equal(t, 5, cfg.Guard.MaxAttempts)

	// Subsequent calls to Load must not change the instance.
	v2 := viper.New()
	v2.SetConfigType("yaml")
	_ = v2.ReadConfig(bytes.NewBuffer([]byte(`store: {data_dir: "elsewhere"}`)))
	err = Load(v2)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/exploration", Get().Store.DataDir)
}

// TestDefaults verifies that SetDefaults produces a configuration that
// passes validation without any config file at all.
func TestDefaults(t *testing.T) {
	resetSingleton()

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, Load(v))

	cfg := Get()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 30, cfg.Merge.VerticalTolerancePx)
	assert.Equal(t, 3, cfg.Guard.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Guard.Window)
	assert.Equal(t, 10, cfg.Guard.AttemptLogCap)
	assert.InDelta(t, 0.005, cfg.Guard.PixelDiffThreshold, 1e-9)
	assert.Zero(t, cfg.Guard.AssumeSuccessAfter, "assume-success fallback must be opt-in")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store: StoreConfig{Backend: "file", DataDir: "./exploration"},
			Merge: MergeConfig{VerticalTolerancePx: 30},
			Guard: GuardConfig{
				MaxAttempts:        3,
				Window:             time.Minute,
				AttemptLogCap:      10,
				PixelDiffThreshold: 0.005,
			},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid file backend", func(c *Config) {}, ""},
		{"postgres backend without url", func(c *Config) {
			c.Store.Backend = "postgres"
		}, "postgres.url"},
		{"postgres backend with url", func(c *Config) {
			c.Store.Backend = "postgres"
			c.Postgres.URL = "postgres://localhost/cartographer"
		}, ""},
		{"unknown backend", func(c *Config) {
			c.Store.Backend = "redis"
		}, "unknown store backend"},
		{"negative tolerance", func(c *Config) {
			c.Merge.VerticalTolerancePx = -1
		}, "vertical_tolerance_px"},
		{"zero attempts", func(c *Config) {
			c.Guard.MaxAttempts = 0
		}, "max_attempts"},
		{"threshold out of range", func(c *Config) {
			c.Guard.PixelDiffThreshold = 1.5
		}, "pixel_diff_threshold"},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
