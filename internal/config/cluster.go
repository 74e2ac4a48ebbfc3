package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/cluster.defaults.json"

// Default values for fields omitted from a config file.
const (
	DefaultClusterMode      = "PixelThresholdClusterizer"
	DefaultDigiProducer     = "siPixelDigis"
	DefaultChannelThreshold = 2.5
	DefaultSeedThreshold    = 4.0
	DefaultClusterThreshold = 5.0
	DefaultNoiseValue       = 2.0
	DefaultNoiseChannels    = 768
	DefaultWorkers          = 1
	DefaultGeometryCacheTTL = 5 * time.Minute
	DefaultStopOnFatal      = true
)

// maxWorkers bounds per-unit parallelism.
const maxWorkers = 256

// ClusterConfig is the root configuration of the cluster producer.
// All fields are optional; the Get* methods supply defaults.
type ClusterConfig struct {
	// Producer
	ClusterMode  *string `json:"cluster_mode,omitempty"`
	DigiProducer *string `json:"digi_producer,omitempty"`
	Workers      *int    `json:"workers,omitempty"`

	// Threshold clusterizer, in units of channel noise
	ChannelThreshold *float64 `json:"channel_threshold,omitempty"`
	SeedThreshold    *float64 `json:"seed_threshold,omitempty"`
	ClusterThreshold *float64 `json:"cluster_threshold,omitempty"`

	// Placeholder conditions
	NoiseValue    *float64 `json:"noise_value,omitempty"`
	NoiseChannels *int     `json:"noise_channels,omitempty"`

	// Geometry
	GeometryCacheTTL *string `json:"geometry_cache_ttl,omitempty"` // duration string like "5m"

	// Event loop
	StopOnFatal *bool `json:"stop_on_fatal,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultClusterConfig returns a config with every field populated.
func DefaultClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		ClusterMode:      ptrString(DefaultClusterMode),
		DigiProducer:     ptrString(DefaultDigiProducer),
		Workers:          ptrInt(DefaultWorkers),
		ChannelThreshold: ptrFloat64(DefaultChannelThreshold),
		SeedThreshold:    ptrFloat64(DefaultSeedThreshold),
		ClusterThreshold: ptrFloat64(DefaultClusterThreshold),
		NoiseValue:       ptrFloat64(DefaultNoiseValue),
		NoiseChannels:    ptrInt(DefaultNoiseChannels),
		GeometryCacheTTL: ptrString(DefaultGeometryCacheTTL.String()),
		StopOnFatal:      ptrBool(DefaultStopOnFatal),
	}
}

// LoadClusterConfig loads a ClusterConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to defaults, so partial configs are safe.
func LoadClusterConfig(path string) (*ClusterConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ClusterConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// current directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *ClusterConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/pixel/*
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadClusterConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. The mode name
// is not checked here: an unknown mode leaves the producer loaded but
// not ready.
func (c *ClusterConfig) Validate() error {
	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"channel_threshold", c.ChannelThreshold},
		{"seed_threshold", c.SeedThreshold},
		{"cluster_threshold", c.ClusterThreshold},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}
	if c.GetSeedThreshold() < c.GetChannelThreshold() {
		return fmt.Errorf("seed_threshold (%f) must not be below channel_threshold (%f)",
			c.GetSeedThreshold(), c.GetChannelThreshold())
	}
	if c.NoiseValue != nil && *c.NoiseValue <= 0 {
		return fmt.Errorf("noise_value must be positive, got %f", *c.NoiseValue)
	}
	if c.NoiseChannels != nil && *c.NoiseChannels <= 0 {
		return fmt.Errorf("noise_channels must be positive, got %d", *c.NoiseChannels)
	}
	if c.Workers != nil && (*c.Workers < 1 || *c.Workers > maxWorkers) {
		return fmt.Errorf("workers must be between 1 and %d, got %d", maxWorkers, *c.Workers)
	}
	if c.GeometryCacheTTL != nil && *c.GeometryCacheTTL != "" {
		d, err := time.ParseDuration(*c.GeometryCacheTTL)
		if err != nil {
			return fmt.Errorf("invalid geometry_cache_ttl '%s': %w", *c.GeometryCacheTTL, err)
		}
		if d < 0 {
			return fmt.Errorf("geometry_cache_ttl must be non-negative, got %s", d)
		}
	}
	return nil
}

// GetClusterMode returns the cluster_mode value or the default.
func (c *ClusterConfig) GetClusterMode() string {
	if c.ClusterMode == nil {
		return DefaultClusterMode
	}
	return *c.ClusterMode
}

// GetDigiProducer returns the digi_producer value or the default.
func (c *ClusterConfig) GetDigiProducer() string {
	if c.DigiProducer == nil || *c.DigiProducer == "" {
		return DefaultDigiProducer
	}
	return *c.DigiProducer
}

// GetWorkers returns the workers value or the default.
func (c *ClusterConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetChannelThreshold returns the channel_threshold value or the default.
func (c *ClusterConfig) GetChannelThreshold() float64 {
	if c.ChannelThreshold == nil {
		return DefaultChannelThreshold
	}
	return *c.ChannelThreshold
}

// GetSeedThreshold returns the seed_threshold value or the default.
func (c *ClusterConfig) GetSeedThreshold() float64 {
	if c.SeedThreshold == nil {
		return DefaultSeedThreshold
	}
	return *c.SeedThreshold
}

// GetClusterThreshold returns the cluster_threshold value or the default.
func (c *ClusterConfig) GetClusterThreshold() float64 {
	if c.ClusterThreshold == nil {
		return DefaultClusterThreshold
	}
	return *c.ClusterThreshold
}

// GetNoiseValue returns the noise_value value or the default.
func (c *ClusterConfig) GetNoiseValue() float64 {
	if c.NoiseValue == nil {
		return DefaultNoiseValue
	}
	return *c.NoiseValue
}

// GetNoiseChannels returns the noise_channels value or the default.
func (c *ClusterConfig) GetNoiseChannels() int {
	if c.NoiseChannels == nil {
		return DefaultNoiseChannels
	}
	return *c.NoiseChannels
}

// GetGeometryCacheTTL parses and returns geometry_cache_ttl.
func (c *ClusterConfig) GetGeometryCacheTTL() time.Duration {
	if c.GeometryCacheTTL == nil || *c.GeometryCacheTTL == "" {
		return DefaultGeometryCacheTTL
	}
	d, err := time.ParseDuration(*c.GeometryCacheTTL)
	if err != nil {
		return DefaultGeometryCacheTTL // default on parse error
	}
	return d
}

// GetStopOnFatal returns the stop_on_fatal value or the default.
func (c *ClusterConfig) GetStopOnFatal() bool {
	if c.StopOnFatal == nil {
		return DefaultStopOnFatal
	}
	return *c.StopOnFatal
}

// JSON returns the config with defaults filled in, as recorded with each
// processing run.
func (c *ClusterConfig) JSON() ([]byte, error) {
	resolved := &ClusterConfig{
		ClusterMode:      ptrString(c.GetClusterMode()),
		DigiProducer:     ptrString(c.GetDigiProducer()),
		Workers:          ptrInt(c.GetWorkers()),
		ChannelThreshold: ptrFloat64(c.GetChannelThreshold()),
		SeedThreshold:    ptrFloat64(c.GetSeedThreshold()),
		ClusterThreshold: ptrFloat64(c.GetClusterThreshold()),
		NoiseValue:       ptrFloat64(c.GetNoiseValue()),
		NoiseChannels:    ptrInt(c.GetNoiseChannels()),
		GeometryCacheTTL: ptrString(c.GetGeometryCacheTTL().String()),
		StopOnFatal:      ptrBool(c.GetStopOnFatal()),
	}
	return json.Marshal(resolved)
}
