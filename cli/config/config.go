package config

import (
	"fmt"
	"time"

	"github.com/stratocore/obcsim/scanner"
	"github.com/stratocore/obcsim/transmit"
	"github.com/stratocore/obcsim/types"
)

// Config represents an obcsim.yaml configuration file.
// All values are optional and act as defaults for obcsim run flags.
// CLI flags always override config values.
type Config struct {
	Instrument       string        `yaml:"instrument"`
	AutoAck          *bool         `yaml:"auto_ack"`
	MaxFrameLength   int           `yaml:"max_frame_length"`
	ZephyrPort       string        `yaml:"zephyr_port"`
	LogPort          string        `yaml:"log_port"`
	Baud             int           `yaml:"baud"`
	DataDir          string        `yaml:"data_dir"`
	AutoGPS          bool          `yaml:"auto_gps"`
	GPSInterval      Duration      `yaml:"gps_interval"`
	SolarZenithAngle float64       `yaml:"solar_zenith_angle"`
	Storage          StorageConfig `yaml:"storage"`
}

// StorageConfig holds archive storage defaults from the config file.
type StorageConfig struct {
	// Backend selects the archive destination: "local" (default) or "s3"
	// (local archive plus an S3 mirror at session close).
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// AutoAckEnabled reports the auto-ack setting; unset defaults to true.
func (c *Config) AutoAckEnabled() bool {
	if c.AutoAck == nil {
		return true
	}
	return *c.AutoAck
}

// EffectiveBaud returns the configured baud rate or the link default.
func (c *Config) EffectiveBaud() int {
	if c.Baud <= 0 {
		return transmit.DefaultBaud
	}
	return c.Baud
}

// EffectiveMaxFrameLength returns the frame length bound or its default.
func (c *Config) EffectiveMaxFrameLength() int {
	if c.MaxFrameLength <= 0 {
		return scanner.DefaultMaxFrameLength
	}
	return c.MaxFrameLength
}

// EffectiveGPSInterval returns the GPS send period or the default 10s.
func (c *Config) EffectiveGPSInterval() time.Duration {
	if c.GPSInterval.Duration <= 0 {
		return 10 * time.Second
	}
	return c.GPSInterval.Duration
}

// Validate checks field values that have a closed domain.
func (c *Config) Validate() error {
	if c.Instrument != "" && !types.ValidInstrument(c.Instrument) {
		return fmt.Errorf("unknown instrument %q", c.Instrument)
	}
	switch c.Storage.Backend {
	case "", "local", "s3":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.Path == "" {
		return fmt.Errorf("storage backend s3 requires storage.path (bucket or bucket/prefix)")
	}
	return nil
}
