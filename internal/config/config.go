package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SerialConfig describes the modem diag port
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baudRate"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// CaptureConfig controls what the collector records and how it flushes
type CaptureConfig struct {
	Types         []string      `mapstructure:"types"`       // category names; empty enables the whole catalog
	SkipPayload   bool          `mapstructure:"skipPayload"` // store headers only
	FlushSize     int           `mapstructure:"flushSize"`
	FlushInterval time.Duration `mapstructure:"flushInterval"`
}

// DatabaseConfig locates the SQLite capture store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LumberjackConfig controls log file rotation
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig selects log level, format and file output
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig exposes the Prometheus endpoint
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

// Config is the top-level configuration structure
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Load reads configuration from a YAML file and the environment. An empty
// path falls back to the DMCOLLECT_CONFIG environment variable, then to
// dmcollect.yaml in the working directory or ./configs. A missing file is
// fine: defaults and DMCOLLECT_* environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("DMCOLLECT_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("dmcollect")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// Environment overrides: DMCOLLECT_ prefix, dots become underscores
	v.SetEnvPrefix("DMCOLLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the collector cannot run with
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port must not be empty")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baudRate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.readTimeout must be positive, got %s", c.Serial.ReadTimeout)
	}
	if c.Capture.FlushSize <= 0 {
		return fmt.Errorf("capture.flushSize must be positive, got %d", c.Capture.FlushSize)
	}
	if c.Capture.FlushInterval <= 0 {
		return fmt.Errorf("capture.flushInterval must be positive, got %s", c.Capture.FlushInterval)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Metrics.Enable && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must not be empty when metrics are enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", 115200)
	v.SetDefault("serial.readTimeout", "200ms")

	v.SetDefault("capture.types", []string{})
	v.SetDefault("capture.skipPayload", false)
	v.SetDefault("capture.flushSize", 256)
	v.SetDefault("capture.flushInterval", "1s")

	v.SetDefault("database.path", "dmcollect.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")
}
