// Package config loads winderd's configuration from an optional YAML
// file plus WINDER_-prefixed environment variables (e.g.
// WINDER_MOTION_RPM for motion.rpm), which override file values, using
// viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for winderd.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Motion  MotionConfig  `mapstructure:"motion"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server settings for internal/api.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MotionConfig seeds the Motion Loop's startup calibration (spec.md §6).
type MotionConfig struct {
	XStepsPerRev  int     `mapstructure:"x_steps_per_rev"`
	YStepsPerMM   float64 `mapstructure:"y_steps_per_mm"`
	PitchMM       float64 `mapstructure:"pitch_mm"`
	BobbinWidthMM float64 `mapstructure:"bobbin_width_mm"`
	RPM           int     `mapstructure:"rpm"`
	UseMockHAL    bool    `mapstructure:"use_mock_hal"`
	EncoderEnable bool    `mapstructure:"encoder_enable"`
}

// LoggerConfig contains logging settings, consumed by internal/logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
// configPath may be empty, in which case ./config.yaml,
// ./configs/config.yaml and ~/.winderd/config.yaml are searched.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	v.SetEnvPrefix("WINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)

	// Startup calibration matches spec.md §6's "Startup defaults".
	v.SetDefault("motion.x_steps_per_rev", 6400)
	v.SetDefault("motion.y_steps_per_mm", 800.0)
	v.SetDefault("motion.pitch_mm", 0.0)
	v.SetDefault("motion.bobbin_width_mm", 21.85)
	v.SetDefault("motion.rpm", 200)
	v.SetDefault("motion.use_mock_hal", false)
	v.SetDefault("motion.encoder_enable", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.dir", "./logs")
	v.SetDefault("logger.max_size_mb", 20)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("metrics.enabled", true)
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".winderd")
}
