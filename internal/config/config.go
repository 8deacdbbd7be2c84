// Package config loads the demo-harness configuration for cmd/aivd.
//
// The streaming library itself (package session) never reads files or
// environment variables: every setting reaches it through an explicit
// Controller setter call (spec §4.6). This package only exists to feed
// those setters from a YAML file / env vars for the command-line harness,
// the way the teacher's internal/config feeds its agent binary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/t-34400/quest-grpc/internal/logging"
)

var log = logging.L("config")

// Config mirrors the configuration surface described in spec §6.
type Config struct {
	GRPCTarget     string  `mapstructure:"grpc_target"`
	JPEGQuality    int     `mapstructure:"jpeg_quality"`
	ScoreThreshold float32 `mapstructure:"score_threshold"`
	ImagePrefix    string  `mapstructure:"image_prefix"`
	StreamBase     string  `mapstructure:"stream_base"`

	LeftCameraDevice  string `mapstructure:"left_camera_device"`
	RightCameraDevice string `mapstructure:"right_camera_device"`
	CaptureWidth      int    `mapstructure:"capture_width"`
	CaptureHeight     int    `mapstructure:"capture_height"`
	CaptureFPS        int    `mapstructure:"capture_fps"`

	// StampMissingTimestamps opts in to substituting session.MonotonicNanos()
	// for a captured frame whose backend reports no timestamp. Default false:
	// a zero timestamp passes through unchanged, per the RawFrame invariant.
	StampMissingTimestamps bool `mapstructure:"stamp_missing_timestamps"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
	return &Config{
		JPEGQuality:    70,
		ScoreThreshold: 0,
		ImagePrefix:    "img",
		StreamBase:     "default",
		CaptureWidth:   640,
		CaptureHeight:  480,
		CaptureFPS:     30,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads cfgFile (or the platform config dir / cwd if empty), overlays
// AIV_-prefixed environment variables, and validates the result.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("aivd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("AIV")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Validate config: fatals block startup, warnings are logged and continue.
	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "aivd")
	case "darwin":
		return "/Library/Application Support/aivd"
	default:
		return "/etc/aivd"
	}
}
