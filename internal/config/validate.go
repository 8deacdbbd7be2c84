package config

import (
	"fmt"
	"net"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"warning": true,
	"error": true,
}

// ValidationResult splits config problems into warnings (logged, startup
// continues with a clamped/defaulted value) and fatals (startup aborts).
type ValidationResult struct {
	Warnings []error
	Fatals   []error
}

// HasFatals reports whether any fatal validation error was recorded.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings, for callers that just want
// to print everything found.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config for invalid values, clamping dangerous
// zero-values to safe defaults and splitting the rest into warnings vs
// fatals. A missing gRPC target is the only fatal: every other field has a
// safe fallback the pipeline can run with.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	if strings.TrimSpace(c.GRPCTarget) == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("grpc_target is required"))
	} else if _, _, err := net.SplitHostPort(c.GRPCTarget); err != nil {
		result.Warnings = append(result.Warnings, fmt.Errorf("grpc_target %q is not host:port: %w", c.GRPCTarget, err))
	}

	if c.JPEGQuality < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("jpeg_quality %d is below minimum 1, defaulting to 70", c.JPEGQuality))
		c.JPEGQuality = 70
	} else if c.JPEGQuality > 100 {
		result.Warnings = append(result.Warnings, fmt.Errorf("jpeg_quality %d exceeds maximum 100, clamping", c.JPEGQuality))
		c.JPEGQuality = 100
	}

	if c.ScoreThreshold < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("score_threshold %f is below minimum 0, clamping", c.ScoreThreshold))
		c.ScoreThreshold = 0
	} else if c.ScoreThreshold > 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("score_threshold %f exceeds maximum 1, clamping", c.ScoreThreshold))
		c.ScoreThreshold = 1
	}

	if strings.TrimSpace(c.ImagePrefix) == "" {
		result.Warnings = append(result.Warnings, fmt.Errorf("image_prefix is empty, defaulting to %q", "img"))
		c.ImagePrefix = "img"
	}

	if strings.TrimSpace(c.StreamBase) == "" {
		result.Warnings = append(result.Warnings, fmt.Errorf("stream_base is empty, defaulting to %q", "default"))
		c.StreamBase = "default"
	}

	if c.CaptureWidth < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("capture_width %d is below minimum 1, clamping to 640", c.CaptureWidth))
		c.CaptureWidth = 640
	}
	if c.CaptureHeight < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("capture_height %d is below minimum 1, clamping to 480", c.CaptureHeight))
		c.CaptureHeight = 480
	}
	if c.CaptureFPS < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("capture_fps %d is below minimum 1, clamping to 30", c.CaptureFPS))
		c.CaptureFPS = 30
	} else if c.CaptureFPS > 120 {
		result.Warnings = append(result.Warnings, fmt.Errorf("capture_fps %d exceeds maximum 120, clamping", c.CaptureFPS))
		c.CaptureFPS = 120
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), defaulting to info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), defaulting to text", c.LogFormat))
		c.LogFormat = "text"
	}

	return result
}
