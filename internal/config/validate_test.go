package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredMissingGRPCTargetIsFatal(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = ""
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("missing grpc_target should be fatal")
	}
}

func TestValidateTieredMalformedGRPCTargetIsWarning(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "not-a-host-port"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("malformed grpc_target should be a warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for malformed grpc_target")
	}
}

func TestValidateTieredJPEGQualityClamping(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "vision.local:50051"
	cfg.JPEGQuality = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped jpeg_quality should be warning, not fatal: %v", result.Fatals)
	}
	if cfg.JPEGQuality != 70 {
		t.Fatalf("JPEGQuality = %d, want 70 (default)", cfg.JPEGQuality)
	}

	cfg.JPEGQuality = 500
	result = cfg.ValidateTiered()
	if cfg.JPEGQuality != 100 {
		t.Fatalf("JPEGQuality = %d, want 100 (clamped)", cfg.JPEGQuality)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for out-of-range jpeg_quality")
	}
}

func TestValidateTieredScoreThresholdClamping(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "vision.local:50051"
	cfg.ScoreThreshold = -1
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped score_threshold should be warning: %v", result.Fatals)
	}
	if cfg.ScoreThreshold != 0 {
		t.Fatalf("ScoreThreshold = %f, want 0", cfg.ScoreThreshold)
	}
}

func TestValidateTieredEmptyPrefixIsWarning(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "vision.local:50051"
	cfg.ImagePrefix = ""
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("empty image_prefix should not be fatal")
	}
	if cfg.ImagePrefix != "img" {
		t.Fatalf("ImagePrefix = %q, want default %q", cfg.ImagePrefix, "img")
	}
}

func TestValidateTieredCaptureDimensionClamping(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "vision.local:50051"
	cfg.CaptureWidth = 0
	cfg.CaptureHeight = -5
	cfg.CaptureFPS = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped capture dims should be warning: %v", result.Fatals)
	}
	if cfg.CaptureWidth != 640 || cfg.CaptureHeight != 480 || cfg.CaptureFPS != 30 {
		t.Fatalf("capture dims not clamped to defaults: %+v", cfg)
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "vision.local:50051"
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want default %q", cfg.LogLevel, "info")
	}
}

func TestValidateTieredInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "vision.local:50051"
	cfg.LogFormat = "xml"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = ""                // fatal
	cfg.LogFormat = "xml"              // warning
	result := cfg.ValidateTiered()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
	if !strings.Contains(all[0].Error(), "grpc_target") {
		t.Fatalf("expected fatals to come first, got: %v", all[0])
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	cfg.GRPCTarget = "vision.local:50051"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("valid config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("valid config has warnings: %v", result.Warnings)
	}
}
