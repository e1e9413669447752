package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	// Empty values fall through to the defaults, shielding the test from
	// whatever the surrounding environment carries.
	for _, key := range []string{
		"PORT", "MAX_UPLOAD_MB", "RENDER_THUMB_DPI", "RENDER_JPEG_QUALITY",
		"RETOUCH_MODEL", "RETOUCH_TIMEOUT", "AXIOM_DATASET",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadMB != 64 {
		t.Errorf("MaxUploadMB = %d, want 64", cfg.Server.MaxUploadMB)
	}
	if cfg.Render.ThumbDPI != 36 {
		t.Errorf("ThumbDPI = %v, want 36", cfg.Render.ThumbDPI)
	}
	if cfg.Render.JPEGQuality != 80 {
		t.Errorf("JPEGQuality = %d, want 80", cfg.Render.JPEGQuality)
	}
	if cfg.Retouch.Model != "gemini-2.5-flash-image-preview" {
		t.Errorf("Model = %q", cfg.Retouch.Model)
	}
	if cfg.Retouch.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Retouch.Timeout)
	}
	if cfg.Axiom.Dataset != "dev_pdfassembly" {
		t.Errorf("Dataset = %q, want dev_pdfassembly", cfg.Axiom.Dataset)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RENDER_THUMB_DPI", "72")
	t.Setenv("RETOUCH_TIMEOUT", "5s")
	t.Setenv("AXIOM_DATASET", "prod")

	cfg := FromEnv()
	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Server.Port)
	}
	if cfg.Render.ThumbDPI != 72 {
		t.Errorf("ThumbDPI = %v, want 72", cfg.Render.ThumbDPI)
	}
	if cfg.Retouch.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Retouch.Timeout)
	}
	if cfg.Axiom.Dataset != "prod_pdfassembly" {
		t.Errorf("Dataset = %q, want prod_pdfassembly", cfg.Axiom.Dataset)
	}
}

func TestParseHelpers(t *testing.T) {
	if got := parseInt("not a number", 7); got != 7 {
		t.Errorf("parseInt fallback = %d, want 7", got)
	}
	if got := parseFloat("", 1.5); got != 1.5 {
		t.Errorf("parseFloat fallback = %v, want 1.5", got)
	}
	if got := parseDuration("nope", time.Second); got != time.Second {
		t.Errorf("parseDuration fallback = %v, want 1s", got)
	}

	boolTests := []struct {
		in   string
		want bool
	}{
		{"1", true}, {"true", true}, {"YES", true}, {" on ", true},
		{"0", false}, {"false", false}, {"", false}, {"maybe", false},
	}
	for _, tt := range boolTests {
		if got := parseBool(tt.in); got != tt.want {
			t.Errorf("parseBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
