package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", c.Server.Port)
	}
	if c.Server.BatchPacing != 500*time.Millisecond {
		t.Errorf("pacing = %v, want 500ms", c.Server.BatchPacing)
	}
	if !c.Server.ValidateKey {
		t.Error("ValidateKey should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FEDPATH_PORT", "9090")
	t.Setenv("FEDPATH_BATCH_PACING", "2s")
	t.Setenv("FEDPATH_LOG_LEVEL", "debug")
	t.Setenv("FEDPATH_REPORT_BUCKET", "reports")
	t.Setenv("GEMINI_MODEL", "gemini-custom")
	t.Setenv("GEMINI_API_KEY", "k")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 9090 || c.Server.BatchPacing != 2*time.Second || c.Server.ReportBucket != "reports" {
		t.Errorf("server = %+v", c.Server)
	}
	if c.Gemini.Model != "gemini-custom" || c.Gemini.APIKey != "k" {
		t.Errorf("gemini = %+v", c.Gemini)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, key, value, wantErr string
	}{
		{"port", "FEDPATH_PORT", "70000", "out of range"},
		{"pacing", "FEDPATH_BATCH_PACING", "-1s", "negative"},
		{"level", "FEDPATH_LOG_LEVEL", "loud", "log level"},
		{"not a number", "FEDPATH_PORT", "abc", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
