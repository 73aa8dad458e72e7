package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
	"gopkg.in/yaml.v3"
)

func TestParseWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	w, err := parseWindow("2024-03-01", "2024-03-31", "America/New_York")
	if err != nil {
		t.Fatalf("parseWindow() error: %v", err)
	}

	wantStart := time.Date(2024, 3, 1, 0, 0, 0, 0, ny)
	wantEnd := time.Date(2024, 4, 1, 0, 0, 0, 0, ny)
	if !w.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v (a --to date includes the whole day)", w.End, wantEnd)
	}
	if w.Location.String() != "America/New_York" {
		t.Errorf("Location = %v", w.Location)
	}
}

func TestParseWindow_TimestampsAndOpenBounds(t *testing.T) {
	w, err := parseWindow("", "2024-03-01T12:00:00Z", "")
	if err != nil {
		t.Fatalf("parseWindow() error: %v", err)
	}
	if !w.Start.IsZero() {
		t.Errorf("Start = %v, want open", w.Start)
	}
	if !w.End.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("End = %v, a timestamp bound is exclusive as given", w.End)
	}
}

func TestParseWindow_Errors(t *testing.T) {
	tests := []struct {
		name, from, to, tz string
	}{
		{"bad date", "03/01/2024", "", ""},
		{"bad timezone", "", "", "Mars/Olympus"},
		{"inverted", "2024-03-05", "2024-03-01", ""},
		{"too wide", "0001-01-01", "9999-12-31", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseWindow(tt.from, tt.to, tt.tz); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claimsense", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# ClaimSense Configuration File") {
		t.Errorf("missing header:\n%s", data)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config does not parse: %v", err)
	}
	if cfg.Rules.ChargeMultiplier != 2.0 || cfg.Store.Path != "claimsense.db" {
		t.Errorf("unexpected round-tripped config: %+v", cfg)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected an error when the config already exists")
	}
}
