package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Config{
		DB:        ".turnwheel/turnwheel.db",
		Backend:   BackendSQLite,
		Slot:      "suspend",
		KeepSaves: 3,
		MaxUses:   -1,
		LogLevel:  "warn",
	}
	if cfg != want {
		t.Fatalf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TURNWHEEL_BACKEND", "bbolt")
	t.Setenv("TURNWHEEL_MAX_USES", "3")
	t.Setenv("TURNWHEEL_METRICS", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendBolt || cfg.MaxUses != 3 || !cfg.Metrics {
		t.Fatalf("Load() = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad int", "TURNWHEEL_KEEP_SAVES", "lots", "parse env:"},
		{"bad backend", "TURNWHEEL_BACKEND", "postgres", "unknown backend"},
		{"zero keep", "TURNWHEEL_KEEP_SAVES", "0", "keep saves"},
		{"bad level", "TURNWHEEL_LOG_LEVEL", "chatty", "config:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Config{LogLevel: "debug"}
	l, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Error("debug not enabled")
	}
}
