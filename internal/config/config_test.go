package config

import (
	"testing"
	"time"
)

func TestParseArgsModes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Mode
	}{
		{"service", []string{"-t", "secret"}, ModeService},
		{"one-shot query", []string{"mc.example.com"}, ModeQuery},
		{"fake server", []string{"--fake-listen", "127.0.0.1:25565"}, ModeFake},
		{"prune", []string{"--db-prune-history", "720h"}, ModeMaintenance},
		{"recheck", []string{"--db-recheck"}, ModeMaintenance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseArgs(%v): %v", tt.args, err)
			}
			if got := cfg.Mode(); got != tt.want {
				t.Fatalf("Mode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs([]string{"play.example.com:25566"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.SLP.Timeout != 5*time.Second || cfg.SLP.Protocol != 754 || cfg.SLP.MaxLength != 1<<20 || cfg.SLP.DefaultPort != 25565 {
		t.Errorf("slp defaults = %+v", cfg.SLP)
	}
	if cfg.Args.Address != "play.example.com:25566" {
		t.Errorf("address = %q", cfg.Args.Address)
	}
	if cfg.Server.CacheTTL != 30*time.Second {
		t.Errorf("cache ttl = %s", cfg.Server.CacheTTL)
	}
}

func TestParseArgsServiceNeedsToken(t *testing.T) {
	t.Setenv("MCPING_AUTH_TOKEN", "")

	if _, err := ParseArgs(nil); err == nil {
		t.Fatal("service mode without auth token accepted")
	}
}

func TestParseArgsBadTimeout(t *testing.T) {
	if _, err := ParseArgs([]string{"--slp-timeout", "0s", "localhost"}); err == nil {
		t.Fatal("zero timeout accepted")
	}
}
