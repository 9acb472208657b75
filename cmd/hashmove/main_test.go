package main

import (
	"testing"

	"github.com/spf13/cobra"

	"hashmove/internal/config"
)

func TestApplyMode(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		config bool
		want   bool
	}{
		{"config default kept", nil, true, true},
		{"live overrides", []string{"--live"}, true, false},
		{"dry-run overrides", []string{"--dry-run"}, false, true},
		{"live config kept", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().Bool("dry-run", false, "")
			cmd.Flags().Bool("live", false, "")
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			cfg := &config.Config{DryRun: tt.config}
			applyMode(cmd, cfg)
			if cfg.DryRun != tt.want {
				t.Errorf("DryRun = %v, want %v", cfg.DryRun, tt.want)
			}
		})
	}
}

func TestConfirmLive_DryRunNeverAsks(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().BoolP("yes", "y", false, "")
	ok, err := confirmLive(cmd, &config.Config{DryRun: true}, "migration")
	if err != nil || !ok {
		t.Errorf("confirmLive() = %v, %v", ok, err)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID() = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID() = %q", got)
	}
}
