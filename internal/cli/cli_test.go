package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseArgsDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvPort, "")
	t.Setenv(EnvSoundFont, "")
	cfg, err := ParseArgs([]string{"C", "D", "E"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Music != "C D E" || cfg.Port != 0 || cfg.LogLevel != "info" || cfg.Tick != 5*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestParseArgsFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{"-port", "2", "-tick", "10", "-out", "x.mid", "-log-level", "debug", "-dry-run", "C"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 2 || cfg.Tick != 10*time.Millisecond || cfg.Output != "x.mid" || cfg.LogLevel != "debug" || !cfg.DryRun {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestEnvironmentFillsUnsetFlags(t *testing.T) {
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvPort, "3")
	t.Setenv(EnvSoundFont, "/tmp/gm.sf2")
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Port != 3 || cfg.SoundFont != "/tmp/gm.sf2" {
		t.Fatalf("environment not applied: %+v", cfg)
	}
	cfg, err = ParseArgs([]string{"-port", "1", "-log-level", "error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 1 || cfg.LogLevel != "error" {
		t.Fatalf("flags should win over environment: %+v", cfg)
	}
}

func TestParseArgsErrors(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvLogLevel, "")
	cases := [][]string{
		{"-log-level", "loud"},
		{"-port", "-1"},
		{"-tick", "0"},
		{"-sample-rate", "0"},
		{"-bogus"},
	}
	for _, args := range cases {
		if _, err := ParseArgs(args); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
	t.Setenv(EnvPort, "two")
	if _, err := ParseArgs(nil); err == nil {
		t.Fatalf("expected error for bad port environment")
	}
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf)
	if !strings.Contains(buf.String(), EnvSoundFont) {
		t.Fatalf("help does not mention %s", EnvSoundFont)
	}
}
