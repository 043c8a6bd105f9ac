package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "restscrape" {
			t.Errorf("expected use 'restscrape', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()

		hasScrape := false
		hasExport := false
		hasStats := false
		hasAreas := false
		hasVersion := false
		for _, sub := range cmd.Commands() {
			switch sub.Use {
			case "scrape":
				hasScrape = true
			case "export":
				hasExport = true
			case "stats":
				hasStats = true
			case "areas":
				hasAreas = true
			case "version":
				hasVersion = true
			}
		}
		if !hasScrape {
			t.Error("expected scrape subcommand")
		}
		if !hasExport {
			t.Error("expected export subcommand")
		}
		if !hasStats {
			t.Error("expected stats subcommand")
		}
		if !hasAreas {
			t.Error("expected areas subcommand")
		}
		if !hasVersion {
			t.Error("expected version subcommand")
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

// TestAreasCmd tests that the areas command prints all known areas.
func TestAreasCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"areas"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := out.String()
	lines := strings.Count(output, "\n")
	if lines != 22 {
		t.Errorf("areas output has %d lines, want 22", lines)
	}
	if !strings.Contains(output, "A1303  渋谷") {
		t.Errorf("output missing 渋谷 entry:\n%s", output)
	}
	if !strings.Contains(output, "A1301  銀座・新橋・有楽町") {
		t.Errorf("output missing 銀座 entry:\n%s", output)
	}
}
