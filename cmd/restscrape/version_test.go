package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestGetVersion tests version resolution fallbacks.
func TestGetVersion(t *testing.T) {
	got := getVersion()
	if got == "" {
		t.Error("getVersion() = empty, want non-empty")
	}

	// ldflags value wins over build info.
	orig := version
	version = "v1.2.3"
	t.Cleanup(func() { version = orig })

	if got := getVersion(); got != "v1.2.3" {
		t.Errorf("getVersion() = %q, want v1.2.3", got)
	}
}

// TestGetCommit tests commit hash resolution.
func TestGetCommit(t *testing.T) {
	if got := getCommit(); got == "" {
		t.Error("getCommit() = empty, want non-empty")
	}

	orig := commit
	commit = "abcdef1"
	t.Cleanup(func() { commit = orig })

	if got := getCommit(); got != "abcdef1" {
		t.Errorf("getCommit() = %q, want abcdef1", got)
	}
}

// TestVersionCmd tests the version command output.
func TestVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	cmd.Run(cmd, nil)

	output := out.String()
	if !strings.Contains(output, "restscrape version") {
		t.Errorf("output = %q, want restscrape version line", output)
	}
	if !strings.Contains(output, "commit:") {
		t.Errorf("output = %q, want commit line", output)
	}
}
