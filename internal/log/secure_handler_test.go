package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestSecureHandler_SanitizesSensitiveKeys tests that sensitive keys are sanitized.
func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{
			name:     "cookie key is sanitized",
			key:      "cookie",
			value:    "session=abc123",
			wantMask: true,
		},
		{
			name:     "Cookie key (uppercase) is sanitized",
			key:      "Cookie",
			value:    "session=abc123",
			wantMask: true,
		},
		{
			name:     "authorization key is sanitized",
			key:      "authorization",
			value:    "Bearer token123",
			wantMask: true,
		},
		{
			name:     "api_key key is sanitized",
			key:      "api_key",
			value:    "3e9f658f6ee72cf7",
			wantMask: true,
		},
		{
			name:     "hotpepper_key key is sanitized",
			key:      "hotpepper_key",
			value:    "3e9f658f6ee72cf7",
			wantMask: true,
		},
		{
			name:     "token key is sanitized",
			key:      "token",
			value:    "jwt.token.here",
			wantMask: true,
		},
		{
			name:     "x-api-key header is sanitized",
			key:      "x-api-key",
			value:    "apikey123",
			wantMask: true,
		},
		{
			name:     "url key is NOT sanitized",
			key:      "url",
			value:    "https://tabelog.com/tokyo/A1301/rstLst/1/",
			wantMask: false,
		},
		{
			name:     "area key is NOT sanitized",
			key:      "area",
			value:    "渋谷",
			wantMask: false,
		},
		{
			name:     "count key is NOT sanitized",
			key:      "count",
			value:    "100",
			wantMask: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)

			logger.Info("test message", tt.key, tt.value)

			output := buf.String()
			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("output contains raw value %q: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("output does not contain mask: %s", output)
				}
			} else {
				if !strings.Contains(output, tt.value) {
					t.Errorf("output does not contain value %q: %s", tt.value, output)
				}
			}
		})
	}
}

// TestSecureHandler_MasksAPIKeyInURL tests that key= query parameters in
// logged URLs are masked while the rest of the URL survives.
func TestSecureHandler_MasksAPIKeyInURL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)

	logger.Info("api request",
		"url", "https://webservice.recruit.co.jp/hotpepper/gourmet/v1/?key=3e9f658f6ee72cf7&format=json")

	output := buf.String()
	if strings.Contains(output, "3e9f658f6ee72cf7") {
		t.Errorf("output contains raw API key: %s", output)
	}
	if !strings.Contains(output, "webservice.recruit.co.jp") {
		t.Errorf("output lost the URL host: %s", output)
	}
	if !strings.Contains(output, "format=json") {
		t.Errorf("output lost non-sensitive query parameters: %s", output)
	}
}

// TestSecureHandler_SanitizesSensitiveValues tests value pattern detection.
func TestSecureHandler_SanitizesSensitiveValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{
			name:     "JWT token is masked",
			value:    "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjMifQ.abc123",
			wantMask: true,
		},
		{
			name:     "bearer token is masked",
			value:    "Bearer abcdef123456",
			wantMask: true,
		},
		{
			name:     "long alphanumeric string is masked",
			value:    strings.Repeat("a1", 20),
			wantMask: true,
		},
		{
			name:     "shop name is not masked",
			value:    "鳥貴族 渋谷店",
			wantMask: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)

			logger.Info("test", "field", tt.value)

			output := buf.String()
			gotMask := strings.Contains(output, MaskValue)
			if gotMask != tt.wantMask {
				t.Errorf("mask = %v, want %v (output: %s)", gotMask, tt.wantMask, output)
			}
		})
	}
}

// TestSecureHandler_Groups tests that grouped attributes are sanitized too.
func TestSecureHandler_Groups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)

	logger.Info("request",
		slog.Group("http",
			slog.String("cookie", "session=abc123"),
			slog.String("method", "GET"),
		),
	)

	output := buf.String()
	if strings.Contains(output, "session=abc123") {
		t.Errorf("grouped sensitive value leaked: %s", output)
	}
	if !strings.Contains(output, "GET") {
		t.Errorf("grouped non-sensitive value lost: %s", output)
	}
}

// TestSecureHandler_WithAttrs tests that attributes added via With are sanitized.
func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).With("api_key", "supersecret123")

	logger.Info("test")

	if strings.Contains(buf.String(), "supersecret123") {
		t.Errorf("With-attached sensitive value leaked: %s", buf.String())
	}
}

// TestNewSecureLogger_Levels tests verbose toggling of the debug level.
func TestNewSecureLogger_Levels(t *testing.T) {
	t.Parallel()

	var quiet bytes.Buffer
	NewSecureLogger(&quiet, false).Debug("hidden")
	if quiet.Len() != 0 {
		t.Errorf("debug message logged without verbose: %s", quiet.String())
	}

	var verbose bytes.Buffer
	NewSecureLogger(&verbose, true).Debug("visible")
	if verbose.Len() == 0 {
		t.Error("debug message not logged with verbose")
	}
}

// TestNewSecureJSONLogger tests JSON output with sanitization.
func TestNewSecureJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, false)

	logger.Info("test", "password", "hunter2")

	output := buf.String()
	if strings.Contains(output, "hunter2") {
		t.Errorf("JSON output contains raw password: %s", output)
	}
	if !strings.Contains(output, `"msg":"test"`) {
		t.Errorf("output is not JSON formatted: %s", output)
	}
}
