package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParsePostbackConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := ParsePostbackConfig(map[string]any{
		"url": "https://partner.example.com/cb",
	})
	if err != nil {
		t.Fatalf("ParsePostbackConfig() unexpected error = %v", err)
	}

	if cfg.Method != MethodGet {
		t.Fatalf("method = %s, want GET default", cfg.Method)
	}
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("maxAttempts = %d, want %d", cfg.MaxAttempts, DefaultMaxAttempts)
	}
}

func TestParsePostbackConfigURLRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        map[string]any
		wantReason string
	}{
		{name: "missing url", raw: map[string]any{}, wantReason: "URL is required"},
		{name: "empty url", raw: map[string]any{"url": "  "}, wantReason: "URL is required"},
		{name: "non-string url", raw: map[string]any{"url": 42}, wantReason: "URL is required"},
		{name: "bad scheme", raw: map[string]any{"url": "ftp://x.com/cb"}, wantReason: "Invalid URL format"},
		{name: "no scheme", raw: map[string]any{"url": "x.com/cb"}, wantReason: "Invalid URL format"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParsePostbackConfig(tt.raw)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.wantReason) {
				t.Fatalf("error = %q, want reason %q", err, tt.wantReason)
			}
		})
	}
}

func TestParsePostbackConfigMethod(t *testing.T) {
	t.Parallel()

	cfg, err := ParsePostbackConfig(map[string]any{
		"url":    "https://partner.example.com/cb",
		"method": "post",
	})
	if err != nil {
		t.Fatalf("ParsePostbackConfig() unexpected error = %v", err)
	}
	if cfg.Method != MethodPost {
		t.Fatalf("method = %s, want POST", cfg.Method)
	}

	_, err = ParsePostbackConfig(map[string]any{
		"url":    "https://partner.example.com/cb",
		"method": "DELETE",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "Unsupported HTTP method: DELETE") {
		t.Fatalf("error = %q, want unsupported method reason", err)
	}
}

func TestParsePostbackConfigMaxAttemptsBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{name: "zero rejected", value: 0, wantErr: true},
		{name: "eleven rejected", value: 11, wantErr: true},
		{name: "fractional rejected", value: 2.5, wantErr: true},
		{name: "string rejected", value: "3", wantErr: true},
		{name: "one accepted", value: 1, want: 1},
		{name: "ten accepted", value: 10, want: 10},
		{name: "json number accepted", value: float64(7), want: 7},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := ParsePostbackConfig(map[string]any{
				"url":          "https://partner.example.com/cb",
				"max_attempts": tt.value,
			})
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("error = %v, want ErrValidation", err)
				}
				if !strings.Contains(err.Error(), "max_attempts must be between 1 and 10") {
					t.Fatalf("error = %q, want max_attempts reason", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error = %v", err)
			}
			if cfg.MaxAttempts != tt.want {
				t.Fatalf("maxAttempts = %d, want %d", cfg.MaxAttempts, tt.want)
			}
		})
	}
}

func TestParsePostbackConfigPayloadAndHeaders(t *testing.T) {
	t.Parallel()

	cfg, err := ParsePostbackConfig(map[string]any{
		"url":     "https://partner.example.com/cb",
		"method":  "POST",
		"payload": map[string]any{"order": "o-1", "amount": 42},
		"headers": map[string]string{"X-Token": "secret"},
	})
	if err != nil {
		t.Fatalf("ParsePostbackConfig() unexpected error = %v", err)
	}

	if cfg.Payload["order"] != "o-1" || cfg.Payload["amount"] != "42" {
		t.Fatalf("payload = %v, want stringified values", cfg.Payload)
	}
	if cfg.Headers["X-Token"] != "secret" {
		t.Fatalf("headers = %v, want X-Token preserved", cfg.Headers)
	}
}
