package domain

import (
	"fmt"
	"math"
	"strings"
)

// Attempt budget bounds for a single postback.
const (
	DefaultMaxAttempts = 3
	MinMaxAttempts     = 1
	MaxMaxAttempts     = 10
)

// PostbackConfig is a validated postback configuration.
type PostbackConfig struct {
	URL         string
	Method      Method
	MaxAttempts int
	Payload     map[string]string
	Headers     map[string]string
}

// ParsePostbackConfig validates a raw configuration map. Checks run in order
// and short-circuit on the first failure; nothing is persisted on rejection.
func ParsePostbackConfig(raw map[string]any) (PostbackConfig, error) {
	cfg := PostbackConfig{
		Method:      MethodGet,
		MaxAttempts: DefaultMaxAttempts,
	}

	rawURL, ok := raw["url"]
	if !ok || rawURL == nil {
		return PostbackConfig{}, fmt.Errorf("%w: URL is required", ErrValidation)
	}
	urlStr, ok := rawURL.(string)
	if !ok || strings.TrimSpace(urlStr) == "" {
		return PostbackConfig{}, fmt.Errorf("%w: URL is required", ErrValidation)
	}
	urlStr = strings.TrimSpace(urlStr)
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return PostbackConfig{}, fmt.Errorf("%w: Invalid URL format", ErrValidation)
	}
	cfg.URL = urlStr

	if rawMethod, ok := raw["method"]; ok && rawMethod != nil {
		methodStr, ok := rawMethod.(string)
		if !ok {
			return PostbackConfig{}, fmt.Errorf("%w: Unsupported HTTP method: %v", ErrValidation, rawMethod)
		}
		method := Method(strings.ToUpper(strings.TrimSpace(methodStr)))
		if !method.IsValid() {
			return PostbackConfig{}, fmt.Errorf("%w: Unsupported HTTP method: %s", ErrValidation, methodStr)
		}
		cfg.Method = method
	}

	if rawAttempts, ok := raw["max_attempts"]; ok && rawAttempts != nil {
		attempts, ok := intFromAny(rawAttempts)
		if !ok || attempts < MinMaxAttempts || attempts > MaxMaxAttempts {
			return PostbackConfig{}, fmt.Errorf(
				"%w: max_attempts must be between %d and %d", ErrValidation, MinMaxAttempts, MaxMaxAttempts)
		}
		cfg.MaxAttempts = attempts
	}

	cfg.Payload = stringMapFromAny(raw["payload"])
	cfg.Headers = stringMapFromAny(raw["headers"])

	return cfg, nil
}

// intFromAny accepts the integer representations a JSON or map literal config
// can carry. Fractional floats are rejected.
func intFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func stringMapFromAny(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return cloneStringMap(m)
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, value := range m {
			out[k] = fmt.Sprintf("%v", value)
		}
		return out
	}
	return nil
}
