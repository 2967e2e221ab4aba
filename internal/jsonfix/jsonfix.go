// Package jsonfix recovers JSON objects from model output that carries extra
// prose or markdown fencing around the object itself.
//
// Recovery is bounded: a direct parse is tried first, then up to a configured
// number of brace-trimming passes that cut the text down to the next outermost
// {...} region. Callers are expected to log when recovery kicks in so lenient
// parsing stays visible.
package jsonfix

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultAttempts is the number of brace-trimming passes applied when the
// caller passes a non-positive attempt count.
const DefaultAttempts = 1

// ErrNoObject is returned when no parseable JSON object can be found.
var ErrNoObject = errors.New("jsonfix: no parseable JSON object in text")

// Extract returns the raw bytes of the first parseable JSON object in text.
// The second return value reports whether recovery (brace trimming) was needed
// to find it; a false value means text parsed as-is.
func Extract(text string, attempts int) ([]byte, bool, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), false, nil
	}

	region := trimmed
	for i := 0; i < attempts; i++ {
		start := strings.Index(region, "{")
		end := strings.LastIndex(region, "}")
		if start == -1 || end == -1 || end <= start {
			return nil, false, fmt.Errorf("%w (after %d attempts)", ErrNoObject, i)
		}
		candidate := region[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), true, nil
		}
		// Narrow the search window for the next pass.
		region = region[start+1 : end]
	}
	return nil, false, fmt.Errorf("%w (after %d attempts)", ErrNoObject, attempts)
}

// Unmarshal extracts a JSON object from text and decodes it into v.
// The boolean reports whether brace-trim recovery was applied.
func Unmarshal(text string, attempts int, v any) (bool, error) {
	raw, recovered, err := Extract(text, attempts)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return recovered, fmt.Errorf("jsonfix: decode extracted object: %w", err)
	}
	return recovered, nil
}
