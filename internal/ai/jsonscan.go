package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FirstJSONObject returns the first syntactically complete JSON object in s.
// Every '{' is tried as a start position and decoded incrementally, so prose,
// code fences or stray braces around the object do not corrupt the result.
func FirstJSONObject(s string) (map[string]any, error) {
	var (
		lastErr error
		seen    bool
	)
	for from := 0; from < len(s); {
		i := strings.IndexByte(s[from:], '{')
		if i < 0 {
			break
		}
		start := from + i
		seen = true

		var obj map[string]any
		dec := json.NewDecoder(strings.NewReader(s[start:]))
		if err := dec.Decode(&obj); err == nil && obj != nil {
			return obj, nil
		} else if err != nil {
			lastErr = err
		}
		from = start + 1
	}
	if !seen {
		return nil, ErrNoJSONFound
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, lastErr)
}
