package history

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursors are opaque to clients: base64url-encoded JSON objects of string
// key attributes.

func encodeCursor(key map[string]string) string {
	if len(key) == 0 {
		return ""
	}
	b, err := json.Marshal(key)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCursor returns nil for an empty cursor. required lists attributes that
// must be present and non-empty.
func decodeCursor(cursor string, required ...string) (map[string]string, error) {
	if cursor == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var key map[string]string
	if err := json.Unmarshal(b, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	for _, attr := range required {
		if key[attr] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidCursor, attr)
		}
	}
	return key, nil
}
