package db

import (
	"fmt"

	"github.com/goccy/go-json"
)

// JSONB marshals v for a jsonb column. nil becomes SQL NULL.
func JSONB(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return b, nil
}

// ScanJSONB decodes a scanned jsonb column into dst. Empty input is a no-op.
func ScanJSONB(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode jsonb: %w", err)
	}
	return nil
}
