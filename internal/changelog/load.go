package changelog

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadEntries reads a declarative changelog file: a JSON array of Entry
// values, the same boundary-detail JSON convention internal/config and
// internal/treecodec use for the out-of-scope XML changelog format named
// in spec.md §4.E.1. A missing file yields an empty slice, not an error,
// so a deployment with no changelog configured still starts cleanly.
func LoadEntries(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read changelog %s: %w", path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse changelog %s: %w", path, err)
	}
	return entries, nil
}
