// Package config loads the process-level options named but not defined by
// spec.md §6 ("Configuration options (consumed, not defined here)"): the
// module-state, upgrade-check-old, and state-XML-validation toggles, the
// changelog file path, and feature flags such as confirmed-commit. It is a
// boundary concern per spec.md §1, so a plain JSON file loaded via
// encoding/json (rather than a third-party config library) is the right
// tool — no repo in the corpus reaches for a config/YAML library to load a
// small flags struct like this one.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Options holds the configuration values the transaction core consumes but
// does not define (spec.md §6).
type Options struct {
	ModuleStateEnabled        bool            `json:"module_state_enabled"`
	UpgradeCheckOldEnabled    bool            `json:"upgrade_check_old_enabled"`
	StateXMLValidationEnabled bool            `json:"state_xml_validation_enabled"`
	ChangelogPath             string          `json:"changelog_path"`
	ConfirmStatePath          string          `json:"confirm_state_path"`
	Features                  map[string]bool `json:"features"`
}

// Default returns the options a fresh process starts with when no
// configuration file is present.
func Default() Options {
	return Options{
		ModuleStateEnabled:     true,
		UpgradeCheckOldEnabled: true,
		Features:               map[string]bool{"confirmed-commit": true},
	}
}

// HasFeature reports whether the named feature flag is enabled.
func (o Options) HasFeature(name string) bool {
	return o.Features[name]
}

// Load reads Options from a JSON file at path. A missing file is not an
// error; it yields Default() so a fresh install runs with sane defaults.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return opts, nil
	}
	if err != nil {
		return Options{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return opts, nil
}
