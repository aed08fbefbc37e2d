package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save persists the configuration to a JSON file.
// Creates parent directories if they don't exist.
func Save(cfg *EngineConfig, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
