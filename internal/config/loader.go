// Package config loads engine settings from layered JSON files: defaults,
// then the global config, then the project config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*EngineConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.lessonsmith/config.json
// Project: .lessonsmith/config.json (relative to cwd)
func LoadDefault() (*EngineConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".lessonsmith", "config.json")
	projectPath := filepath.Join(".lessonsmith", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base
// config. Missing files are silently skipped. Agents merge per key; scalar
// settings override only when set in the file.
func mergeConfigFile(base *EngineConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded EngineConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for key, agent := range loaded.Agents {
		base.Agents[key] = agent
	}

	if loaded.Scheduler.Concurrency > 0 {
		base.Scheduler.Concurrency = loaded.Scheduler.Concurrency
	}
	if loaded.Scheduler.TaskTimeoutSeconds > 0 {
		base.Scheduler.TaskTimeoutSeconds = loaded.Scheduler.TaskTimeoutSeconds
	}
	if loaded.Health.IntervalSeconds > 0 {
		base.Health.IntervalSeconds = loaded.Health.IntervalSeconds
	}
	if loaded.Health.WarnThreshold > 0 {
		base.Health.WarnThreshold = loaded.Health.WarnThreshold
	}
	if loaded.Journal.Path != "" {
		base.Journal.Path = loaded.Journal.Path
	}

	return nil
}
