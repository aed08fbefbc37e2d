package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Agents) != 6 {
		t.Errorf("agents = %d, want 6 built-ins", len(cfg.Agents))
	}
	if cfg.Scheduler.Concurrency != 5 {
		t.Errorf("concurrency = %d, want 5", cfg.Scheduler.Concurrency)
	}
	if cfg.Health.IntervalSeconds != 60 || cfg.Health.WarnThreshold != 50 {
		t.Errorf("health = %+v", cfg.Health)
	}
	if cfg.Journal.Path != "" {
		t.Errorf("journal path = %q, want disabled by default", cfg.Journal.Path)
	}
}

func TestLoadMissingFilesAreNotErrors(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "also-nope.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Agents) != 6 {
		t.Errorf("agents = %d, want defaults", len(cfg.Agents))
	}
}

func TestLoadMergesGlobalOverDefaults(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "config.json")
	writeFile(t, globalPath, `{
		"scheduler": {"concurrency": 8},
		"agents": {
			"agent-video": {"name": "Video Synthesizer", "capability": "video-generation", "version": "2.0.0"}
		}
	}`)

	cfg, err := Load(globalPath, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.Concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", cfg.Scheduler.Concurrency)
	}
	if cfg.Agents["agent-video"].Version != "2.0.0" {
		t.Errorf("agent-video = %+v", cfg.Agents["agent-video"])
	}
	// Untouched defaults survive the merge.
	if cfg.Health.WarnThreshold != 50 {
		t.Errorf("threshold = %d, want default 50", cfg.Health.WarnThreshold)
	}
	if _, ok := cfg.Agents["agent-content"]; !ok {
		t.Error("default agents dropped by merge")
	}
}

func TestLoadProjectWinsOverGlobal(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.json")
	projectPath := filepath.Join(dir, "project.json")
	writeFile(t, globalPath, `{"scheduler": {"concurrency": 8}, "journal": {"path": "/tmp/global.db"}}`)
	writeFile(t, projectPath, `{"scheduler": {"concurrency": 2}}`)

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.Concurrency != 2 {
		t.Errorf("concurrency = %d, want project value 2", cfg.Scheduler.Concurrency)
	}
	// Project silence leaves the global value standing.
	if cfg.Journal.Path != "/tmp/global.db" {
		t.Errorf("journal path = %q", cfg.Journal.Path)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	writeFile(t, path, `{not json`)

	if _, err := Load(path, ""); err == nil {
		t.Error("malformed JSON should fail Load")
	}
}
