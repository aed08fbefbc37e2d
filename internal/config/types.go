package config

// AgentConfig declares one agent in the static catalog. The capability
// string must match one of the engine's built-in capabilities. Resilient
// agents get retry and circuit-breaker wrapping around their executor.
type AgentConfig struct {
	Name       string `json:"name"`
	Capability string `json:"capability"`
	Version    string `json:"version,omitempty"`
	Resilient  bool   `json:"resilient,omitempty"`
}

// SchedulerConfig tunes task admission.
type SchedulerConfig struct {
	Concurrency        int `json:"concurrency,omitempty"`          // max simultaneously running tasks
	TaskTimeoutSeconds int `json:"task_timeout_seconds,omitempty"` // per-task deadline, 0 disables
}

// HealthConfig tunes the agent health monitor.
type HealthConfig struct {
	IntervalSeconds int `json:"interval_seconds,omitempty"` // sweep interval
	WarnThreshold   int `json:"warn_threshold,omitempty"`   // warn below this score
}

// JournalConfig points at the run-history database. An empty path disables
// persistence.
type JournalConfig struct {
	Path string `json:"path,omitempty"`
}

// EngineConfig is the top-level configuration.
type EngineConfig struct {
	Agents    map[string]AgentConfig `json:"agents"`
	Scheduler SchedulerConfig        `json:"scheduler"`
	Health    HealthConfig           `json:"health"`
	Journal   JournalConfig          `json:"journal"`
}
