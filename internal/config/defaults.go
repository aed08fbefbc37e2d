package config

// DefaultConfig returns the default configuration with the six built-in
// agents, one per capability.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Agents: map[string]AgentConfig{
			"agent-analyze": {
				Name:       "Workflow Analyzer",
				Capability: "workflow-analysis",
			},
			"agent-content": {
				Name:       "Content Generator",
				Capability: "content-generation",
			},
			"agent-video": {
				Name:       "Video Synthesizer",
				Capability: "video-generation",
			},
			"agent-a11y": {
				Name:       "Accessibility Enhancer",
				Capability: "accessibility-enhancement",
			},
			"agent-route": {
				Name:       "Request Router",
				Capability: "routing",
			},
			"agent-qa": {
				Name:       "Quality Checker",
				Capability: "quality-assurance",
			},
		},
		Scheduler: SchedulerConfig{
			Concurrency: 5,
		},
		Health: HealthConfig{
			IntervalSeconds: 60,
			WarnThreshold:   50,
		},
	}
}
