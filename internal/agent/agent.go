package agent

import (
	"context"
	"time"
)

// Capability identifies what kind of work an agent can perform.
type Capability string

const (
	CapWorkflowAnalysis  Capability = "workflow-analysis"
	CapContentGeneration Capability = "content-generation"
	CapVideoGeneration   Capability = "video-generation"
	CapAccessibility     Capability = "accessibility-enhancement"
	CapRouting           Capability = "routing"
	CapQualityAssurance  Capability = "quality-assurance"
)

// Capabilities lists every known capability in a stable order.
func Capabilities() []Capability {
	return []Capability{
		CapWorkflowAnalysis,
		CapContentGeneration,
		CapVideoGeneration,
		CapAccessibility,
		CapRouting,
		CapQualityAssurance,
	}
}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapWorkflowAnalysis, CapContentGeneration, CapVideoGeneration,
		CapAccessibility, CapRouting, CapQualityAssurance:
		return true
	}
	return false
}

// Status represents the current state of an agent.
type Status int

const (
	StatusIdle    Status = iota // Available for work
	StatusBusy                  // Executing a task
	StatusError                 // Last execution failed
	StatusOffline               // Not accepting work
)

// String returns the lowercase name used in logs and snapshots.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBusy:
		return "busy"
	case StatusError:
		return "error"
	case StatusOffline:
		return "offline"
	}
	return "unknown"
}

// Agent is a named execution capability with mutable status and health.
// Agents are created once at startup and never removed while the process runs.
type Agent struct {
	ID           string
	Name         string
	Capability   Capability
	Status       Status
	HealthScore  int // 0-100, decays with inactivity; advisory only
	LastActivity time.Time
	Version      string
}

// Request is the unit of work handed to a capability executor.
type Request struct {
	TaskID  string
	Kind    string // task type name, e.g. "generate-content"
	Payload any
}

// Result is what a capability returns on success.
type Result struct {
	Output any
	Cost   float64 // attributed resource cost, capability-defined units
}

// Executor is the external function an agent exposes to perform work.
// Implementations must be safe to call from concurrent tasks.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

func cloneAgent(a *Agent) *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
