package scheduler

import (
	"time"

	"github.com/lessonsmith/lessonsmith/internal/agent"
)

// TaskType identifies the phase operation a task performs.
type TaskType string

const (
	TypeAnalyzeWorkflow      TaskType = "analyze-workflow"
	TypeGenerateContent      TaskType = "generate-content"
	TypeCreateVideo          TaskType = "create-video"
	TypeEnhanceAccessibility TaskType = "enhance-accessibility"
	TypeQualityCheck         TaskType = "quality-check"
	TypeRouteRequest         TaskType = "route-request"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TypeAnalyzeWorkflow, TypeGenerateContent, TypeCreateVideo,
		TypeEnhanceAccessibility, TypeQualityCheck, TypeRouteRequest:
		return true
	}
	return false
}

// Priority orders tasks within the ready queue. Higher values dispatch first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase name used in logs and persistence.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies or a scheduler slot
	TaskRunning                     // Currently executing
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Finished with error
	TaskCancelled                   // Cancelled before dispatch
)

// String returns the lowercase name used in logs and persistence.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether s is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Payload is the closed set of typed task payloads. Each phase operation
// carries its own payload type; adding a phase means adding a type, not a
// string-matched branch.
type Payload interface {
	TaskKind() TaskType
}

// Task represents a unit of orchestrated work.
type Task struct {
	ID        string
	Type      TaskType
	Priority  Priority
	Payload   Payload            // immutable once created
	Requires  []agent.Capability // capabilities that must contribute
	Optional  []agent.Capability // capabilities that may contribute
	DependsOn []string           // task IDs that must complete first
	Status    TaskStatus
	Progress  int // 0-100, advisory
	Result    any
	Err       error
	Cost      float64
	Timeout   time.Duration
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	seq uint64 // store-assigned submission order, for FIFO tie-break
}

// Duration returns the task's execution time, zero if it never ran.
func (t *Task) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.EndedAt.IsZero() {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// Config describes a task to be created.
type Config struct {
	Type      TaskType
	Priority  Priority
	Payload   Payload
	Requires  []agent.Capability
	Optional  []agent.Capability
	DependsOn []string
	Timeout   time.Duration
}

// Outcome is a read-only projection of a finished task.
type Outcome struct {
	TaskID        string
	Success       bool
	Output        any
	Err           error
	ExecutionTime time.Duration
	Cost          float64
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.Requires != nil {
		cp.Requires = append([]agent.Capability(nil), task.Requires...)
	}
	if task.Optional != nil {
		cp.Optional = append([]agent.Capability(nil), task.Optional...)
	}
	return &cp
}
