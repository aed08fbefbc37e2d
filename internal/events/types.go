package events

import (
	"time"
)

// Event is the base interface for all lifecycle events.
type Event interface {
	EventType() string
	At() time.Time
}

// Topic constants
const (
	TopicTask     = "task"
	TopicAgent    = "agent"
	TopicPipeline = "pipeline"
)

// Event type constants
const (
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
	EventTypeTaskCancelled     = "task.cancelled"
	EventTypeTaskProgress      = "task.progress"
	EventTypeAgentStatus       = "agent.status"
	EventTypeHealthWarning     = "agent.health_warning"
	EventTypePipelineStarted   = "pipeline.started"
	EventTypePipelinePhase     = "pipeline.phase"
	EventTypePipelineCompleted = "pipeline.completed"
	EventTypePipelineFailed    = "pipeline.failed"
)

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	ID        string
	Type      string
	AgentID   string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) At() time.Time     { return e.Timestamp }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Type      string
	Duration  time.Duration
	Cost      float64
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) At() time.Time     { return e.Timestamp }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID        string
	Type      string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) At() time.Time     { return e.Timestamp }

// TaskCancelledEvent is published when a pending task is cancelled.
type TaskCancelledEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) At() time.Time     { return e.Timestamp }

// TaskProgressEvent carries aggregate task counts by state.
type TaskProgressEvent struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
	Timestamp time.Time
}

func (e TaskProgressEvent) EventType() string { return EventTypeTaskProgress }
func (e TaskProgressEvent) At() time.Time     { return e.Timestamp }

// AgentStatusEvent is published when an agent changes status.
type AgentStatusEvent struct {
	AgentID   string
	Status    string
	Timestamp time.Time
}

func (e AgentStatusEvent) EventType() string { return EventTypeAgentStatus }
func (e AgentStatusEvent) At() time.Time     { return e.Timestamp }

// HealthWarningEvent is published by the health monitor when an agent's
// score drops below the warning threshold.
type HealthWarningEvent struct {
	AgentID   string
	Score     int
	Timestamp time.Time
}

func (e HealthWarningEvent) EventType() string { return EventTypeHealthWarning }
func (e HealthWarningEvent) At() time.Time     { return e.Timestamp }

// PipelineStartedEvent is published when a pipeline run begins.
type PipelineStartedEvent struct {
	RunID     string
	Workflow  string
	Timestamp time.Time
}

func (e PipelineStartedEvent) EventType() string { return EventTypePipelineStarted }
func (e PipelineStartedEvent) At() time.Time     { return e.Timestamp }

// PipelinePhaseEvent is published when a pipeline phase finishes.
type PipelinePhaseEvent struct {
	RunID     string
	Phase     string
	Timestamp time.Time
}

func (e PipelinePhaseEvent) EventType() string { return EventTypePipelinePhase }
func (e PipelinePhaseEvent) At() time.Time     { return e.Timestamp }

// PipelineCompletedEvent is published when a pipeline run produces its artifact.
type PipelineCompletedEvent struct {
	RunID     string
	Duration  time.Duration
	Timestamp time.Time
}

func (e PipelineCompletedEvent) EventType() string { return EventTypePipelineCompleted }
func (e PipelineCompletedEvent) At() time.Time     { return e.Timestamp }

// PipelineFailedEvent is published when a pipeline run aborts.
type PipelineFailedEvent struct {
	RunID     string
	Phase     string
	Err       error
	Timestamp time.Time
}

func (e PipelineFailedEvent) EventType() string { return EventTypePipelineFailed }
func (e PipelineFailedEvent) At() time.Time     { return e.Timestamp }
