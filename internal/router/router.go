// Package router maps task types to agent capabilities and drives the
// agent-side of task execution: status transitions, timeout enforcement,
// and the distinction between routing failures and capability failures.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/events"
	"github.com/lessonsmith/lessonsmith/internal/scheduler"
)

// ErrAgentUnavailable marks routing failures: no capability mapping, no
// registered executor, or an agent in error/offline state. Callers use it to
// tell infrastructure failure from business failure.
var ErrAgentUnavailable = errors.New("agent unavailable")

// ErrTimeout marks a running task force-failed by its own timeout.
var ErrTimeout = errors.New("timeout")

// routes is the closed, static mapping from task type to the capability
// that executes it.
var routes = map[scheduler.TaskType]agent.Capability{
	scheduler.TypeAnalyzeWorkflow:      agent.CapWorkflowAnalysis,
	scheduler.TypeGenerateContent:      agent.CapContentGeneration,
	scheduler.TypeCreateVideo:          agent.CapVideoGeneration,
	scheduler.TypeEnhanceAccessibility: agent.CapAccessibility,
	scheduler.TypeQualityCheck:         agent.CapQualityAssurance,
	scheduler.TypeRouteRequest:         agent.CapRouting,
}

// Router resolves a task's type to the agent capable of executing it and
// invokes that capability. Implements scheduler.Dispatcher.
type Router struct {
	registry *agent.Registry
	bus      *events.Bus

	mu        sync.RWMutex
	executors map[agent.Capability]agent.Executor
}

// New creates a router over the given registry.
func New(registry *agent.Registry, bus *events.Bus) *Router {
	return &Router{
		registry:  registry,
		bus:       bus,
		executors: make(map[agent.Capability]agent.Executor),
	}
}

// RegisterExecutor binds the executor for a capability. Registering twice
// replaces the previous executor (callers wrap with retry/breaker policies
// before registering).
func (r *Router) RegisterExecutor(cap agent.Capability, exec agent.Executor) error {
	if !cap.Valid() {
		return fmt.Errorf("unknown capability %q", cap)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[cap] = exec
	return nil
}

// Dispatch routes the task to its agent and executes it synchronously.
// On success the agent returns to idle; on failure the agent enters error
// state and the error is returned for the scheduler to record.
func (r *Router) Dispatch(ctx context.Context, task *scheduler.Task) (agent.Result, error) {
	cap, ok := routes[task.Type]
	if !ok {
		return agent.Result{}, fmt.Errorf("%w: no capability mapped for task type %q", ErrAgentUnavailable, task.Type)
	}

	ag, ok := r.registry.ByCapability(cap)
	if !ok {
		return agent.Result{}, fmt.Errorf("%w: no agent registered for capability %q", ErrAgentUnavailable, cap)
	}
	if ag.Status == agent.StatusError || ag.Status == agent.StatusOffline {
		return agent.Result{}, fmt.Errorf("%w: agent %q is %s", ErrAgentUnavailable, ag.ID, ag.Status)
	}

	r.mu.RLock()
	exec, ok := r.executors[cap]
	r.mu.RUnlock()
	if !ok {
		return agent.Result{}, fmt.Errorf("%w: no executor registered for capability %q", ErrAgentUnavailable, cap)
	}

	r.setAgentStatus(ag.ID, agent.StatusBusy)
	r.bus.Publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Type:      string(task.Type),
		AgentID:   ag.ID,
		Timestamp: time.Now(),
	})

	execCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	result, err := exec.Execute(execCtx, agent.Request{
		TaskID:  task.ID,
		Kind:    string(task.Type),
		Payload: task.Payload,
	})
	if err != nil {
		if task.Timeout > 0 && execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("%w: task %q exceeded %s", ErrTimeout, task.ID, task.Timeout)
		}
		r.setAgentStatus(ag.ID, agent.StatusError)
		return agent.Result{}, err
	}

	r.registry.Touch(ag.ID)
	r.setAgentStatus(ag.ID, agent.StatusIdle)
	return result, nil
}

// ResetAgent returns an errored agent to idle so it can accept work again.
func (r *Router) ResetAgent(agentID string) error {
	ag, ok := r.registry.Get(agentID)
	if !ok {
		return fmt.Errorf("agent %q not found", agentID)
	}
	if ag.Status != agent.StatusError {
		return fmt.Errorf("agent %q is %s, only errored agents can be reset", agentID, ag.Status)
	}
	r.setAgentStatus(agentID, agent.StatusIdle)
	return nil
}

func (r *Router) setAgentStatus(agentID string, status agent.Status) {
	if err := r.registry.SetStatus(agentID, status); err != nil {
		return
	}
	r.bus.Publish(events.TopicAgent, events.AgentStatusEvent{
		AgentID:   agentID,
		Status:    status.String(),
		Timestamp: time.Now(),
	})
}
