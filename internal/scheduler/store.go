package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"

	"github.com/lessonsmith/lessonsmith/internal/agent"
)

// Sentinel errors surfaced by the task store.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrNotPending        = errors.New("task is not pending")
	ErrNotRunning        = errors.New("task is not running")
	ErrDependencyFailed  = errors.New("dependency failed")
	ErrCancelled         = errors.New("task cancelled")
)

// Store is the single source of truth for task state. It tracks dependents
// and an unresolved-predecessor count per task so that a dependency's
// completion wakes its dependents in O(1) instead of rescanning a backlog.
type Store struct {
	mu         sync.Mutex
	tasks      map[string]*Task
	dependents map[string][]string // task ID -> IDs of tasks depending on it
	unresolved map[string]int      // task ID -> count of deps not yet completed
	done       map[string]chan struct{}
	seq        uint64
	now        func() time.Time
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
		unresolved: make(map[string]int),
		done:       make(map[string]chan struct{}),
		now:        time.Now,
	}
}

// Create validates cfg and adds a new pending task. It is an error to
// reference a dependency ID not present in the store. If a dependency has
// already failed or been cancelled, the new task is created directly in the
// failed state with a dependency error (no task waits forever on a
// dependency that can never complete).
func (s *Store) Create(cfg Config) (*Task, error) {
	if !cfg.Type.Valid() {
		return nil, fmt.Errorf("invalid task config: unknown task type %q", cfg.Type)
	}
	if cfg.Payload != nil && cfg.Payload.TaskKind() != cfg.Type {
		return nil, fmt.Errorf("invalid task config: payload kind %q does not match task type %q",
			cfg.Payload.TaskKind(), cfg.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var failedDep string
	pendingDeps := 0
	for _, depID := range cfg.DependsOn {
		dep, exists := s.tasks[depID]
		if !exists {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDependency, depID)
		}
		switch dep.Status {
		case TaskCompleted:
			// resolved
		case TaskFailed, TaskCancelled:
			if failedDep == "" {
				failedDep = depID
			}
		default:
			pendingDeps++
		}
	}

	s.seq++
	task := &Task{
		ID:        newTaskID(s.now()),
		Type:      cfg.Type,
		Priority:  cfg.Priority,
		Payload:   cfg.Payload,
		DependsOn: append([]string(nil), cfg.DependsOn...),
		Status:    TaskPending,
		Timeout:   cfg.Timeout,
		CreatedAt: s.now(),
		seq:       s.seq,
	}
	if cfg.Requires != nil {
		task.Requires = append([]agent.Capability(nil), cfg.Requires...)
	}
	if cfg.Optional != nil {
		task.Optional = append([]agent.Capability(nil), cfg.Optional...)
	}

	s.tasks[task.ID] = task
	s.done[task.ID] = make(chan struct{})
	s.unresolved[task.ID] = pendingDeps
	for _, depID := range cfg.DependsOn {
		s.dependents[depID] = append(s.dependents[depID], task.ID)
	}

	if failedDep != "" {
		s.terminateLocked(task, TaskFailed,
			fmt.Errorf("%w: %q did not complete", ErrDependencyFailed, failedDep))
	}

	return cloneTask(task), nil
}

// Eligible reports whether the task is pending with every dependency completed.
func (s *Store) Eligible(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	return exists && task.Status == TaskPending && s.unresolved[taskID] == 0
}

// MarkRunning transitions a pending task to running.
func (s *Store) MarkRunning(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskPending {
		return fmt.Errorf("%w: %q is %s", ErrNotPending, taskID, task.Status)
	}

	task.Status = TaskRunning
	task.StartedAt = s.now()
	return nil
}

// MarkCompleted transitions a running task to completed, stores its result,
// and returns the IDs of dependents that became eligible.
func (s *Store) MarkCompleted(taskID string, output any, cost float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskRunning {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotRunning, taskID, task.Status)
	}

	task.Status = TaskCompleted
	task.Result = output
	task.Cost = cost
	task.Progress = 100
	task.EndedAt = s.now()
	close(s.done[taskID])

	var ready []string
	for _, depID := range s.dependents[taskID] {
		s.unresolved[depID]--
		if s.unresolved[depID] == 0 && s.tasks[depID].Status == TaskPending {
			ready = append(ready, depID)
		}
	}
	return ready, nil
}

// MarkFailed transitions a pending or running task to failed and cascades
// the failure to every transitive dependent still pending. Returns the IDs
// of cascaded dependents.
func (s *Store) MarkFailed(taskID string, taskErr error) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if task.Status.Terminal() {
		return nil, fmt.Errorf("task %q already terminal (%s)", taskID, task.Status)
	}

	s.terminateLocked(task, TaskFailed, taskErr)
	return s.failDependentsLocked(taskID), nil
}

// Cancel cancels a pending task. Cancelling a running or terminal task is an
// error. The cancelled task carries ErrCancelled so Await callers can tell
// cancellation from failure; dependents fail with a dependency error.
func (s *Store) Cancel(taskID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskPending {
		return nil, fmt.Errorf("%w: cannot cancel %q while %s", ErrNotPending, taskID, task.Status)
	}

	s.terminateLocked(task, TaskCancelled, ErrCancelled)
	return s.failDependentsLocked(taskID), nil
}

// SetProgress updates a task's advisory progress value.
func (s *Store) SetProgress(taskID string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	task.Progress = progress
	return nil
}

// Get returns a snapshot of the task with the given ID.
func (s *Store) Get(taskID string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns snapshots of all tasks.
func (s *Store) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, cloneTask(task))
	}
	return tasks
}

// CountsByStatus returns the number of tasks in each state.
func (s *Store) CountsByStatus() map[TaskStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[TaskStatus]int)
	for _, task := range s.tasks {
		counts[task.Status]++
	}
	return counts
}

// Await blocks until the task reaches a terminal state or ctx is done, and
// returns the task's outcome.
func (s *Store) Await(ctx context.Context, taskID string) (Outcome, error) {
	s.mu.Lock()
	ch, exists := s.done[taskID]
	s.mu.Unlock()
	if !exists {
		return Outcome{}, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}

	select {
	case <-ch:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	task, _ := s.Get(taskID)
	return Outcome{
		TaskID:        task.ID,
		Success:       task.Status == TaskCompleted,
		Output:        task.Result,
		Err:           task.Err,
		ExecutionTime: task.Duration(),
		Cost:          task.Cost,
	}, nil
}

// Validate runs a topological sort over the current task graph and returns
// the sorted IDs, or an error if the graph contains a cycle.
func (s *Store) Validate() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var edges []toposort.Edge
	for taskID, task := range s.tasks {
		if len(task.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, taskID})
			continue
		}
		for _, depID := range task.DependsOn {
			edges = append(edges, toposort.Edge{depID, taskID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(s.tasks) {
		var missing []string
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for taskID := range s.tasks {
			if !found[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// SetClock overrides the store's time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// terminateLocked moves a task into a terminal state and releases waiters.
func (s *Store) terminateLocked(task *Task, status TaskStatus, taskErr error) {
	task.Status = status
	task.Err = taskErr
	task.EndedAt = s.now()
	close(s.done[task.ID])
}

// failDependentsLocked fails every transitive dependent of taskID that is
// still pending, returning their IDs.
func (s *Store) failDependentsLocked(taskID string) []string {
	var cascaded []string
	queue := []string{taskID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, depID := range s.dependents[current] {
			dep := s.tasks[depID]
			if dep.Status != TaskPending {
				continue
			}
			s.terminateLocked(dep, TaskFailed,
				fmt.Errorf("%w: %q did not complete", ErrDependencyFailed, current))
			cascaded = append(cascaded, depID)
			queue = append(queue, depID)
		}
	}
	return cascaded
}

// newTaskID derives a unique task ID from the current time plus randomness.
func newTaskID(now time.Time) string {
	return fmt.Sprintf("task-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
