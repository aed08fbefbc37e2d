package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/events"
)

// DefaultConcurrency is the default ceiling on simultaneously running tasks.
const DefaultConcurrency = 5

// Dispatcher executes a task and returns its result. The task router
// implements this.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *Task) (agent.Result, error)
}

// Scheduler admits eligible tasks to the dispatcher up to a concurrency
// ceiling. Tasks are ordered critical > high > medium > low; within a tier,
// submission order is preserved. A task enters the backlog only once every
// dependency has completed, so the loop never rescans ineligible work.
type Scheduler struct {
	store      *Store
	dispatcher Dispatcher
	bus        *events.Bus
	sem        *semaphore.Weighted

	mu      sync.Mutex
	backlog [PriorityCritical + 1][]string
	wake    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler over the given store and dispatcher.
// limit <= 0 selects DefaultConcurrency.
func NewScheduler(store *Store, dispatcher Dispatcher, bus *events.Bus, limit int) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		bus:        bus,
		sem:        semaphore.NewWeighted(int64(limit)),
		wake:       make(chan struct{}, 1),
	}
}

// Submit creates a task from cfg and enqueues it if it is immediately
// eligible. Tasks with unmet dependencies are woken by the store when their
// last dependency completes.
func (s *Scheduler) Submit(cfg Config) (*Task, error) {
	task, err := s.store.Create(cfg)
	if err != nil {
		return nil, err
	}

	if task.Status == TaskFailed {
		// A dependency was already failed or cancelled at creation time.
		s.bus.Publish(events.TopicTask, events.TaskFailedEvent{
			ID:        task.ID,
			Type:      string(task.Type),
			Err:       task.Err,
			Timestamp: time.Now(),
		})
		return task, nil
	}

	if s.store.Eligible(task.ID) {
		s.enqueue(task.ID, task.Priority)
	}
	return task, nil
}

// Cancel cancels a pending task and fails its dependents. Cancelling a
// running or terminal task returns an error.
func (s *Scheduler) Cancel(taskID string) error {
	cascaded, err := s.store.Cancel(taskID)
	if err != nil {
		return err
	}

	s.bus.Publish(events.TopicTask, events.TaskCancelledEvent{ID: taskID, Timestamp: time.Now()})
	s.publishCascade(cascaded)
	s.publishProgress()
	return nil
}

// Await blocks until the task reaches a terminal state or ctx is done.
func (s *Scheduler) Await(ctx context.Context, taskID string) (Outcome, error) {
	return s.store.Await(ctx, taskID)
}

// Run drives the scheduling loop until ctx is cancelled, then waits for
// in-flight tasks to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		for {
			taskID, priority, ok := s.pop()
			if !ok {
				break
			}

			if err := s.sem.Acquire(ctx, 1); err != nil {
				s.requeueFront(taskID, priority)
				s.wg.Wait()
				return ctx.Err()
			}

			s.wg.Add(1)
			go func(id string) {
				defer s.wg.Done()
				defer s.sem.Release(1)
				s.execute(ctx, id)
			}(taskID)
		}

		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-s.wake:
		}
	}
}

// execute runs a single backlog entry through the dispatcher and records the
// outcome. Entries whose task was cancelled after enqueueing are discarded.
func (s *Scheduler) execute(ctx context.Context, taskID string) {
	task, ok := s.store.Get(taskID)
	if !ok || task.Status != TaskPending {
		return
	}

	if err := s.store.MarkRunning(taskID); err != nil {
		// Lost a race with cancellation; nothing to do.
		return
	}

	result, err := s.dispatcher.Dispatch(ctx, task)

	if err != nil {
		cascaded, markErr := s.store.MarkFailed(taskID, err)
		if markErr == nil {
			finished, _ := s.store.Get(taskID)
			s.bus.Publish(events.TopicTask, events.TaskFailedEvent{
				ID:        taskID,
				Type:      string(task.Type),
				Err:       err,
				Duration:  finished.Duration(),
				Timestamp: time.Now(),
			})
			s.publishCascade(cascaded)
		}
	} else {
		ready, markErr := s.store.MarkCompleted(taskID, result.Output, result.Cost)
		if markErr == nil {
			finished, _ := s.store.Get(taskID)
			s.bus.Publish(events.TopicTask, events.TaskCompletedEvent{
				ID:        taskID,
				Type:      string(task.Type),
				Duration:  finished.Duration(),
				Cost:      result.Cost,
				Timestamp: time.Now(),
			})
			for _, readyID := range ready {
				if next, ok := s.store.Get(readyID); ok {
					s.enqueue(readyID, next.Priority)
				}
			}
		}
	}

	s.publishProgress()
	s.signalWake()
}

// pop removes and returns the highest-priority pending backlog entry.
func (s *Scheduler) pop() (string, Priority, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p := PriorityCritical; p >= PriorityLow; p-- {
		for len(s.backlog[p]) > 0 {
			taskID := s.backlog[p][0]
			s.backlog[p] = s.backlog[p][1:]

			if task, ok := s.store.Get(taskID); ok && task.Status == TaskPending {
				return taskID, p, true
			}
			// Cancelled after enqueue; drop without dispatch.
		}
	}
	return "", 0, false
}

func (s *Scheduler) enqueue(taskID string, priority Priority) {
	s.mu.Lock()
	s.backlog[priority] = append(s.backlog[priority], taskID)
	s.mu.Unlock()
	s.signalWake()
}

func (s *Scheduler) requeueFront(taskID string, priority Priority) {
	s.mu.Lock()
	s.backlog[priority] = append([]string{taskID}, s.backlog[priority]...)
	s.mu.Unlock()
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) publishCascade(taskIDs []string) {
	for _, id := range taskIDs {
		task, ok := s.store.Get(id)
		if !ok {
			continue
		}
		s.bus.Publish(events.TopicTask, events.TaskFailedEvent{
			ID:        id,
			Type:      string(task.Type),
			Err:       task.Err,
			Timestamp: time.Now(),
		})
	}
}

func (s *Scheduler) publishProgress() {
	counts := s.store.CountsByStatus()
	s.bus.Publish(events.TopicTask, events.TaskProgressEvent{
		Pending:   counts[TaskPending],
		Running:   counts[TaskRunning],
		Completed: counts[TaskCompleted],
		Failed:    counts[TaskFailed],
		Cancelled: counts[TaskCancelled],
		Timestamp: time.Now(),
	})
}
