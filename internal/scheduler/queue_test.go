package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/events"
)

// dispatcherFunc adapts a function to the Dispatcher interface.
type dispatcherFunc func(ctx context.Context, task *Task) (agent.Result, error)

func (f dispatcherFunc) Dispatch(ctx context.Context, task *Task) (agent.Result, error) {
	return f(ctx, task)
}

// startScheduler runs the scheduler in the background and returns a stop
// function that waits for the loop to exit.
func startScheduler(t *testing.T, s *Scheduler) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestSchedulerDependencyOrdering(t *testing.T) {
	store := NewStore()
	bus := events.NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var order []TaskType

	dispatcher := dispatcherFunc(func(ctx context.Context, task *Task) (agent.Result, error) {
		mu.Lock()
		order = append(order, task.Type)
		mu.Unlock()
		if task.Type == TypeAnalyzeWorkflow {
			time.Sleep(30 * time.Millisecond)
		}
		return agent.Result{Output: "ok"}, nil
	})

	s := NewScheduler(store, dispatcher, bus, 5)
	stop := startScheduler(t, s)
	defer stop()

	t1, err := s.Submit(Config{Type: TypeAnalyzeWorkflow})
	if err != nil {
		t.Fatalf("Submit t1 failed: %v", err)
	}
	t2, err := s.Submit(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})
	if err != nil {
		t.Fatalf("Submit t2 failed: %v", err)
	}

	outcome, err := s.Await(context.Background(), t2.ID)
	if err != nil || !outcome.Success {
		t.Fatalf("t2 did not complete: %v / %+v", err, outcome)
	}

	first, _ := store.Get(t1.ID)
	second, _ := store.Get(t2.ID)
	if second.StartedAt.Before(first.EndedAt) {
		t.Errorf("dependent started at %v before dependency completed at %v",
			second.StartedAt, first.EndedAt)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != TypeAnalyzeWorkflow {
		t.Errorf("dispatch order = %v, want analyze first", order)
	}
}

func TestSchedulerConcurrencyCeiling(t *testing.T) {
	store := NewStore()
	bus := events.NewBus()
	defer bus.Close()

	const limit = 2
	var inFlight, peak atomic.Int32

	dispatcher := dispatcherFunc(func(ctx context.Context, task *Task) (agent.Result, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return agent.Result{}, nil
	})

	s := NewScheduler(store, dispatcher, bus, limit)
	stop := startScheduler(t, s)
	defer stop()

	var ids []string
	for i := 0; i < 6; i++ {
		task, err := s.Submit(Config{Type: TypeRouteRequest})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		ids = append(ids, task.ID)
	}

	for _, id := range ids {
		if _, err := s.Await(context.Background(), id); err != nil {
			t.Fatalf("Await failed: %v", err)
		}
	}

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, exceeds ceiling %d", got, limit)
	}
}

func TestSchedulerPriorityOrder(t *testing.T) {
	store := NewStore()
	bus := events.NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var order []Priority

	dispatcher := dispatcherFunc(func(ctx context.Context, task *Task) (agent.Result, error) {
		mu.Lock()
		order = append(order, task.Priority)
		mu.Unlock()
		return agent.Result{}, nil
	})

	s := NewScheduler(store, dispatcher, bus, 1)

	// Enqueue before the loop starts so both are eligible simultaneously.
	high, _ := s.Submit(Config{Type: TypeGenerateContent, Priority: PriorityHigh})
	critical, _ := s.Submit(Config{Type: TypeAnalyzeWorkflow, Priority: PriorityCritical})

	stop := startScheduler(t, s)
	defer stop()

	for _, id := range []string{high.ID, critical.ID} {
		if _, err := s.Await(context.Background(), id); err != nil {
			t.Fatalf("Await failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != PriorityCritical {
		t.Errorf("dispatch order = %v, want critical first", order)
	}
}

func TestSchedulerFIFOWithinTier(t *testing.T) {
	store := NewStore()
	bus := events.NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var order []string

	dispatcher := dispatcherFunc(func(ctx context.Context, task *Task) (agent.Result, error) {
		mu.Lock()
		order = append(order, task.ID)
		mu.Unlock()
		return agent.Result{}, nil
	})

	s := NewScheduler(store, dispatcher, bus, 1)

	var ids []string
	for i := 0; i < 4; i++ {
		task, _ := s.Submit(Config{Type: TypeRouteRequest, Priority: PriorityMedium})
		ids = append(ids, task.ID)
	}

	stop := startScheduler(t, s)
	defer stop()

	for _, id := range ids {
		if _, err := s.Await(context.Background(), id); err != nil {
			t.Fatalf("Await failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range ids {
		if order[i] != id {
			t.Fatalf("dispatch order = %v, want submission order %v", order, ids)
		}
	}
}

func TestSchedulerCancelledTaskNeverDispatched(t *testing.T) {
	store := NewStore()
	bus := events.NewBus()
	defer bus.Close()

	var dispatched atomic.Int32
	release := make(chan struct{})

	dispatcher := dispatcherFunc(func(ctx context.Context, task *Task) (agent.Result, error) {
		dispatched.Add(1)
		if task.Type == TypeAnalyzeWorkflow {
			<-release
		}
		return agent.Result{}, nil
	})

	s := NewScheduler(store, dispatcher, bus, 1)
	stop := startScheduler(t, s)
	defer stop()

	blocker, _ := s.Submit(Config{Type: TypeAnalyzeWorkflow})
	victim, _ := s.Submit(Config{Type: TypeRouteRequest})

	// Wait until the blocker occupies the only slot.
	deadline := time.Now().Add(2 * time.Second)
	for dispatched.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("blocker never dispatched")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Cancel(victim.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	close(release)

	if _, err := s.Await(context.Background(), blocker.ID); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if _, err := s.Await(context.Background(), victim.ID); err != nil {
		t.Fatalf("Await failed: %v", err)
	}

	task, _ := store.Get(victim.ID)
	if task.Status != TaskCancelled {
		t.Errorf("victim status = %s, want cancelled", task.Status)
	}
	if dispatched.Load() != 1 {
		t.Errorf("dispatched %d tasks, cancelled task must not be dispatched", dispatched.Load())
	}
}

func TestSchedulerFailureMarksTaskAndCascades(t *testing.T) {
	store := NewStore()
	bus := events.NewBus()
	defer bus.Close()

	wantErr := errors.New("capability exploded")
	dispatcher := dispatcherFunc(func(ctx context.Context, task *Task) (agent.Result, error) {
		return agent.Result{}, wantErr
	})

	s := NewScheduler(store, dispatcher, bus, 2)
	stop := startScheduler(t, s)
	defer stop()

	t1, _ := s.Submit(Config{Type: TypeAnalyzeWorkflow})
	t2, _ := s.Submit(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})

	outcome, err := s.Await(context.Background(), t2.ID)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if outcome.Success {
		t.Fatal("dependent of failed task reported success")
	}
	if !errors.Is(outcome.Err, ErrDependencyFailed) {
		t.Errorf("dependent error = %v, want ErrDependencyFailed", outcome.Err)
	}

	first, _ := store.Get(t1.ID)
	if !errors.Is(first.Err, wantErr) {
		t.Errorf("task error = %v, want original dispatcher error", first.Err)
	}
}

func TestSchedulerPublishesLifecycleEvents(t *testing.T) {
	store := NewStore()
	bus := events.NewBus()
	defer bus.Close()

	sub := bus.Subscribe(events.TopicTask, 32)

	dispatcher := dispatcherFunc(func(ctx context.Context, task *Task) (agent.Result, error) {
		return agent.Result{Output: "ok", Cost: 1.0}, nil
	})

	s := NewScheduler(store, dispatcher, bus, 1)
	stop := startScheduler(t, s)
	defer stop()

	task, _ := s.Submit(Config{Type: TypeQualityCheck})
	if _, err := s.Await(context.Background(), task.ID); err != nil {
		t.Fatalf("Await failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub:
			if completed, ok := ev.(events.TaskCompletedEvent); ok {
				if completed.ID != task.ID {
					t.Errorf("completed event for %q, want %q", completed.ID, task.ID)
				}
				return
			}
		case <-deadline:
			t.Fatal("never saw task.completed event")
		}
	}
}
