package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type testPayload struct {
	kind TaskType
}

func (p testPayload) TaskKind() TaskType { return p.kind }

func TestStoreCreateValidation(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(s *Store) error
		errContains string
	}{
		{
			name: "valid task",
			setup: func(s *Store) error {
				_, err := s.Create(Config{Type: TypeAnalyzeWorkflow})
				return err
			},
		},
		{
			name: "unknown task type",
			setup: func(s *Store) error {
				_, err := s.Create(Config{Type: TaskType("teleport")})
				return err
			},
			errContains: "unknown task type",
		},
		{
			name: "payload kind mismatch",
			setup: func(s *Store) error {
				_, err := s.Create(Config{Type: TypeQualityCheck, Payload: testPayload{kind: TypeCreateVideo}})
				return err
			},
			errContains: "does not match task type",
		},
		{
			name: "unknown dependency",
			setup: func(s *Store) error {
				_, err := s.Create(Config{Type: TypeGenerateContent, DependsOn: []string{"no-such-task"}})
				return err
			},
			errContains: "unknown dependency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := tt.setup(s)

			if tt.errContains == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestStoreTaskIDsAreUnique(t *testing.T) {
	s := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task, err := s.Create(Config{Type: TypeRouteRequest})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[task.ID] {
			t.Fatalf("duplicate task ID %q", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestStoreEligibility(t *testing.T) {
	s := NewStore()

	t1, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})
	t2, _ := s.Create(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})

	if !s.Eligible(t1.ID) {
		t.Error("task with no dependencies should be eligible immediately")
	}
	if s.Eligible(t2.ID) {
		t.Error("task with pending dependency must not be eligible")
	}

	if err := s.MarkRunning(t1.ID); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	ready, err := s.MarkCompleted(t1.ID, "analysis", 1.5)
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	if len(ready) != 1 || ready[0] != t2.ID {
		t.Errorf("MarkCompleted returned ready=%v, want [%s]", ready, t2.ID)
	}
	if !s.Eligible(t2.ID) {
		t.Error("dependent should be eligible after dependency completes")
	}
}

func TestStoreDependencyOnCompletedTask(t *testing.T) {
	s := NewStore()

	t1, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})
	s.MarkRunning(t1.ID)
	s.MarkCompleted(t1.ID, nil, 0)

	t2, err := s.Create(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !s.Eligible(t2.ID) {
		t.Error("dependency already completed, task should be eligible at creation")
	}
}

func TestStoreDependencyFailurePropagates(t *testing.T) {
	s := NewStore()

	t1, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})
	t2, _ := s.Create(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})
	t3, _ := s.Create(Config{Type: TypeQualityCheck, DependsOn: []string{t2.ID}})

	s.MarkRunning(t1.ID)
	cascaded, err := s.MarkFailed(t1.ID, errors.New("analysis blew up"))
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	if len(cascaded) != 2 {
		t.Fatalf("cascade failed %d tasks, want 2 (transitive)", len(cascaded))
	}

	for _, id := range []string{t2.ID, t3.ID} {
		task, _ := s.Get(id)
		if task.Status != TaskFailed {
			t.Errorf("dependent %s status = %s, want failed", id, task.Status)
		}
		if !errors.Is(task.Err, ErrDependencyFailed) {
			t.Errorf("dependent %s error = %v, want ErrDependencyFailed", id, task.Err)
		}
	}
}

func TestStoreCreateWithFailedDependency(t *testing.T) {
	s := NewStore()

	t1, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})
	s.MarkRunning(t1.ID)
	s.MarkFailed(t1.ID, errors.New("boom"))

	t2, err := s.Create(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if t2.Status != TaskFailed {
		t.Errorf("task depending on failed task = %s, want failed at creation", t2.Status)
	}
	if !errors.Is(t2.Err, ErrDependencyFailed) {
		t.Errorf("error = %v, want ErrDependencyFailed", t2.Err)
	}
}

func TestStoreCancelSemantics(t *testing.T) {
	s := NewStore()

	pending, _ := s.Create(Config{Type: TypeCreateVideo})
	if _, err := s.Cancel(pending.ID); err != nil {
		t.Fatalf("cancelling a pending task should succeed: %v", err)
	}
	task, _ := s.Get(pending.ID)
	if task.Status != TaskCancelled {
		t.Errorf("status = %s, want cancelled", task.Status)
	}
	if !errors.Is(task.Err, ErrCancelled) {
		t.Errorf("cancelled task error = %v, want ErrCancelled", task.Err)
	}

	outcome, err := s.Await(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if outcome.Success || !errors.Is(outcome.Err, ErrCancelled) {
		t.Errorf("outcome = %+v, want cancellation distinguishable from failure", outcome)
	}

	running, _ := s.Create(Config{Type: TypeCreateVideo})
	s.MarkRunning(running.ID)
	if _, err := s.Cancel(running.ID); err == nil {
		t.Error("cancelling a running task must be rejected")
	}

	// Terminal states are permanent: no transition out of cancelled.
	if err := s.MarkRunning(pending.ID); err == nil {
		t.Error("MarkRunning on a cancelled task must be rejected")
	}
}

func TestStoreCancelFailsDependents(t *testing.T) {
	s := NewStore()

	t1, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})
	t2, _ := s.Create(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})

	cascaded, err := s.Cancel(t1.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(cascaded) != 1 || cascaded[0] != t2.ID {
		t.Errorf("cascade = %v, want [%s]", cascaded, t2.ID)
	}

	task, _ := s.Get(t2.ID)
	if task.Status != TaskFailed || !errors.Is(task.Err, ErrDependencyFailed) {
		t.Errorf("dependent of cancelled task: status=%s err=%v", task.Status, task.Err)
	}
}

func TestStoreTerminalStatesArePermanent(t *testing.T) {
	s := NewStore()

	task, _ := s.Create(Config{Type: TypeQualityCheck})
	s.MarkRunning(task.ID)
	if _, err := s.MarkCompleted(task.ID, "ok", 0.5); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	if _, err := s.MarkFailed(task.ID, errors.New("late failure")); err == nil {
		t.Error("MarkFailed on completed task must be rejected")
	}
	if _, err := s.MarkCompleted(task.ID, "again", 0); err == nil {
		t.Error("double MarkCompleted must be rejected")
	}

	got, _ := s.Get(task.ID)
	if got.Result != "ok" || got.Err != nil {
		t.Errorf("result/error mutated after terminal transition: %v / %v", got.Result, got.Err)
	}
}

func TestStoreAwait(t *testing.T) {
	s := NewStore()
	task, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.MarkRunning(task.ID)
		s.MarkCompleted(task.ID, "done", 2.0)
	}()

	outcome, err := s.Await(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if !outcome.Success || outcome.Output != "done" || outcome.Cost != 2.0 {
		t.Errorf("outcome = %+v, want success with output done", outcome)
	}
}

func TestStoreAwaitRespectsContext(t *testing.T) {
	s := NewStore()
	task, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Await(ctx, task.ID)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await error = %v, want deadline exceeded", err)
	}
}

func TestStoreValidateDetectsCycle(t *testing.T) {
	s := NewStore()

	t1, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})
	t2, _ := s.Create(Config{Type: TypeGenerateContent, DependsOn: []string{t1.ID}})

	if _, err := s.Validate(); err != nil {
		t.Fatalf("Validate on acyclic graph failed: %v", err)
	}

	// Forge a cycle by hand; Create cannot produce one since it rejects
	// forward references.
	s.mu.Lock()
	s.tasks[t1.ID].DependsOn = []string{t2.ID}
	s.dependents[t2.ID] = append(s.dependents[t2.ID], t1.ID)
	s.mu.Unlock()

	if _, err := s.Validate(); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Validate error = %v, want cycle", err)
	}
}

func TestStoreCountsByStatus(t *testing.T) {
	s := NewStore()

	t1, _ := s.Create(Config{Type: TypeAnalyzeWorkflow})
	s.Create(Config{Type: TypeRouteRequest})
	s.MarkRunning(t1.ID)

	counts := s.CountsByStatus()
	if counts[TaskRunning] != 1 || counts[TaskPending] != 1 {
		t.Errorf("counts = %v, want 1 running, 1 pending", counts)
	}

	// Idempotent with no intervening activity.
	again := s.CountsByStatus()
	for status, n := range counts {
		if again[status] != n {
			t.Errorf("counts changed without activity: %v vs %v", counts, again)
		}
	}
}
