package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/capability"
	"github.com/lessonsmith/lessonsmith/internal/edu"
	"github.com/lessonsmith/lessonsmith/internal/persistence"
	"github.com/lessonsmith/lessonsmith/internal/scheduler"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func registerBuiltins(t *testing.T, o *Orchestrator) {
	t.Helper()
	builtins := []struct {
		id   string
		cap  agent.Capability
		exec agent.Executor
	}{
		{"agent-analyze", agent.CapWorkflowAnalysis, capability.NewAnalyzer()},
		{"agent-content", agent.CapContentGeneration, capability.NewContentGenerator()},
		{"agent-video", agent.CapVideoGeneration, capability.NewVideoSynthesizer()},
		{"agent-a11y", agent.CapAccessibility, capability.NewAccessibilityEnhancer()},
		{"agent-route", agent.CapRouting, capability.NewRequestRouter()},
		{"agent-qa", agent.CapQualityAssurance, capability.NewQualityChecker()},
	}
	for _, b := range builtins {
		if err := o.RegisterAgent(b.id, b.id, b.cap, "1.0.0", b.exec); err != nil {
			t.Fatalf("RegisterAgent(%s) failed: %v", b.id, err)
		}
	}
}

func sampleRequest() edu.Request {
	return edu.Request{
		Workflow: edu.Workflow{
			Name:    "invoice-sync",
			Trigger: "new invoice",
			Steps: []edu.WorkflowStep{
				{Name: "Fetch invoice", Action: "billing.fetch", Params: map[string]string{"service": "stripe"}},
				{Name: "Validate totals", Action: "billing.validate", Conditional: true},
				{Name: "Post to ledger", Action: "ledger.post"},
			},
		},
	}
}

func TestBuildModuleEndToEnd(t *testing.T) {
	ctx := context.Background()
	journal, err := persistence.NewMemoryJournal(ctx)
	if err != nil {
		t.Fatalf("NewMemoryJournal failed: %v", err)
	}
	defer journal.Close()

	o := New(Options{
		Concurrency: 4,
		Retry:       fastRetry(),
		Journal:     journal,
	})
	registerBuiltins(t, o)

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	req := sampleRequest()
	req.Options.IncludeVideo = true
	module, err := o.BuildModule(ctx, req)
	if err != nil {
		t.Fatalf("BuildModule failed: %v", err)
	}
	if module.QualityScore <= 0 {
		t.Error("module was not quality-checked")
	}

	o.Shutdown()

	// The journal recorder drains before Shutdown returns.
	runs, err := journal.ListPipelineRuns(ctx)
	if err != nil {
		t.Fatalf("ListPipelineRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "completed" {
		t.Fatalf("runs = %+v, want one completed run", runs)
	}
	if runs[0].Workflow != "invoice-sync" {
		t.Errorf("workflow = %q", runs[0].Workflow)
	}

	records, err := journal.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("no task records journaled")
	}
	for _, rec := range records {
		if rec.Status != "completed" {
			t.Errorf("task %s status = %q", rec.ID, rec.Status)
		}
	}
}

func TestStatusSnapshot(t *testing.T) {
	o := New(Options{Retry: fastRetry()})
	registerBuiltins(t, o)

	first := o.Status()
	second := o.Status()

	if first.Running {
		t.Error("engine reported running before Start")
	}
	if len(first.Agents) != 6 || len(second.Agents) != 6 {
		t.Errorf("agent counts = %d/%d, want 6", len(first.Agents), len(second.Agents))
	}
	for status, n := range first.TaskCounts {
		if second.TaskCounts[status] != n {
			t.Errorf("count for %s changed between snapshots", status)
		}
	}
}

func TestStartTwiceRejected(t *testing.T) {
	o := New(Options{Retry: fastRetry()})
	registerBuiltins(t, o)

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.Shutdown()

	if err := o.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	o := New(Options{Retry: fastRetry()})
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	o.Shutdown()
	o.Shutdown()
}

func TestRegisterAgentDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	failing := agent.ExecutorFunc(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		calls.Add(1)
		return agent.Result{}, errors.New("workflow has no steps")
	})

	o := New(Options{Concurrency: 1, Retry: fastRetry()})
	if err := o.RegisterAgent("agent-analyze", "agent-analyze", agent.CapWorkflowAnalysis, "1.0.0", failing); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.Shutdown()

	task, err := o.Submit(scheduler.Config{Type: scheduler.TypeAnalyzeWorkflow})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	outcome, err := o.Await(ctx, task.ID)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if outcome.Success {
		t.Fatal("failing executor reported success")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("executor called %d times, want exactly 1 for a business failure", got)
	}
}

func TestRegisterResilientAgentRetries(t *testing.T) {
	var calls atomic.Int32
	flaky := agent.ExecutorFunc(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		if calls.Add(1) < 3 {
			return agent.Result{}, errors.New("transient")
		}
		return agent.Result{Output: "ok"}, nil
	})

	o := New(Options{Concurrency: 1, Retry: fastRetry()})
	if err := o.RegisterResilientAgent("agent-content", "agent-content", agent.CapContentGeneration, "1.0.0", flaky); err != nil {
		t.Fatalf("RegisterResilientAgent failed: %v", err)
	}

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.Shutdown()

	task, err := o.Submit(scheduler.Config{Type: scheduler.TypeGenerateContent})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	outcome, err := o.Await(ctx, task.ID)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("task failed after retries: %v", outcome.Err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("executor called %d times, want 3", got)
	}
}

func TestResilienceRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	flaky := agent.ExecutorFunc(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		if calls.Add(1) < 3 {
			return agent.Result{}, errors.New("transient")
		}
		return agent.Result{Output: "ok"}, nil
	})

	breakers := NewCircuitBreakerRegistry()
	exec := WrapResilience(flaky, breakers.Get(agent.CapContentGeneration), fastRetry())

	result, err := exec.Execute(context.Background(), agent.Request{TaskID: "t-1"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "ok" {
		t.Errorf("output = %v", result.Output)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("executor called %d times, want 3", got)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	breakers := NewCircuitBreakerRegistry()
	cb := breakers.Get(agent.CapVideoGeneration)

	boom := errors.New("backend down")
	for i := 0; i < 5; i++ {
		cb.Execute(func() (interface{}, error) { return nil, boom })
	}

	var calls atomic.Int32
	inner := agent.ExecutorFunc(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		calls.Add(1)
		return agent.Result{}, boom
	})
	exec := WrapResilience(inner, cb, fastRetry())

	_, err := exec.Execute(context.Background(), agent.Request{TaskID: "t-1"})
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("error = %v, want open circuit", err)
	}
	if calls.Load() != 0 {
		t.Error("inner executor called while circuit open")
	}
}

func TestBreakersArePerCapability(t *testing.T) {
	breakers := NewCircuitBreakerRegistry()
	video := breakers.Get(agent.CapVideoGeneration)
	content := breakers.Get(agent.CapContentGeneration)
	if video == content {
		t.Fatal("capabilities share a circuit breaker")
	}
	if breakers.Get(agent.CapVideoGeneration) != video {
		t.Error("breaker lookup not stable")
	}
}

func TestSubmitAwaitCancel(t *testing.T) {
	o := New(Options{Concurrency: 2, Retry: fastRetry()})
	registerBuiltins(t, o)

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer o.Shutdown()

	task, err := o.Submit(scheduler.Config{
		Type:     scheduler.TypeAnalyzeWorkflow,
		Priority: scheduler.PriorityHigh,
		Payload:  edu.AnalyzeRequest{Workflow: sampleRequest().Workflow},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	outcome, err := o.Await(ctx, task.ID)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("task failed: %v", outcome.Err)
	}
	if _, ok := outcome.Output.(edu.WorkflowAnalysis); !ok {
		t.Errorf("output type %T", outcome.Output)
	}

	if err := o.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}
