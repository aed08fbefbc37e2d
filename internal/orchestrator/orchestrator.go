// Package orchestrator assembles the registry, task store, scheduler, router,
// health monitor, and pipeline into one engine with a single lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
	"github.com/lessonsmith/lessonsmith/internal/events"
	"github.com/lessonsmith/lessonsmith/internal/health"
	"github.com/lessonsmith/lessonsmith/internal/persistence"
	"github.com/lessonsmith/lessonsmith/internal/pipeline"
	"github.com/lessonsmith/lessonsmith/internal/router"
	"github.com/lessonsmith/lessonsmith/internal/scheduler"
)

// Options configures a new engine. Zero values select defaults.
type Options struct {
	Concurrency     int           // max simultaneously running tasks
	HealthInterval  time.Duration // health monitor tick interval
	HealthThreshold int           // warn below this health score
	TaskTimeout     time.Duration // per-task execution timeout, 0 disables
	Retry           RetryConfig   // policy for agents registered via RegisterResilientAgent
	Journal         persistence.Journal // optional run history, nil disables
}

// Orchestrator owns every moving part of the engine. Construct one per
// process with New; there is no package-level instance.
type Orchestrator struct {
	registry *agent.Registry
	store    *scheduler.Store
	sched    *scheduler.Scheduler
	router   *router.Router
	monitor  *health.Monitor
	bus      *events.Bus
	pipe     *pipeline.Pipeline
	breakers *CircuitBreakerRegistry
	retry    RetryConfig
	journal  persistence.Journal

	mu      sync.Mutex
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup // scheduler and monitor loops
	recWG   sync.WaitGroup // journal recorder
	running bool
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Running    bool
	Agents     []*agent.Agent
	TaskCounts map[scheduler.TaskStatus]int
}

// New creates an engine from opts. Call Start to begin scheduling.
func New(opts Options) *Orchestrator {
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = health.DefaultInterval
	}
	if opts.HealthThreshold <= 0 {
		opts.HealthThreshold = health.DefaultThreshold
	}

	bus := events.NewBus()
	registry := agent.NewRegistry()
	store := scheduler.NewStore()
	rt := router.New(registry, bus)
	sched := scheduler.NewScheduler(store, rt, bus, opts.Concurrency)

	return &Orchestrator{
		registry: registry,
		store:    store,
		sched:    sched,
		router:   rt,
		monitor:  health.NewMonitor(registry, bus, opts.HealthInterval, opts.HealthThreshold),
		bus:      bus,
		pipe:     pipeline.New(sched, bus, opts.TaskTimeout),
		breakers: NewCircuitBreakerRegistry(),
		retry:    opts.Retry,
		journal:  opts.Journal,
	}
}

// RegisterAgent adds an agent and binds its executor to the agent's
// capability. The executor is invoked exactly once per task; a failure is
// recorded on the task, not retried. Callers that want retry register with
// RegisterResilientAgent or wrap the executor themselves.
func (o *Orchestrator) RegisterAgent(id, name string, cap agent.Capability, version string, exec agent.Executor) error {
	if err := o.registry.Register(id, name, cap, version); err != nil {
		return err
	}
	return o.router.RegisterExecutor(cap, exec)
}

// RegisterResilientAgent is RegisterAgent with the executor wrapped in
// exponential backoff retry and the capability's circuit breaker. Use it for
// capabilities backed by flaky external services.
func (o *Orchestrator) RegisterResilientAgent(id, name string, cap agent.Capability, version string, exec agent.Executor) error {
	if err := o.registry.Register(id, name, cap, version); err != nil {
		return err
	}
	return o.router.RegisterExecutor(cap, WrapResilience(exec, o.breakers.Get(cap), o.retry))
}

// Start launches the scheduling loop, the health monitor, and the journal
// recorder. It returns immediately; Shutdown stops everything.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("orchestrator already started")
	}
	o.running = true

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.loopWG.Add(2)
	go func() {
		defer o.loopWG.Done()
		o.sched.Run(runCtx)
	}()
	go func() {
		defer o.loopWG.Done()
		o.monitor.Run(runCtx)
	}()

	if o.journal != nil {
		ch := o.bus.SubscribeAll(256)
		o.recWG.Add(1)
		go func() {
			defer o.recWG.Done()
			o.recordEvents(ch)
		}()
	}

	return nil
}

// Shutdown stops the engine and waits for in-flight tasks to finish. The bus
// closes only after the scheduling loop drains, so terminal events reach the
// journal. Safe to call more than once.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.loopWG.Wait()
	o.bus.Close()
	o.recWG.Wait()
}

// BuildModule runs the five-phase pipeline for one request.
func (o *Orchestrator) BuildModule(ctx context.Context, req edu.Request) (*edu.LearningModule, error) {
	return o.pipe.Build(ctx, req)
}

// Submit creates a task and schedules it once its dependencies complete.
func (o *Orchestrator) Submit(cfg scheduler.Config) (*scheduler.Task, error) {
	return o.sched.Submit(cfg)
}

// Await blocks until the task reaches a terminal state or ctx is done.
func (o *Orchestrator) Await(ctx context.Context, taskID string) (scheduler.Outcome, error) {
	return o.sched.Await(ctx, taskID)
}

// Cancel cancels a pending task.
func (o *Orchestrator) Cancel(taskID string) error {
	return o.sched.Cancel(taskID)
}

// ResetAgent returns an errored agent to service.
func (o *Orchestrator) ResetAgent(agentID string) error {
	return o.router.ResetAgent(agentID)
}

// Validate checks the task graph for dependency cycles.
func (o *Orchestrator) Validate() error {
	_, err := o.store.Validate()
	return err
}

// Task returns a snapshot of one task.
func (o *Orchestrator) Task(taskID string) (*scheduler.Task, bool) {
	return o.store.Get(taskID)
}

// Tasks returns snapshots of every task.
func (o *Orchestrator) Tasks() []*scheduler.Task {
	return o.store.Tasks()
}

// Bus exposes the event bus for subscribers such as the dashboard.
func (o *Orchestrator) Bus() *events.Bus {
	return o.bus
}

// Status returns a snapshot of agents and task counts. Calling it never
// mutates engine state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	running := o.running
	o.mu.Unlock()

	return Status{
		Running:    running,
		Agents:     o.registry.All(),
		TaskCounts: o.store.CountsByStatus(),
	}
}

// recordEvents journals lifecycle events until the bus closes. Pipeline
// start events are held in memory so completions can be stored with their
// workflow name.
func (o *Orchestrator) recordEvents(ch <-chan events.Event) {
	ctx := context.Background()
	started := map[string]string{} // run ID -> workflow name

	for ev := range ch {
		var err error
		switch e := ev.(type) {
		case events.TaskCompletedEvent:
			err = o.recordTask(ctx, e.ID)
		case events.TaskFailedEvent:
			err = o.recordTask(ctx, e.ID)
		case events.TaskCancelledEvent:
			err = o.recordTask(ctx, e.ID)
		case events.HealthWarningEvent:
			err = o.journal.RecordHealthWarning(ctx, persistence.HealthWarning{
				AgentID:    e.AgentID,
				Score:      e.Score,
				ObservedAt: e.Timestamp,
			})
		case events.PipelineStartedEvent:
			started[e.RunID] = e.Workflow
		case events.PipelineCompletedEvent:
			err = o.journal.RecordPipelineRun(ctx, persistence.PipelineRun{
				RunID:    e.RunID,
				Workflow: started[e.RunID],
				Status:   "completed",
				Duration: e.Duration,
			})
			delete(started, e.RunID)
		case events.PipelineFailedEvent:
			errStr := ""
			if e.Err != nil {
				errStr = e.Err.Error()
			}
			err = o.journal.RecordPipelineRun(ctx, persistence.PipelineRun{
				RunID:    e.RunID,
				Workflow: started[e.RunID],
				Status:   "failed",
				Phase:    e.Phase,
				Error:    errStr,
			})
			delete(started, e.RunID)
		}
		if err != nil {
			log.Printf("WARNING: journal write failed: %v", err)
		}
	}
}

func (o *Orchestrator) recordTask(ctx context.Context, taskID string) error {
	task, ok := o.store.Get(taskID)
	if !ok {
		return nil
	}
	return o.journal.RecordTask(ctx, task)
}
