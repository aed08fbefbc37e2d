// Package pipeline wires the fixed five-phase flow that turns an automation
// workflow into a learning module: analyze, generate content, optionally
// render video, optionally enhance accessibility, then quality-check.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
	"github.com/lessonsmith/lessonsmith/internal/events"
	"github.com/lessonsmith/lessonsmith/internal/scheduler"
)

// Phase names used in events and error messages.
const (
	PhaseAnalysis      = "analysis"
	PhaseContent       = "content"
	PhaseVideo         = "video"
	PhaseAccessibility = "accessibility"
	PhaseQuality       = "quality"
)

// Pipeline builds learning modules by submitting phase tasks to the
// scheduler and threading each phase's output into the next phase's input.
type Pipeline struct {
	sched       *scheduler.Scheduler
	bus         *events.Bus
	taskTimeout time.Duration
}

// New creates a pipeline. taskTimeout applies to every phase task; zero
// disables per-task timeouts.
func New(sched *scheduler.Scheduler, bus *events.Bus, taskTimeout time.Duration) *Pipeline {
	return &Pipeline{
		sched:       sched,
		bus:         bus,
		taskTimeout: taskTimeout,
	}
}

// Build runs the five phases for one request and returns the assembled
// module. Any non-optional phase failure aborts the run; the returned error
// names the failing phase and wraps the underlying cause. No partial module
// is ever returned alongside an error.
func (p *Pipeline) Build(ctx context.Context, req edu.Request) (*edu.LearningModule, error) {
	runID := uuid.NewString()[:8]
	started := time.Now()

	p.bus.Publish(events.TopicPipeline, events.PipelineStartedEvent{
		RunID:     runID,
		Workflow:  req.Workflow.Name,
		Timestamp: started,
	})

	module, err := p.build(ctx, runID, req)
	if err != nil {
		p.bus.Publish(events.TopicPipeline, events.PipelineFailedEvent{
			RunID:     runID,
			Phase:     phaseOf(err),
			Err:       err,
			Timestamp: time.Now(),
		})
		return nil, err
	}

	p.bus.Publish(events.TopicPipeline, events.PipelineCompletedEvent{
		RunID:     runID,
		Duration:  time.Since(started),
		Timestamp: time.Now(),
	})
	return module, nil
}

func (p *Pipeline) build(ctx context.Context, runID string, req edu.Request) (*edu.LearningModule, error) {
	// Phase 1: analysis. Two parallel tasks; analyze-workflow is critical,
	// route-request is optional and only annotates the content phase.
	analysis, routing, analyzeID, err := p.analysisPhase(ctx, runID, req)
	if err != nil {
		return nil, err
	}

	// Phase 2: content.
	module, contentID, err := p.contentPhase(ctx, runID, req, analysis, routing, analyzeID)
	if err != nil {
		return nil, err
	}
	lastTaskID := contentID

	// Phase 3: video, when requested. The asset merges into the module as an
	// additional interactive element.
	if req.Options.IncludeVideo {
		asset, videoID, err := p.videoPhase(ctx, runID, module, analysis, lastTaskID)
		if err != nil {
			return nil, err
		}
		module.InteractiveElements = append(module.InteractiveElements, edu.InteractiveElement{
			Kind:            "video",
			Title:           asset.Title,
			Ref:             asset.Ref,
			DurationSeconds: asset.DurationSeconds,
		})
		lastTaskID = videoID
	}

	// Phase 4: accessibility, when requested. Replaces the artifact.
	if req.Options.Accessibility {
		enhanced, a11yID, err := p.accessibilityPhase(ctx, runID, module, req.Options.Language, lastTaskID)
		if err != nil {
			return nil, err
		}
		module = enhanced
		lastTaskID = a11yID
	}

	// Phase 5: quality. Improvements are advisory patches, applied best-effort.
	if err := p.qualityPhase(ctx, runID, &module, lastTaskID); err != nil {
		return nil, err
	}

	return &module, nil
}

func (p *Pipeline) analysisPhase(ctx context.Context, runID string, req edu.Request) (edu.WorkflowAnalysis, *edu.RoutingDecision, string, error) {
	analyzeTask, err := p.sched.Submit(scheduler.Config{
		Type:     scheduler.TypeAnalyzeWorkflow,
		Priority: scheduler.PriorityCritical,
		Payload:  edu.AnalyzeRequest{Workflow: req.Workflow, Options: req.Options},
		Requires: []agent.Capability{agent.CapWorkflowAnalysis},
		Timeout:  p.taskTimeout,
	})
	if err != nil {
		return edu.WorkflowAnalysis{}, nil, "", fmt.Errorf("%s phase: %w", PhaseAnalysis, err)
	}

	routeTask, err := p.sched.Submit(scheduler.Config{
		Type:     scheduler.TypeRouteRequest,
		Priority: scheduler.PriorityLow,
		Payload:  edu.RouteQuery{Workflow: req.Workflow, Options: req.Options},
		Requires: []agent.Capability{agent.CapRouting},
		Timeout:  p.taskTimeout,
	})
	if err != nil {
		return edu.WorkflowAnalysis{}, nil, "", fmt.Errorf("%s phase: %w", PhaseAnalysis, err)
	}

	var analyzeOutcome, routeOutcome scheduler.Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		analyzeOutcome, err = p.sched.Await(gctx, analyzeTask.ID)
		return err
	})
	g.Go(func() error {
		var err error
		routeOutcome, err = p.sched.Await(gctx, routeTask.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return edu.WorkflowAnalysis{}, nil, "", fmt.Errorf("%s phase: %w", PhaseAnalysis, err)
	}

	if !analyzeOutcome.Success {
		return edu.WorkflowAnalysis{}, nil, "", fmt.Errorf("%s phase: %w", PhaseAnalysis, analyzeOutcome.Err)
	}
	analysis, ok := analyzeOutcome.Output.(edu.WorkflowAnalysis)
	if !ok {
		return edu.WorkflowAnalysis{}, nil, "", fmt.Errorf("%s phase: unexpected analysis output %T", PhaseAnalysis, analyzeOutcome.Output)
	}

	var routing *edu.RoutingDecision
	if routeOutcome.Success {
		if decision, ok := routeOutcome.Output.(edu.RoutingDecision); ok {
			routing = &decision
		}
	} else {
		// Optional task: swallow, log, proceed with reduced input.
		log.Printf("WARNING: routing task failed, content phase proceeds without routing metadata: %v", routeOutcome.Err)
	}

	p.publishPhase(runID, PhaseAnalysis)
	return analysis, routing, analyzeTask.ID, nil
}

func (p *Pipeline) contentPhase(ctx context.Context, runID string, req edu.Request, analysis edu.WorkflowAnalysis, routing *edu.RoutingDecision, analyzeID string) (edu.LearningModule, string, error) {
	task, err := p.sched.Submit(scheduler.Config{
		Type:     scheduler.TypeGenerateContent,
		Priority: scheduler.PriorityHigh,
		Payload: edu.ContentRequest{
			Workflow:    req.Workflow,
			Analysis:    analysis,
			Routing:     routing,
			Options:     req.Options,
			Preferences: req.UserPreferences,
		},
		Requires:  []agent.Capability{agent.CapContentGeneration},
		Optional:  []agent.Capability{agent.CapAccessibility},
		DependsOn: []string{analyzeID},
		Timeout:   p.taskTimeout,
	})
	if err != nil {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: %w", PhaseContent, err)
	}

	outcome, err := p.sched.Await(ctx, task.ID)
	if err != nil {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: %w", PhaseContent, err)
	}
	if !outcome.Success {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: %w", PhaseContent, outcome.Err)
	}
	module, ok := outcome.Output.(edu.LearningModule)
	if !ok {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: unexpected content output %T", PhaseContent, outcome.Output)
	}

	p.publishPhase(runID, PhaseContent)
	return module, task.ID, nil
}

func (p *Pipeline) videoPhase(ctx context.Context, runID string, module edu.LearningModule, analysis edu.WorkflowAnalysis, dependsOn string) (edu.VideoAsset, string, error) {
	task, err := p.sched.Submit(scheduler.Config{
		Type:      scheduler.TypeCreateVideo,
		Priority:  scheduler.PriorityMedium,
		Payload:   edu.VideoRequest{Module: module, Analysis: analysis},
		Requires:  []agent.Capability{agent.CapVideoGeneration},
		DependsOn: []string{dependsOn},
		Timeout:   p.taskTimeout,
	})
	if err != nil {
		return edu.VideoAsset{}, "", fmt.Errorf("%s phase: %w", PhaseVideo, err)
	}

	outcome, err := p.sched.Await(ctx, task.ID)
	if err != nil {
		return edu.VideoAsset{}, "", fmt.Errorf("%s phase: %w", PhaseVideo, err)
	}
	if !outcome.Success {
		return edu.VideoAsset{}, "", fmt.Errorf("%s phase: %w", PhaseVideo, outcome.Err)
	}
	asset, ok := outcome.Output.(edu.VideoAsset)
	if !ok {
		return edu.VideoAsset{}, "", fmt.Errorf("%s phase: unexpected video output %T", PhaseVideo, outcome.Output)
	}

	p.publishPhase(runID, PhaseVideo)
	return asset, task.ID, nil
}

func (p *Pipeline) accessibilityPhase(ctx context.Context, runID string, module edu.LearningModule, language, dependsOn string) (edu.LearningModule, string, error) {
	task, err := p.sched.Submit(scheduler.Config{
		Type:      scheduler.TypeEnhanceAccessibility,
		Priority:  scheduler.PriorityMedium,
		Payload:   edu.AccessibilityRequest{Module: module, Language: language},
		Requires:  []agent.Capability{agent.CapAccessibility},
		DependsOn: []string{dependsOn},
		Timeout:   p.taskTimeout,
	})
	if err != nil {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: %w", PhaseAccessibility, err)
	}

	outcome, err := p.sched.Await(ctx, task.ID)
	if err != nil {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: %w", PhaseAccessibility, err)
	}
	if !outcome.Success {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: %w", PhaseAccessibility, outcome.Err)
	}
	enhanced, ok := outcome.Output.(edu.LearningModule)
	if !ok {
		return edu.LearningModule{}, "", fmt.Errorf("%s phase: unexpected accessibility output %T", PhaseAccessibility, outcome.Output)
	}

	p.publishPhase(runID, PhaseAccessibility)
	return enhanced, task.ID, nil
}

func (p *Pipeline) qualityPhase(ctx context.Context, runID string, module *edu.LearningModule, dependsOn string) error {
	task, err := p.sched.Submit(scheduler.Config{
		Type:      scheduler.TypeQualityCheck,
		Priority:  scheduler.PriorityMedium,
		Payload:   edu.QualityRequest{Module: *module},
		Requires:  []agent.Capability{agent.CapQualityAssurance},
		DependsOn: []string{dependsOn},
		Timeout:   p.taskTimeout,
	})
	if err != nil {
		return fmt.Errorf("%s phase: %w", PhaseQuality, err)
	}

	outcome, err := p.sched.Await(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("%s phase: %w", PhaseQuality, err)
	}
	if !outcome.Success {
		return fmt.Errorf("%s phase: %w", PhaseQuality, outcome.Err)
	}
	report, ok := outcome.Output.(edu.QualityReport)
	if !ok {
		return fmt.Errorf("%s phase: unexpected quality output %T", PhaseQuality, outcome.Output)
	}

	module.QualityScore = report.Score
	applyImprovements(module, report.Improvements)

	p.publishPhase(runID, PhaseQuality)
	return nil
}

// applyImprovements patches sections by title. Patches that no longer match
// a section are skipped; improvements are advisory and never fatal.
func applyImprovements(module *edu.LearningModule, improvements []edu.Improvement) {
	for _, imp := range improvements {
		if imp.Append == "" {
			continue
		}
		for i := range module.Sections {
			if module.Sections[i].Title == imp.SectionTitle {
				module.Sections[i].Body += imp.Append
				break
			}
		}
	}
}

func (p *Pipeline) publishPhase(runID, phase string) {
	p.bus.Publish(events.TopicPipeline, events.PipelinePhaseEvent{
		RunID:     runID,
		Phase:     phase,
		Timestamp: time.Now(),
	})
}

// phaseOf extracts the leading "<phase> phase:" tag from a build error.
func phaseOf(err error) string {
	msg := err.Error()
	for _, phase := range []string{PhaseAnalysis, PhaseContent, PhaseVideo, PhaseAccessibility, PhaseQuality} {
		if len(msg) >= len(phase) && msg[:len(phase)] == phase {
			return phase
		}
	}
	return ""
}
