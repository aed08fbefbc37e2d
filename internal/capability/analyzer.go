// Package capability provides the built-in reference implementations of the
// six agent capabilities. They are deliberately simple and replaceable: the
// orchestrator treats every executor as an opaque external call.
package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
)

// Analyzer implements the workflow-analysis capability.
type Analyzer struct{}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Execute derives a complexity profile from the workflow's shape.
func (a *Analyzer) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	payload, ok := req.Payload.(edu.AnalyzeRequest)
	if !ok {
		return agent.Result{}, fmt.Errorf("analyzer: unexpected payload %T", req.Payload)
	}

	wf := payload.Workflow
	if len(wf.Steps) == 0 {
		return agent.Result{}, fmt.Errorf("analyzer: workflow %q has no steps", wf.Name)
	}

	conditionals := 0
	integrations := make(map[string]bool)
	topics := make(map[string]bool)
	for _, step := range wf.Steps {
		if step.Conditional {
			conditionals++
		}
		if service, ok := step.Params["service"]; ok {
			integrations[service] = true
		}
		if idx := strings.IndexByte(step.Action, '.'); idx > 0 {
			topics[step.Action[:idx]] = true
		} else if step.Action != "" {
			topics[step.Action] = true
		}
	}

	score := float64(len(wf.Steps))*0.8 + float64(conditionals)*1.5 + float64(len(integrations))*1.2
	if score > 10 {
		score = 10
	}

	level := payload.Options.Complexity
	if level == "" {
		switch {
		case score < 3:
			level = "beginner"
		case score < 6:
			level = "intermediate"
		default:
			level = "advanced"
		}
	}

	analysis := edu.WorkflowAnalysis{
		StepCount:        len(wf.Steps),
		ConditionalSteps: conditionals,
		Integrations:     sortedKeys(integrations),
		ComplexityScore:  score,
		Level:            level,
		Topics:           sortedKeys(topics),
		EstimatedMinutes: 5 + 3*len(wf.Steps),
		Summary: fmt.Sprintf("%q is a %d-step %s workflow with %d conditional branch(es).",
			wf.Name, len(wf.Steps), level, conditionals),
	}

	return agent.Result{Output: analysis, Cost: 0.1 * float64(len(wf.Steps))}, nil
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
