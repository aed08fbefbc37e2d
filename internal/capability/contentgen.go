package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
)

// ContentGenerator implements the content-generation capability. It turns a
// workflow plus its analysis into the base learning module.
type ContentGenerator struct{}

// NewContentGenerator creates a ContentGenerator.
func NewContentGenerator() *ContentGenerator { return &ContentGenerator{} }

// Execute builds the learning module skeleton: overview, one section per
// workflow step, and a closing summary. Routing annotations, when present,
// only tune style and pacing.
func (g *ContentGenerator) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	payload, ok := req.Payload.(edu.ContentRequest)
	if !ok {
		return agent.Result{}, fmt.Errorf("content generator: unexpected payload %T", req.Payload)
	}

	style := payload.Options.Style
	if payload.Routing != nil && payload.Routing.PreferredStyle != "" {
		style = payload.Routing.PreferredStyle
	}
	if style == "" {
		style = "tutorial"
	}

	language := payload.Options.Language
	if language == "" {
		language = "en"
	}

	module := edu.LearningModule{
		Title:       fmt.Sprintf("Understanding the %s workflow", payload.Workflow.Name),
		Summary:     payload.Analysis.Summary,
		Language:    language,
		Style:       style,
		Level:       payload.Analysis.Level,
		GeneratedAt: time.Now(),
	}

	module.Sections = append(module.Sections, edu.Section{
		Title: "Overview",
		Kind:  edu.SectionOverview,
		Body: fmt.Sprintf("This %s covers the %s workflow. %s Expect to spend about %d minutes.",
			style, payload.Workflow.Name, payload.Analysis.Summary, payload.Analysis.EstimatedMinutes),
	})

	for i, step := range payload.Workflow.Steps {
		body := fmt.Sprintf("Step %d performs %s.", i+1, step.Action)
		if step.Conditional {
			body += " This step only runs when its condition holds; pay attention to the branch."
		}
		if service, ok := step.Params["service"]; ok {
			body += fmt.Sprintf(" It integrates with %s.", service)
		}
		module.Sections = append(module.Sections, edu.Section{
			Title: fmt.Sprintf("Step %d: %s", i+1, step.Name),
			Kind:  edu.SectionStep,
			Body:  body,
		})
	}

	if payload.Routing != nil {
		if pace, ok := payload.Routing.Annotations["recommended_pace"]; ok {
			module.Sections = append(module.Sections, edu.Section{
				Title: "Pacing",
				Kind:  edu.SectionTip,
				Body:  fmt.Sprintf("Recommended pace for this material: %s.", pace),
			})
		}
	}

	module.Sections = append(module.Sections, edu.Section{
		Title: "Summary",
		Kind:  edu.SectionSummary,
		Body: fmt.Sprintf("You walked through all %d steps of %s at the %s level.",
			payload.Analysis.StepCount, payload.Workflow.Name, payload.Analysis.Level),
	})

	cost := 0.5 + 0.2*float64(len(module.Sections))
	return agent.Result{Output: module, Cost: cost}, nil
}
