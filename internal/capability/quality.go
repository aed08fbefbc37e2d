package capability

import (
	"context"
	"fmt"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
)

// QualityChecker implements the quality-assurance capability.
type QualityChecker struct{}

// NewQualityChecker creates a QualityChecker.
func NewQualityChecker() *QualityChecker { return &QualityChecker{} }

// Execute scores the module and suggests advisory improvements. Improvements
// reference sections by title; the pipeline applies whichever still match.
func (q *QualityChecker) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	payload, ok := req.Payload.(edu.QualityRequest)
	if !ok {
		return agent.Result{}, fmt.Errorf("quality checker: unexpected payload %T", req.Payload)
	}

	module := payload.Module
	score := 40.0
	if module.Summary != "" {
		score += 10
	}
	if len(module.Sections) >= 3 {
		score += 20
	}
	if len(module.AccessibilityNotes) > 0 {
		score += 15
	}
	if len(module.InteractiveElements) > 0 {
		score += 15
	}
	if score > 100 {
		score = 100
	}

	report := edu.QualityReport{Score: score}

	for _, section := range module.Sections {
		if section.Kind == edu.SectionStep && len(section.Body) < 40 {
			report.Improvements = append(report.Improvements, edu.Improvement{
				SectionTitle: section.Title,
				Append:       " Review the workflow editor to see this step's full configuration.",
				Note:         "step body too thin",
			})
		}
	}
	if len(module.Sections) > 0 && module.Sections[len(module.Sections)-1].Kind == edu.SectionSummary {
		report.Improvements = append(report.Improvements, edu.Improvement{
			SectionTitle: module.Sections[len(module.Sections)-1].Title,
			Append:       " Try rebuilding the workflow from scratch to cement what you learned.",
			Note:         "add a call to action",
		})
	}

	return agent.Result{Output: report, Cost: 0.2}, nil
}
