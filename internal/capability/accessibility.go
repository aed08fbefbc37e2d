package capability

import (
	"context"
	"fmt"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
)

// AccessibilityEnhancer implements the accessibility-enhancement capability.
// It returns a replacement module, never mutating its input.
type AccessibilityEnhancer struct{}

// NewAccessibilityEnhancer creates an AccessibilityEnhancer.
func NewAccessibilityEnhancer() *AccessibilityEnhancer { return &AccessibilityEnhancer{} }

// Execute annotates the module with accessibility guidance: language
// tagging, captions for interactive elements, and plain-language notes.
func (e *AccessibilityEnhancer) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	payload, ok := req.Payload.(edu.AccessibilityRequest)
	if !ok {
		return agent.Result{}, fmt.Errorf("accessibility enhancer: unexpected payload %T", req.Payload)
	}

	module := payload.Module
	module.Sections = append([]edu.Section(nil), payload.Module.Sections...)
	module.InteractiveElements = append([]edu.InteractiveElement(nil), payload.Module.InteractiveElements...)
	module.AccessibilityNotes = append([]string(nil), payload.Module.AccessibilityNotes...)

	if module.Language == "" {
		module.Language = payload.Language
	}
	if module.Language == "" {
		module.Language = "en"
	}
	module.AccessibilityNotes = append(module.AccessibilityNotes,
		fmt.Sprintf("Content language declared as %q for assistive technologies.", module.Language))

	for _, el := range module.InteractiveElements {
		if el.Kind == "video" {
			module.AccessibilityNotes = append(module.AccessibilityNotes,
				fmt.Sprintf("Captions and transcript available for %q.", el.Title))
		}
	}

	module.AccessibilityNotes = append(module.AccessibilityNotes,
		"All step headings follow a consistent hierarchy for screen-reader navigation.")

	return agent.Result{Output: module, Cost: 0.3 + 0.05*float64(len(module.Sections))}, nil
}
