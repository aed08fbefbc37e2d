// Package edu holds the domain model: automation workflows on the way in,
// learning modules on the way out, and the intermediate artifacts the
// pipeline phases exchange.
package edu

import (
	"time"
)

// Workflow is the declarative automation-workflow description a learning
// module is built from.
type Workflow struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Trigger     string         `json:"trigger,omitempty"`
	Steps       []WorkflowStep `json:"steps"`
}

// WorkflowStep is one step of an automation workflow.
type WorkflowStep struct {
	Name        string            `json:"name"`
	Action      string            `json:"action"`
	Params      map[string]string `json:"params,omitempty"`
	Conditional bool              `json:"conditional,omitempty"`
}

// RequestOptions control which pipeline phases run and how content is shaped.
type RequestOptions struct {
	IncludeVideo  bool   `json:"include_video"`
	Accessibility bool   `json:"accessibility"`
	Complexity    string `json:"complexity,omitempty"` // beginner, intermediate, advanced
	Style         string `json:"style,omitempty"`      // tutorial, reference, walkthrough
	Language      string `json:"language,omitempty"`
}

// Request is one external "build a learning module from workflow X" request.
type Request struct {
	Workflow        Workflow          `json:"workflow"`
	Options         RequestOptions    `json:"options"`
	UserPreferences map[string]string `json:"user_preferences,omitempty"`
}

// WorkflowAnalysis is the output of the analysis phase.
type WorkflowAnalysis struct {
	StepCount        int      `json:"step_count"`
	ConditionalSteps int      `json:"conditional_steps"`
	Integrations     []string `json:"integrations,omitempty"`
	ComplexityScore  float64  `json:"complexity_score"` // 0-10
	Level            string   `json:"level"`            // beginner, intermediate, advanced
	Topics           []string `json:"topics,omitempty"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Summary          string   `json:"summary"`
}

// RoutingDecision is the optional output of the route-request task; it only
// annotates the content phase, it never gates it.
type RoutingDecision struct {
	PreferredStyle string            `json:"preferred_style,omitempty"`
	Annotations    map[string]string `json:"annotations,omitempty"`
}

// SectionKind classifies a module section.
type SectionKind string

const (
	SectionOverview SectionKind = "overview"
	SectionStep     SectionKind = "step"
	SectionTip      SectionKind = "tip"
	SectionSummary  SectionKind = "summary"
)

// Section is one block of a learning module.
type Section struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Kind  SectionKind `json:"kind"`
}

// InteractiveElement is an embedded non-text element of a module.
type InteractiveElement struct {
	Kind            string `json:"kind"` // video, quiz, exercise
	Title           string `json:"title"`
	Ref             string `json:"ref,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// LearningModule is the final educational artifact.
type LearningModule struct {
	Title               string               `json:"title"`
	Summary             string               `json:"summary"`
	Language            string               `json:"language"`
	Style               string               `json:"style"`
	Level               string               `json:"level"`
	Sections            []Section            `json:"sections"`
	InteractiveElements []InteractiveElement `json:"interactive_elements,omitempty"`
	AccessibilityNotes  []string             `json:"accessibility_notes,omitempty"`
	QualityScore        float64              `json:"quality_score,omitempty"`
	GeneratedAt         time.Time            `json:"generated_at"`
}

// VideoAsset is the output of the video phase, merged into the module as an
// interactive element.
type VideoAsset struct {
	Title           string `json:"title"`
	Ref             string `json:"ref"`
	DurationSeconds int    `json:"duration_seconds"`
	Transcript      string `json:"transcript,omitempty"`
}

// Improvement is one advisory patch from the quality phase. Patches that do
// not apply are dropped, never fatal.
type Improvement struct {
	SectionTitle string `json:"section_title"`
	Append       string `json:"append,omitempty"`
	Note         string `json:"note,omitempty"`
}

// QualityReport is the output of the quality phase.
type QualityReport struct {
	Score        float64       `json:"score"` // 0-100
	Improvements []Improvement `json:"improvements,omitempty"`
}
