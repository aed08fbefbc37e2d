package edu

import (
	"github.com/lessonsmith/lessonsmith/internal/scheduler"
)

// Typed payloads, one per phase operation. The scheduler's Payload interface
// keeps the set closed: a new phase is a new type here plus a task type
// constant, not a string-matched branch.

// AnalyzeRequest is the payload of an analyze-workflow task.
type AnalyzeRequest struct {
	Workflow Workflow
	Options  RequestOptions
}

func (AnalyzeRequest) TaskKind() scheduler.TaskType { return scheduler.TypeAnalyzeWorkflow }

// RouteQuery is the payload of a route-request task.
type RouteQuery struct {
	Workflow Workflow
	Options  RequestOptions
}

func (RouteQuery) TaskKind() scheduler.TaskType { return scheduler.TypeRouteRequest }

// ContentRequest is the payload of a generate-content task.
type ContentRequest struct {
	Workflow    Workflow
	Analysis    WorkflowAnalysis
	Routing     *RoutingDecision // nil when the optional routing task failed
	Options     RequestOptions
	Preferences map[string]string
}

func (ContentRequest) TaskKind() scheduler.TaskType { return scheduler.TypeGenerateContent }

// VideoRequest is the payload of a create-video task.
type VideoRequest struct {
	Module   LearningModule
	Analysis WorkflowAnalysis
}

func (VideoRequest) TaskKind() scheduler.TaskType { return scheduler.TypeCreateVideo }

// AccessibilityRequest is the payload of an enhance-accessibility task.
type AccessibilityRequest struct {
	Module   LearningModule
	Language string
}

func (AccessibilityRequest) TaskKind() scheduler.TaskType {
	return scheduler.TypeEnhanceAccessibility
}

// QualityRequest is the payload of a quality-check task.
type QualityRequest struct {
	Module LearningModule
}

func (QualityRequest) TaskKind() scheduler.TaskType { return scheduler.TypeQualityCheck }
