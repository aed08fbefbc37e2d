package capability

import (
	"context"
	"fmt"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
)

// RequestRouter implements the routing capability. Its output only annotates
// the content phase; the pipeline tolerates its absence.
type RequestRouter struct{}

// NewRequestRouter creates a RequestRouter.
func NewRequestRouter() *RequestRouter { return &RequestRouter{} }

// Execute picks a presentation style and pacing hints from the request shape.
func (r *RequestRouter) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	payload, ok := req.Payload.(edu.RouteQuery)
	if !ok {
		return agent.Result{}, fmt.Errorf("request router: unexpected payload %T", req.Payload)
	}

	decision := edu.RoutingDecision{
		PreferredStyle: payload.Options.Style,
		Annotations:    map[string]string{},
	}

	if decision.PreferredStyle == "" {
		if len(payload.Workflow.Steps) > 6 {
			decision.PreferredStyle = "walkthrough"
		} else {
			decision.PreferredStyle = "tutorial"
		}
	}

	switch payload.Options.Complexity {
	case "beginner":
		decision.Annotations["recommended_pace"] = "slow, with checkpoints after every step"
	case "advanced":
		decision.Annotations["recommended_pace"] = "brisk, details on demand"
	default:
		decision.Annotations["recommended_pace"] = "steady"
	}
	if payload.Options.IncludeVideo {
		decision.Annotations["media"] = "video planned"
	}

	return agent.Result{Output: decision, Cost: 0.05}, nil
}
