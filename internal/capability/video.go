package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/edu"
)

// VideoSynthesizer implements the video-generation capability.
type VideoSynthesizer struct{}

// NewVideoSynthesizer creates a VideoSynthesizer.
func NewVideoSynthesizer() *VideoSynthesizer { return &VideoSynthesizer{} }

// Execute produces a video asset narrating the module's step sections.
func (v *VideoSynthesizer) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	payload, ok := req.Payload.(edu.VideoRequest)
	if !ok {
		return agent.Result{}, fmt.Errorf("video synthesizer: unexpected payload %T", req.Payload)
	}

	var narration []string
	steps := 0
	for _, section := range payload.Module.Sections {
		if section.Kind != edu.SectionStep {
			continue
		}
		steps++
		narration = append(narration, section.Body)
	}
	if steps == 0 {
		return agent.Result{}, fmt.Errorf("video synthesizer: module %q has no step sections to narrate", payload.Module.Title)
	}

	asset := edu.VideoAsset{
		Title:           fmt.Sprintf("Video walkthrough: %s", payload.Module.Title),
		Ref:             fmt.Sprintf("video://%s", slugify(payload.Module.Title)),
		DurationSeconds: 30 + 45*steps,
		Transcript:      strings.Join(narration, " "),
	}

	return agent.Result{Output: asset, Cost: 2.0 + 0.5*float64(steps)}, nil
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
