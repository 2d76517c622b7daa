// Package render translates a project snapshot into an ordered sequence of
// codec engine commands that reproduce the timeline as one output artifact.
package render

import "fmt"

type CommandKind string

const (
	// CommandSegment trims one clip out of its source and applies its
	// authored filter chain.
	CommandSegment CommandKind = "segment"
	// CommandGap synthesises black/silent filler between clips.
	CommandGap CommandKind = "gap"
	// CommandTransition blends two materialised segments across a junction.
	CommandTransition CommandKind = "transition"
	// CommandConcat joins a track's materialised pieces in timeline order.
	CommandConcat CommandKind = "concat"
	// CommandOverlay paints an upper-track segment onto the base stream.
	CommandOverlay CommandKind = "overlay"
	// CommandAudioMix sums all audio segments with per-input delay and gain.
	CommandAudioMix CommandKind = "audiomix"
	// CommandMux encodes the final stream(s) into the output container.
	CommandMux CommandKind = "mux"
)

// Command is one engine invocation. Inputs must be materialised by earlier
// commands (or be host asset paths); Outputs name what the command writes
// into the engine's virtual filesystem.
type Command struct {
	Index  int         `json:"index"`
	Kind   CommandKind `json:"kind"`
	ClipID string      `json:"clip_id,omitempty"`
	Args   []string    `json:"args"`
	Inputs []string    `json:"inputs,omitempty"`
	Output string      `json:"output"`

	// SideFiles names auxiliary files the engine writes besides Output,
	// such as two-pass analysis logs. Cleaned up with the intermediates.
	SideFiles []string `json:"side_files,omitempty"`

	// ExpectedDuration is the output duration in seconds, used by the
	// adapter to turn elapsed-output-time into a progress ratio.
	ExpectedDuration float64 `json:"expected_duration"`

	// Weight is this command's share of the job's total work, proportional
	// to the seconds of media it processes. Weights over a plan sum to 1.
	Weight float64 `json:"weight"`
}

// RenderPlan reproduces one project snapshot as a single artifact. Plans are
// deterministic: planning the same snapshot twice yields structurally
// identical plans.
type RenderPlan struct {
	ProjectID  string    `json:"project_id"`
	OutputName string    `json:"output_name"`
	Format     string    `json:"format"`
	Duration   float64   `json:"duration"`
	Commands   []Command `json:"commands"`
}

// Intermediates lists every virtual filesystem name the plan writes,
// including side files and the final output. Used for scoped cleanup.
func (p *RenderPlan) Intermediates() []string {
	seen := make(map[string]bool)
	var names []string
	record := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, cmd := range p.Commands {
		record(cmd.Output)
		for _, side := range cmd.SideFiles {
			record(side)
		}
	}
	return names
}

type PlanErrorKind string

const (
	PlanEmptyTimeline     PlanErrorKind = "empty_timeline"
	PlanMissingAsset      PlanErrorKind = "missing_asset"
	PlanUnsupportedFilter PlanErrorKind = "unsupported_filter_combination"
	PlanInvalidTimeline   PlanErrorKind = "invalid_timeline"
	PlanInvalidSettings   PlanErrorKind = "invalid_settings"
)

// PlanError reports why a project could not be planned, with enough context
// (clip ID) to be actionable.
type PlanError struct {
	Kind   PlanErrorKind
	ClipID string
	Detail string
}

func (e *PlanError) Error() string {
	if e.ClipID != "" {
		return fmt.Sprintf("render plan: %s (clip %s): %s", e.Kind, e.ClipID, e.Detail)
	}
	return fmt.Sprintf("render plan: %s: %s", e.Kind, e.Detail)
}
