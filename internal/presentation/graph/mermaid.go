// Package graph renders the workflow stage machine as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/statforge/pkg/domain"
)

// Overlay marks the progress of one session on the graph.
type Overlay struct {
	Visited []domain.Stage
	Current domain.Stage
	// Revisions annotates the loop edge with "n/max" when MaxRevisions is set.
	Revisions    int
	MaxRevisions int
}

// OverlayFor builds the overlay of a checkpointed session.
func OverlayFor(s *domain.WorkflowState) *Overlay {
	return &Overlay{
		Visited:      s.History,
		Current:      s.Stage,
		Revisions:    s.RevisionNumber,
		MaxRevisions: s.MaxRevisions,
	}
}

type edge struct {
	from, to domain.Stage
	label    string
}

var edges = []edge{
	{from: domain.StageClassify, to: domain.StageRetrieve},
	{from: domain.StageRetrieve, to: domain.StageGenerate},
	{from: domain.StageGenerate, to: domain.StageDone, label: "revision > max"},
	{from: domain.StageGenerate, to: domain.StageCritique, label: "revision <= max"},
	{from: domain.StageCritique, to: domain.StageRevise},
	{from: domain.StageRevise, to: domain.StageDone, label: "revision > max"},
	{from: domain.StageRevise, to: domain.StageCritique, label: "revision <= max"},
}

// GenerateMermaid returns the flowchart of the stage machine.
// Shapes: classify ((circle)), generation stages [[subroutine]], done (((double circle))).
func GenerateMermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, stage := range domain.Stages() {
		opener, closer := "[", "]"
		switch {
		case stage == domain.StageClassify:
			opener, closer = "((", "))"
		case stage == domain.StageDone:
			opener, closer = "(((", ")))"
		case stage.IsGeneration():
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", stage, opener, stage, closer)
	}

	for _, e := range edges {
		label := e.label
		if label != "" && overlay != nil && overlay.MaxRevisions >= 0 && e.to == domain.StageCritique {
			label = fmt.Sprintf("%s (%d/%d)", label, overlay.Revisions, overlay.MaxRevisions)
		}
		if label == "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", e.from, e.to)
			continue
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", e.from, label, e.to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.Stage]bool)
		for _, stage := range overlay.Visited {
			if stage == "" || seen[stage] {
				continue
			}
			seen[stage] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", stage)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
	}
	return sb.String()
}
