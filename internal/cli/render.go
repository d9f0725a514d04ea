package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/statforge/internal/presentation/statblock"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/schema"
)

// ErrNoDraft is returned when a session has not produced a stat block yet.
var ErrNoDraft = errors.New("session has no draft yet")

// RenderState writes the current draft of state to w.
func RenderState(w io.Writer, state *domain.WorkflowState, reg *schema.Registry, format statblock.Format) error {
	if state.CurrentDraft == nil {
		return ErrNoDraft
	}
	sch, err := reg.SchemaFor(state.CurrentDraft.Type)
	if err != nil {
		return err
	}
	return statblock.Write(w, format, *state.CurrentDraft, sch)
}

// Summary describes where a session stands in one line.
func Summary(state *domain.WorkflowState) string {
	if state.Done() {
		return fmt.Sprintf("session %s: %s finished after %d draft(s)", state.SessionID, state.EntityType, state.RevisionNumber)
	}
	return fmt.Sprintf("session %s: stopped before %s at draft %d of %d", state.SessionID, state.Stage, state.RevisionNumber, state.MaxRevisions+1)
}
