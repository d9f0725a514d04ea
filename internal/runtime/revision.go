package runtime

import "github.com/aretw0/statforge/pkg/domain"

// RevisionController bounds the critique/revise loop.
//
// RevisionNumber starts at 0 and counts completed generation stages, so a
// session with MaxRevisions M runs M+1 generations and M critiques.
type RevisionController struct{}

// Exhausted reports whether no further revision may run after a draft numbered rev.
func (RevisionController) Exhausted(rev, max int) bool {
	return rev > max
}

// Next returns the stage that follows a completed generation.
func (c RevisionController) Next(s *domain.WorkflowState) domain.Stage {
	if c.Exhausted(s.RevisionNumber, s.MaxRevisions) {
		return domain.StageDone
	}
	return domain.StageCritique
}
