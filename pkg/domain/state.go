package domain

import "time"

// Stage identifies a step of the generation workflow.
type Stage string

const (
	StageClassify Stage = "classify"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate" // initial draft
	StageCritique Stage = "critique"
	StageRevise   Stage = "revise" // revision draft
	StageDone     Stage = "done"   // sink state

	// StageEffect tags failures of the scene to effect step that precedes a session.
	StageEffect Stage = "effect"
)

// Stages returns all workflow stages in their nominal order.
func Stages() []Stage {
	return []Stage{StageClassify, StageRetrieve, StageGenerate, StageCritique, StageRevise, StageDone}
}

// IsGeneration reports whether the stage produces a draft.
func (s Stage) IsGeneration() bool {
	return s == StageGenerate || s == StageRevise
}

// DefaultSystem is the game system used when the caller does not name one.
const DefaultSystem = "D&D 5e"

// Critique is free-form feedback on exactly one draft.
type Critique struct {
	Text string `json:"text"`
	// DraftRevision is the RevisionNumber of the draft this critique refers to.
	DraftRevision int `json:"draft_revision"`
}

// WorkflowState is the session-scoped context mutated by the engine stages.
// It is checkpointed after every completed stage; the checkpoint is authoritative on resume.
type WorkflowState struct {
	SessionID   string `json:"session_id"`
	Description string `json:"description"`
	System      string `json:"system"`

	// EntityType is empty until the classify stage completes.
	EntityType EntityType `json:"entity_type,omitempty"`

	SimilarExamples []Record  `json:"similar_examples,omitempty"`
	CurrentDraft    *Record   `json:"current_draft,omitempty"`
	Critique        *Critique `json:"critique,omitempty"`

	// RevisionNumber starts at 0 and is incremented once per successful generation stage.
	RevisionNumber int `json:"revision_number"`
	MaxRevisions   int `json:"max_revisions"`

	// Stage is the next stage to execute. StageDone marks a finished session.
	Stage Stage `json:"stage"`

	// History lists completed stages in execution order.
	History []Stage `json:"history,omitempty"`

	// Archived is set once the final draft has been appended to the example corpus.
	Archived bool `json:"archived,omitempty"`

	// Sealed carries the encrypted checkpoint when the store encrypts sessions at rest.
	// A sealed state only exposes its progress fields.
	Sealed string `json:"sealed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkflowState creates a fresh session positioned at the classify stage.
func NewWorkflowState(sessionID, description, system string, maxRevisions int) *WorkflowState {
	if system == "" {
		system = DefaultSystem
	}
	now := time.Now().UTC()
	return &WorkflowState{
		SessionID:    sessionID,
		Description:  description,
		System:       system,
		MaxRevisions: maxRevisions,
		Stage:        StageClassify,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Done reports whether the session reached the sink state.
func (s *WorkflowState) Done() bool {
	return s.Stage == StageDone
}

// Clone returns a deep copy so stages and stores never share mutable data.
func (s *WorkflowState) Clone() *WorkflowState {
	out := *s
	if s.SimilarExamples != nil {
		out.SimilarExamples = make([]Record, len(s.SimilarExamples))
		for i, r := range s.SimilarExamples {
			out.SimilarExamples[i] = r.Clone()
		}
	}
	if s.CurrentDraft != nil {
		d := s.CurrentDraft.Clone()
		out.CurrentDraft = &d
	}
	if s.Critique != nil {
		c := *s.Critique
		out.Critique = &c
	}
	out.History = append([]Stage(nil), s.History...)
	return &out
}
