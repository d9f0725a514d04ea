package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/internal/prompts"
	"github.com/aretw0/statforge/internal/telemetry"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/ports"
	"github.com/aretw0/statforge/pkg/schema"
)

// DefaultTopK is the number of examples requested from the retrieval gateway.
const DefaultTopK = 2

// ErrInvalidState is returned when a checkpoint cannot run its pending stage.
var ErrInvalidState = errors.New("invalid workflow state")

// Checkpoint persists the state reached after a completed stage.
type Checkpoint func(ctx context.Context, state *domain.WorkflowState) error

// Engine executes workflow stages against the generation and retrieval gateways.
// It holds no session data and is safe for concurrent use across sessions.
type Engine struct {
	gen       ports.GenerationGateway
	retriever ports.RetrievalGateway
	registry  *schema.Registry
	parser    *parser.Parser
	prompts   *prompts.Builder
	revisions RevisionController
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	tracer    trace.Tracer
	topK      int
	now       func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithRetriever enables the retrieve stage. Without it sessions run with no examples.
func WithRetriever(r ports.RetrievalGateway) EngineOption {
	return func(e *Engine) {
		e.retriever = r
	}
}

// WithRegistry replaces the default schema registry.
func WithRegistry(r *schema.Registry) EngineOption {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithParser sets the parser used on retrieved documents.
func WithParser(p *parser.Parser) EngineOption {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithPrompts replaces the prompt templates.
func WithPrompts(b *prompts.Builder) EngineOption {
	return func(e *Engine) {
		e.prompts = b
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithTopK sets how many examples the retrieve stage asks for.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		e.topK = k
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine that generates through gen.
func NewEngine(gen ports.GenerationGateway, opts ...EngineOption) *Engine {
	e := &Engine{
		gen:      gen,
		registry: schema.Default,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer("github.com/aretw0/statforge"),
		topK:     DefaultTopK,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parser == nil {
		e.parser = parser.New(parser.WithLogger(e.logger))
	}
	if e.prompts == nil {
		e.prompts = prompts.MustNew()
	}
	return e
}

// Run steps the session until it is done, calling checkpoint after every completed stage.
// On failure it returns the last completed state together with the error.
func (e *Engine) Run(ctx context.Context, state *domain.WorkflowState, checkpoint Checkpoint) (*domain.WorkflowState, error) {
	current := state
	for !current.Done() {
		if err := ctx.Err(); err != nil {
			return current, err
		}

		next, err := e.Step(ctx, current)
		if err != nil {
			return current, err
		}
		if checkpoint != nil {
			if err := checkpoint(ctx, next); err != nil {
				return current, fmt.Errorf("failed to checkpoint %s: %w", current.Stage, err)
			}
		}
		current = next
	}
	return current, nil
}

// Step executes the pending stage of state and returns the resulting state.
// The input is never modified. A done state is returned as is.
func (e *Engine) Step(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error) {
	if state.Done() {
		return state, nil
	}

	stage := state.Stage
	ctx, span := e.tracer.Start(ctx, "statforge.stage."+string(stage),
		trace.WithAttributes(
			attribute.String("statforge.session_id", state.SessionID),
			attribute.String("statforge.stage", string(stage)),
			attribute.Int("statforge.revision", state.RevisionNumber),
		),
	)
	defer span.End()

	e.emitEnter(ctx, state)
	start := e.now()

	next := state.Clone()
	err := e.execute(ctx, next)

	if err != nil {
		telemetry.SetError(span, err)
		e.emitLeave(ctx, state, e.now().Sub(start), err)
		return nil, err
	}

	next.History = append(next.History, stage)
	next.UpdatedAt = e.now()
	span.SetAttributes(attribute.String("statforge.next_stage", string(next.Stage)))
	e.emitLeave(ctx, next, e.now().Sub(start), nil)
	e.logger.Debug("stage completed",
		"session_id", next.SessionID,
		"stage", stage,
		"next", next.Stage,
		"revision", next.RevisionNumber,
	)
	return next, nil
}

func (e *Engine) execute(ctx context.Context, s *domain.WorkflowState) error {
	switch s.Stage {
	case domain.StageClassify:
		return e.classify(ctx, s)
	case domain.StageRetrieve:
		return e.retrieve(ctx, s)
	case domain.StageGenerate:
		return e.generate(ctx, s)
	case domain.StageCritique:
		return e.critique(ctx, s)
	case domain.StageRevise:
		return e.revise(ctx, s)
	default:
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidState, s.Stage)
	}
}

func (e *Engine) classify(ctx context.Context, s *domain.WorkflowState) error {
	// A caller supplied type skips the backend.
	if s.EntityType == "" {
		prompt, err := e.prompts.Classify(s)
		if err != nil {
			return err
		}
		rec, err := e.gen.GenerateRecord(ctx, prompt, schema.Classification())
		if errors.Is(err, domain.ErrNonConforming) {
			return &domain.ClassificationError{Err: err}
		}
		if err != nil {
			return stageError(domain.StageClassify, err)
		}
		value, _ := rec.String("type")
		t, err := domain.ParseEntityType(value)
		if err != nil {
			return &domain.ClassificationError{Value: value, Err: err}
		}
		s.EntityType = t
	}

	if _, err := e.registry.SchemaFor(s.EntityType); err != nil {
		return &domain.ClassificationError{Value: string(s.EntityType), Err: err}
	}
	s.Stage = domain.StageRetrieve
	return nil
}

func (e *Engine) retrieve(ctx context.Context, s *domain.WorkflowState) error {
	s.SimilarExamples = nil
	s.Stage = domain.StageGenerate
	if e.retriever == nil || e.topK <= 0 {
		return nil
	}

	sch, err := e.registry.SchemaFor(s.EntityType)
	if err != nil {
		return err
	}

	docs, err := e.retriever.Search(ctx, s.EntityType, s.Description, e.topK)
	if errors.Is(err, domain.ErrRetrievalUnavailable) {
		e.logger.Debug("no corpus for type", "session_id", s.SessionID, "entity_type", s.EntityType)
		return nil
	}
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	records, warnings := e.parser.Parse(parser.Join(docs), sch, s.EntityType)
	for _, w := range warnings {
		e.emitParseWarning(ctx, s, w)
	}
	if len(records) > 0 {
		s.SimilarExamples = records
	}
	return nil
}

func (e *Engine) generate(ctx context.Context, s *domain.WorkflowState) error {
	sch, err := e.registry.SchemaFor(s.EntityType)
	if err != nil {
		return err
	}

	examples := make([]string, 0, len(s.SimilarExamples))
	for _, r := range s.SimilarExamples {
		examples = append(examples, parser.Format(r, sch))
	}
	prompt, err := e.prompts.Generate(s, examples)
	if err != nil {
		return err
	}
	return e.draft(ctx, s, domain.StageGenerate, prompt, sch)
}

func (e *Engine) critique(ctx context.Context, s *domain.WorkflowState) error {
	if s.CurrentDraft == nil {
		return fmt.Errorf("%w: critique without a draft", ErrInvalidState)
	}
	sch, err := e.registry.SchemaFor(s.EntityType)
	if err != nil {
		return err
	}

	prompt, err := e.prompts.Critique(s, parser.Format(*s.CurrentDraft, sch))
	if err != nil {
		return err
	}
	text, err := e.gen.GenerateText(ctx, prompt)
	if err != nil {
		return stageError(domain.StageCritique, err)
	}

	s.Critique = &domain.Critique{Text: text, DraftRevision: s.RevisionNumber}
	s.Stage = domain.StageRevise
	return nil
}

func (e *Engine) revise(ctx context.Context, s *domain.WorkflowState) error {
	if s.CurrentDraft == nil || s.Critique == nil {
		return fmt.Errorf("%w: revision without draft and critique", ErrInvalidState)
	}
	if s.Critique.DraftRevision != s.RevisionNumber {
		return fmt.Errorf("%w: critique refers to draft %d, current draft is %d",
			ErrInvalidState, s.Critique.DraftRevision, s.RevisionNumber)
	}
	sch, err := e.registry.SchemaFor(s.EntityType)
	if err != nil {
		return err
	}

	prompt, err := e.prompts.Revise(s, parser.Format(*s.CurrentDraft, sch), s.Critique.Text)
	if err != nil {
		return err
	}
	return e.draft(ctx, s, domain.StageRevise, prompt, sch)
}

// draft runs a schema-bound generation and applies the revision rule.
func (e *Engine) draft(ctx context.Context, s *domain.WorkflowState, stage domain.Stage, prompt domain.Prompt, sch schema.RecordSchema) error {
	rec, err := e.gen.GenerateRecord(ctx, prompt, sch)
	if err != nil {
		return stageError(stage, err)
	}
	rec.Type = s.EntityType
	if err := schema.Validate(sch, rec); err != nil {
		return stageError(stage, err)
	}

	s.CurrentDraft = &rec
	s.RevisionNumber++
	s.Stage = e.revisions.Next(s)
	return nil
}

// stageError tags err as a GenerationError of stage.
func stageError(stage domain.Stage, err error) error {
	var ge *domain.GenerationError
	if errors.As(err, &ge) {
		if ge.Stage != "" {
			return err
		}
		return &domain.GenerationError{Stage: stage, Err: ge.Err}
	}
	return &domain.GenerationError{Stage: stage, Err: err}
}

func (e *Engine) emitEnter(ctx context.Context, s *domain.WorkflowState) {
	if e.hooks.OnStageEnter == nil {
		return
	}
	e.hooks.OnStageEnter(ctx, &domain.StageEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      domain.EventStageEnter,
			SessionID: s.SessionID,
		},
		Stage:          s.Stage,
		EntityType:     s.EntityType,
		RevisionNumber: s.RevisionNumber,
	})
}

// emitLeave reports the stage that ran. On success s is the new state, whose
// last history entry is that stage.
func (e *Engine) emitLeave(ctx context.Context, s *domain.WorkflowState, d time.Duration, err error) {
	if e.hooks.OnStageLeave == nil {
		return
	}
	stage := s.Stage
	if err == nil && len(s.History) > 0 {
		stage = s.History[len(s.History)-1]
	}
	e.hooks.OnStageLeave(ctx, &domain.StageEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      domain.EventStageLeave,
			SessionID: s.SessionID,
		},
		Stage:          stage,
		EntityType:     s.EntityType,
		RevisionNumber: s.RevisionNumber,
		Duration:       d,
		Err:            err,
	})
}

func (e *Engine) emitParseWarning(ctx context.Context, s *domain.WorkflowState, w domain.ParseWarning) {
	if e.hooks.OnParseWarning == nil {
		return
	}
	e.hooks.OnParseWarning(ctx, &domain.ParseWarningEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      domain.EventParseWarning,
			SessionID: s.SessionID,
		},
		EntityType: s.EntityType,
		Warning:    w,
	})
}
