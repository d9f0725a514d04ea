package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aretw0/statforge/internal/runtime"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/generation"
	"github.com/aretw0/statforge/pkg/schema"
)

const scimitar = "A metal scimitar that is engulfed by flame"

// scriptedGateway delegates to the mock backend unless a failure is scripted.
type scriptedGateway struct {
	*generation.Gateway
	classifyAs string
	textErr    error
	recordErr  error
}

func (g *scriptedGateway) GenerateRecord(ctx context.Context, p domain.Prompt, s schema.RecordSchema) (domain.Record, error) {
	if s.Name == schema.Classification().Name && g.classifyAs != "" {
		rec := s.NewRecord("")
		rec.Fields["type"] = g.classifyAs
		return rec, nil
	}
	if g.recordErr != nil && s.Name != schema.Classification().Name {
		return domain.Record{}, g.recordErr
	}
	return g.Gateway.GenerateRecord(ctx, p, s)
}

func (g *scriptedGateway) GenerateText(ctx context.Context, p domain.Prompt) (string, error) {
	if g.textErr != nil {
		return "", g.textErr
	}
	return g.Gateway.GenerateText(ctx, p)
}

type retrieverFunc func(ctx context.Context, t domain.EntityType, query string, k int) ([]string, error)

func (f retrieverFunc) Search(ctx context.Context, t domain.EntityType, query string, k int) ([]string, error) {
	return f(ctx, t, query, k)
}

// countCalls returns the generation and critique calls received by the backend,
// excluding the classification request.
func countCalls(b *generation.MockBackend) (generations, critiques int) {
	for _, req := range b.Requests() {
		switch {
		case req.SchemaName == schema.Classification().Name:
		case req.Structured():
			generations++
		default:
			critiques++
		}
	}
	return generations, critiques
}

func TestEngine_RevisionBound(t *testing.T) {
	for _, max := range []int{0, 1, 3} {
		backend := &generation.MockBackend{}
		engine := runtime.NewEngine(generation.NewGateway(backend))

		state := domain.NewWorkflowState("s1", scimitar, "", max)
		final, err := engine.Run(context.Background(), state, nil)
		require.NoError(t, err)

		gens, crits := countCalls(backend)
		assert.Equal(t, max+1, gens, "generations for max=%d", max)
		assert.Equal(t, max, crits, "critiques for max=%d", max)
		assert.Equal(t, max+1, final.RevisionNumber)
		assert.True(t, final.Done())
	}
}

func TestEngine_ZeroRevisionsSkipsCritique(t *testing.T) {
	engine := runtime.NewEngine(generation.NewGateway(&generation.MockBackend{}))

	final, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 0), nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.Stage{
		domain.StageClassify,
		domain.StageRetrieve,
		domain.StageGenerate,
	}, final.History)
	assert.Nil(t, final.Critique)
}

func TestEngine_ScimitarScenario(t *testing.T) {
	backend := &generation.MockBackend{}
	engine := runtime.NewEngine(generation.NewGateway(backend))

	final, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 1), nil)
	require.NoError(t, err)

	gens, crits := countCalls(backend)
	assert.Equal(t, 2, gens)
	assert.Equal(t, 1, crits)

	require.NotNil(t, final.CurrentDraft)
	sch, err := schema.SchemaFor(final.EntityType)
	require.NoError(t, err)
	assert.NoError(t, schema.Validate(sch, *final.CurrentDraft))
	assert.False(t, final.CurrentDraft.IsNull("name"))
	assert.False(t, final.CurrentDraft.IsNull("flavour_text"))
	assert.Equal(t, final.EntityType, final.CurrentDraft.Type)

	assert.Equal(t, []domain.Stage{
		domain.StageClassify,
		domain.StageRetrieve,
		domain.StageGenerate,
		domain.StageCritique,
		domain.StageRevise,
	}, final.History)
	require.NotNil(t, final.Critique)
	assert.Equal(t, 1, final.Critique.DraftRevision)
}

func TestEngine_NoCorpus(t *testing.T) {
	var searched int
	retriever := retrieverFunc(func(_ context.Context, _ domain.EntityType, _ string, k int) ([]string, error) {
		searched++
		assert.Equal(t, runtime.DefaultTopK, k)
		return nil, domain.ErrRetrievalUnavailable
	})
	engine := runtime.NewEngine(generation.NewGateway(&generation.MockBackend{}), runtime.WithRetriever(retriever))

	final, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 1), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, searched)
	assert.Empty(t, final.SimilarExamples)
	assert.True(t, final.Done())
}

func TestEngine_RetrievedExamples(t *testing.T) {
	retriever := retrieverFunc(func(context.Context, domain.EntityType, string, int) ([]string, error) {
		return []string{
			"name: Flame Blade\ndamage: 2d6\nrarity: Rare\nflavour_text: It burns.",
			"name: \n",
		}, nil
	})

	var warnings []domain.ParseWarning
	hooks := domain.LifecycleHooks{
		OnParseWarning: func(_ context.Context, e *domain.ParseWarningEvent) {
			warnings = append(warnings, e.Warning)
		},
	}

	backend := &generation.MockBackend{}
	engine := runtime.NewEngine(generation.NewGateway(backend),
		runtime.WithRetriever(retriever),
		runtime.WithLifecycleHooks(hooks),
	)

	final, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 0), nil)
	require.NoError(t, err)

	require.Len(t, final.SimilarExamples, 1)
	name, _ := final.SimilarExamples[0].String("name")
	assert.Equal(t, "Flame Blade", name)

	require.Len(t, warnings, 1)
	assert.Equal(t, 1, warnings[0].Chunk)
	assert.Contains(t, warnings[0].Missing, "name")

	var generatePrompt string
	for _, req := range backend.Requests() {
		if req.SchemaName == schema.Item.Name {
			generatePrompt = req.Prompt.User
		}
	}
	assert.Contains(t, generatePrompt, "name: Flame Blade")
}

func TestEngine_RetrievalFailureAborts(t *testing.T) {
	boom := errors.New("index corrupted")
	retriever := retrieverFunc(func(context.Context, domain.EntityType, string, int) ([]string, error) {
		return nil, boom
	})
	engine := runtime.NewEngine(generation.NewGateway(&generation.MockBackend{}), runtime.WithRetriever(retriever))

	last, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 1), nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.StageRetrieve, last.Stage)
}

func TestEngine_ClassificationError(t *testing.T) {
	gw := &scriptedGateway{
		Gateway:    generation.NewGateway(&generation.MockBackend{}),
		classifyAs: "Weapon",
	}
	engine := runtime.NewEngine(gw)

	state := domain.NewWorkflowState("s1", scimitar, "", 1)
	last, err := engine.Run(context.Background(), state, nil)

	var ce *domain.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Weapon", ce.Value)
	assert.Equal(t, domain.StageClassify, last.Stage)
	assert.Empty(t, last.EntityType)
}

func TestEngine_ClassifyOutageIsGenerationError(t *testing.T) {
	down := generation.BackendFunc(func(context.Context, generation.Request) (string, error) {
		return "", errors.New("connection refused")
	})
	engine := runtime.NewEngine(generation.NewGateway(down))

	last, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 1), nil)

	var ge *domain.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, domain.StageClassify, ge.Stage)
	var ce *domain.ClassificationError
	assert.False(t, errors.As(err, &ce))
	assert.Equal(t, domain.StageClassify, last.Stage)
}

func TestEngine_PresetEntityType(t *testing.T) {
	backend := &generation.MockBackend{}
	engine := runtime.NewEngine(generation.NewGateway(backend))

	state := domain.NewWorkflowState("s1", "A bolt of frost", "", 0)
	state.EntityType = domain.Spell
	final, err := engine.Run(context.Background(), state, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.Spell, final.EntityType)
	for _, req := range backend.Requests() {
		assert.NotEqual(t, schema.Classification().Name, req.SchemaName)
	}
	assert.NoError(t, schema.Validate(schema.SpellBlock, *final.CurrentDraft))
}

func TestEngine_FailedStageKeepsCheckpoint(t *testing.T) {
	backend := &generation.MockBackend{}
	gw := &scriptedGateway{
		Gateway: generation.NewGateway(backend),
		textErr: errors.New("rate limited"),
	}
	engine := runtime.NewEngine(gw)

	var mu sync.Mutex
	var saved *domain.WorkflowState
	checkpoint := func(_ context.Context, s *domain.WorkflowState) error {
		mu.Lock()
		defer mu.Unlock()
		saved = s.Clone()
		return nil
	}

	_, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 1), checkpoint)
	var ge *domain.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, domain.StageCritique, ge.Stage)

	require.NotNil(t, saved)
	assert.Equal(t, domain.StageCritique, saved.Stage)
	assert.Equal(t, 1, saved.RevisionNumber)
	assert.Nil(t, saved.Critique)

	// Resume from the checkpoint once the backend recovers.
	gw.textErr = nil
	final, err := engine.Run(context.Background(), saved, checkpoint)
	require.NoError(t, err)
	assert.Equal(t, 2, final.RevisionNumber)

	gens, crits := countCalls(backend)
	assert.Equal(t, 2, gens)
	assert.Equal(t, 1, crits)
}

func TestEngine_ResumeReplaysGenerationOnce(t *testing.T) {
	gw := &scriptedGateway{
		Gateway:   generation.NewGateway(&generation.MockBackend{}),
		recordErr: &domain.GenerationError{Err: errors.New("schema violation")},
	}
	engine := runtime.NewEngine(gw)

	state := domain.NewWorkflowState("s1", scimitar, "", 2)
	last, err := engine.Run(context.Background(), state, nil)

	var ge *domain.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, domain.StageGenerate, ge.Stage)
	assert.Equal(t, domain.StageGenerate, last.Stage)
	assert.Equal(t, 0, last.RevisionNumber)

	// A crashed generation re-runs from the checkpoint without a double increment.
	gw.recordErr = nil
	next, err := engine.Step(context.Background(), last)
	require.NoError(t, err)
	assert.Equal(t, 1, next.RevisionNumber)
	assert.Equal(t, 0, last.RevisionNumber)
}

func TestEngine_StepDoesNotMutateInput(t *testing.T) {
	engine := runtime.NewEngine(generation.NewGateway(&generation.MockBackend{}))

	state := domain.NewWorkflowState("s1", scimitar, "", 1)
	before := state.Clone()

	next, err := engine.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, before, state)
	assert.Equal(t, domain.StageRetrieve, next.Stage)
	assert.NotEmpty(t, next.EntityType)
}

func TestEngine_ReviseRequiresMatchingCritique(t *testing.T) {
	engine := runtime.NewEngine(generation.NewGateway(&generation.MockBackend{}))

	draft := schema.Item.NewRecord(domain.MagicItem)
	state := domain.NewWorkflowState("s1", scimitar, "", 3)
	state.EntityType = domain.MagicItem
	state.CurrentDraft = &draft
	state.RevisionNumber = 2
	state.Critique = &domain.Critique{Text: "old", DraftRevision: 1}
	state.Stage = domain.StageRevise

	_, err := engine.Step(context.Background(), state)
	assert.ErrorIs(t, err, runtime.ErrInvalidState)
}

func TestEngine_DoneIsNoop(t *testing.T) {
	backend := &generation.MockBackend{}
	engine := runtime.NewEngine(generation.NewGateway(backend))

	state := domain.NewWorkflowState("s1", scimitar, "", 1)
	state.Stage = domain.StageDone

	out, err := engine.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Same(t, state, out)
	assert.Empty(t, backend.Requests())
}

func TestEngine_CancelledContext(t *testing.T) {
	engine := runtime.NewEngine(generation.NewGateway(&generation.MockBackend{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	last, err := engine.Run(ctx, domain.NewWorkflowState("s1", scimitar, "", 1), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StageClassify, last.Stage)
}

func TestEngine_Hooks(t *testing.T) {
	var entered, left []domain.Stage
	var failures int
	hooks := domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) {
			entered = append(entered, e.Stage)
		},
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			left = append(left, e.Stage)
			if e.Err != nil {
				failures++
			}
		},
	}
	engine := runtime.NewEngine(generation.NewGateway(&generation.MockBackend{}), runtime.WithLifecycleHooks(hooks))

	final, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 1), nil)
	require.NoError(t, err)

	assert.Equal(t, final.History, entered)
	assert.Equal(t, final.History, left)
	assert.Zero(t, failures)
}

func TestEngine_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	gw := &scriptedGateway{
		Gateway: generation.NewGateway(&generation.MockBackend{}),
		textErr: errors.New("rate limited"),
	}
	engine := runtime.NewEngine(gw, runtime.WithTracer(tp.Tracer("test")))

	_, err := engine.Run(context.Background(), domain.NewWorkflowState("s1", scimitar, "", 1), nil)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "statforge.stage.classify", spans[0].Name())
	assert.Equal(t, "statforge.stage.critique", spans[3].Name())
	assert.Equal(t, codes.Error, spans[3].Status().Code)
	assert.NotEqual(t, codes.Error, spans[2].Status().Code)
}
