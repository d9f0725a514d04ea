package statforge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/internal/runtime"
	"github.com/aretw0/statforge/pkg/adapters/memory"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/ports"
	"github.com/aretw0/statforge/pkg/schema"
	"github.com/aretw0/statforge/pkg/session"
)

// DefaultDescription is the sample description used when none is given.
const DefaultDescription = "A metal scimitar that is engulfed by flame."

var (
	// ErrEmptyDescription is returned when a conversion has nothing to convert.
	ErrEmptyDescription = errors.New("description is empty")
	// ErrInvalidMaxRevisions is returned for a negative revision limit.
	ErrInvalidMaxRevisions = errors.New("max revisions must not be negative")
	// ErrSessionConflict is returned when a session ID is reused for a different description.
	ErrSessionConflict = errors.New("session already exists with a different description")
)

// Request describes one conversion.
type Request struct {
	// SessionID identifies the checkpoint. A random ID is generated when empty.
	SessionID   string
	Description string
	// System is the target game system, "D&D 5e" when empty.
	System string
	// EntityType skips classification when set.
	EntityType   domain.EntityType
	MaxRevisions int
}

// Converter runs conversion sessions with checkpointing and corpus archiving.
type Converter struct {
	gen       ports.GenerationGateway
	store     ports.StateStore
	locker    ports.DistributedLocker
	corpus    ports.Corpus
	indexer   ports.CorpusIndexer
	retriever ports.RetrievalGateway
	registry  *schema.Registry
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	tracer    trace.Tracer
	topK      int
	lockTTL   time.Duration

	engine   *runtime.Engine
	sessions *session.Manager
}

// Option configures the Converter.
type Option func(*Converter)

// WithStore sets the checkpoint store. Defaults to an in-memory store.
func WithStore(s ports.StateStore) Option {
	return func(c *Converter) {
		c.store = s
	}
}

// WithLocker adds a distributed lock around every session operation.
func WithLocker(l ports.DistributedLocker) Option {
	return func(c *Converter) {
		c.locker = l
	}
}

// WithLockTTL sets the expiry of distributed session locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(c *Converter) {
		c.lockTTL = ttl
	}
}

// WithCorpus sets where finished drafts are archived.
func WithCorpus(corpus ports.Corpus) Option {
	return func(c *Converter) {
		c.corpus = corpus
	}
}

// WithRetriever enables example retrieval.
func WithRetriever(r ports.RetrievalGateway) Option {
	return func(c *Converter) {
		c.retriever = r
	}
}

// WithIndexer makes archived drafts searchable as soon as they are appended.
func WithIndexer(i ports.CorpusIndexer) Option {
	return func(c *Converter) {
		c.indexer = i
	}
}

// WithRegistry replaces the default schema registry.
func WithRegistry(r *schema.Registry) Option {
	return func(c *Converter) {
		c.registry = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Converter) {
		c.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Converter) {
		c.tracer = t
	}
}

// WithTopK sets how many examples are retrieved per session.
func WithTopK(k int) Option {
	return func(c *Converter) {
		c.topK = k
	}
}

// New creates a Converter generating through gen.
func New(gen ports.GenerationGateway, opts ...Option) *Converter {
	c := &Converter{
		gen:      gen,
		registry: schema.Default,
		logger:   logging.NewNop(),
		topK:     runtime.DefaultTopK,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = memory.NewStore()
	}

	engineOpts := []runtime.EngineOption{
		runtime.WithRegistry(c.registry),
		runtime.WithLifecycleHooks(c.hooks),
		runtime.WithLogger(c.logger),
		runtime.WithTopK(c.topK),
	}
	if c.retriever != nil {
		engineOpts = append(engineOpts, runtime.WithRetriever(c.retriever))
	}
	if c.tracer != nil {
		engineOpts = append(engineOpts, runtime.WithTracer(c.tracer))
	}
	c.engine = runtime.NewEngine(gen, engineOpts...)

	sessionOpts := []session.Option{session.WithLogger(c.logger)}
	if c.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(c.locker))
	}
	if c.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(c.lockTTL))
	}
	c.sessions = session.NewManager(c.store, sessionOpts...)
	return c
}

// Convert runs a session to completion. Reusing the SessionID of an
// unfinished session with the same description resumes it.
func (c *Converter) Convert(ctx context.Context, req Request) (*domain.WorkflowState, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, ErrEmptyDescription
	}
	if req.MaxRevisions < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidMaxRevisions, req.MaxRevisions)
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	initial := domain.NewWorkflowState(id, req.Description, req.System, req.MaxRevisions)
	if req.EntityType != "" {
		t, err := domain.ParseEntityType(string(req.EntityType))
		if err != nil {
			return nil, err
		}
		initial.EntityType = t
	}

	state, created, err := c.sessions.LoadOrCreate(ctx, initial)
	if err != nil {
		return nil, err
	}
	if !created && state.Description != initial.Description {
		return nil, fmt.Errorf("%w: %s", ErrSessionConflict, id)
	}
	return c.Resume(ctx, id)
}

// Resume continues a checkpointed session. Finished sessions are returned as stored,
// after archiving them if that step was interrupted.
func (c *Converter) Resume(ctx context.Context, sessionID string) (*domain.WorkflowState, error) {
	var out *domain.WorkflowState
	err := c.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := c.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		out, err = c.run(ctx, state)
		return err
	})
	return out, err
}

// run executes the remaining stages and archives the result. Must hold the session lock.
func (c *Converter) run(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error) {
	store := c.sessions.Store()
	wasDone := state.Done()

	final, err := c.engine.Run(ctx, state, func(ctx context.Context, s *domain.WorkflowState) error {
		return store.Save(ctx, s.SessionID, s)
	})
	if err != nil {
		return final, err
	}

	final, err = c.archive(ctx, final)
	if err != nil {
		return final, err
	}

	if !wasDone && c.hooks.OnSessionDone != nil {
		c.hooks.OnSessionDone(ctx, final)
	}
	return final, nil
}

// archive appends the final draft to the corpus once per session.
func (c *Converter) archive(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error) {
	if c.corpus == nil || state.Archived || state.CurrentDraft == nil {
		return state, nil
	}

	draft := *state.CurrentDraft
	if err := c.corpus.Append(ctx, draft); err != nil {
		return state, fmt.Errorf("failed to archive draft: %w", err)
	}

	archived := state.Clone()
	archived.Archived = true
	if err := c.sessions.Store().Save(ctx, archived.SessionID, archived); err != nil {
		return state, fmt.Errorf("failed to checkpoint archived session: %w", err)
	}

	// A miss here is caught up from the corpus by the next index Sync.
	if c.indexer != nil {
		if sch, err := c.registry.SchemaFor(draft.Type); err == nil {
			if err := c.indexer.Index(ctx, draft.Type, parser.Format(draft, sch)); err != nil {
				c.logger.Warn("Failed to index archived draft",
					"session_id", archived.SessionID,
					"err", err,
				)
			}
		}
	}
	return archived, nil
}

// Inspect returns the stored checkpoint of a session.
func (c *Converter) Inspect(ctx context.Context, sessionID string) (*domain.WorkflowState, error) {
	return c.sessions.Load(ctx, sessionID)
}

// Sessions lists the stored session IDs.
func (c *Converter) Sessions(ctx context.Context) ([]string, error) {
	return c.sessions.List(ctx)
}

// Delete removes a stored session.
func (c *Converter) Delete(ctx context.Context, sessionID string) error {
	return c.sessions.Delete(ctx, sessionID)
}

// Registry returns the schema registry in use.
func (c *Converter) Registry() *schema.Registry {
	return c.registry
}

// Corpus returns the configured corpus, or nil.
func (c *Converter) Corpus() ports.Corpus {
	return c.corpus
}
