package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/statforge/pkg/domain"
)

// LoggingHooks logs every lifecycle event at a level matching its severity.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "stage_enter",
				"session_id", e.SessionID,
				"stage", e.Stage,
				"revision", e.RevisionNumber,
			)
		},
		OnStageLeave: func(ctx context.Context, e *domain.StageEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "stage_failed",
					"session_id", e.SessionID,
					"stage", e.Stage,
					"duration", e.Duration,
					"error", e.Err,
				)
				return
			}
			logger.InfoContext(ctx, "stage_leave",
				"session_id", e.SessionID,
				"stage", e.Stage,
				"entity_type", e.EntityType,
				"revision", e.RevisionNumber,
				"duration", e.Duration,
			)
		},
		OnParseWarning: func(ctx context.Context, e *domain.ParseWarningEvent) {
			logger.WarnContext(ctx, "parse_warning",
				"session_id", e.SessionID,
				"entity_type", e.EntityType,
				"chunk", e.Warning.Chunk,
				"missing", e.Warning.Missing,
			)
		},
		OnSessionDone: func(ctx context.Context, s *domain.WorkflowState) {
			logger.InfoContext(ctx, "session_done",
				"session_id", s.SessionID,
				"entity_type", s.EntityType,
				"revisions", s.RevisionNumber,
			)
		},
	}
}

// Chain fans every event out to all hooks in order. Nil callbacks are skipped.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			for _, h := range hooks {
				if h.OnStageEnter != nil {
					h.OnStageEnter(ctx, e)
				}
			}
		},
		OnStageLeave: func(ctx context.Context, e *domain.StageEvent) {
			for _, h := range hooks {
				if h.OnStageLeave != nil {
					h.OnStageLeave(ctx, e)
				}
			}
		},
		OnParseWarning: func(ctx context.Context, e *domain.ParseWarningEvent) {
			for _, h := range hooks {
				if h.OnParseWarning != nil {
					h.OnParseWarning(ctx, e)
				}
			}
		},
		OnSessionDone: func(ctx context.Context, s *domain.WorkflowState) {
			for _, h := range hooks {
				if h.OnSessionDone != nil {
					h.OnSessionDone(ctx, s)
				}
			}
		},
	}
}
