package runtime

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/statforge/internal/prompts"
	"github.com/aretw0/statforge/internal/telemetry"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/schema"
)

// Effect asks the backend which magical effect scene produces under system.
// A nil record with a nil error means the scene has no magical effect.
func (e *Engine) Effect(ctx context.Context, scene, system string) (*domain.Record, error) {
	if system == "" {
		system = domain.DefaultSystem
	}

	ctx, span := e.tracer.Start(ctx, "statforge.effect",
		trace.WithAttributes(attribute.String("statforge.system", system)),
	)
	defer span.End()

	prompt, err := e.prompts.Effect(scene, system)
	if err != nil {
		telemetry.SetError(span, err)
		return nil, err
	}

	rec, err := e.gen.GenerateRecord(ctx, prompt, schema.Effect)
	if err != nil {
		err = stageError(domain.StageEffect, err)
		telemetry.SetError(span, err)
		return nil, err
	}

	if IsNoEffect(rec) {
		span.SetAttributes(attribute.Bool("statforge.effect", false))
		e.logger.Debug("scene has no magical effect")
		return nil, nil
	}
	span.SetAttributes(attribute.Bool("statforge.effect", true))
	return &rec, nil
}

// IsNoEffect reports whether rec is the answer for a scene without magic.
func IsNoEffect(rec domain.Record) bool {
	desc, _ := rec.String("effect_description")
	return strings.Contains(strings.ToLower(desc), prompts.NoEffect)
}
