package statforge

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/statforge/pkg/domain"
)

// DefaultScene is the sample scene used when none is given.
const DefaultScene = "A group of five adventurers gather by a fire holding elemental gems of type fire, water, ice, earth and air chanting 'rage' over and over again."

// ErrEmptyScene is returned when an effect is requested for an empty scene.
var ErrEmptyScene = errors.New("scene is empty")

// EffectRequest describes a set of circumstances whose magical outcome is wanted.
type EffectRequest struct {
	Scene string
	// System is the target game system, "D&D 5e" when empty.
	System string
}

// Effect is the magical outcome of a scene.
type Effect struct {
	Scene string `json:"scene"`
	// Record is nil when the scene produces no magical effect.
	Record *domain.Record `json:"effect,omitempty"`
}

// Occurred reports whether the scene produced a magical effect.
func (e Effect) Occurred() bool {
	return e.Record != nil
}

// Description renders the effect as a description that Convert can turn into a stat block.
func (e Effect) Description() string {
	if e.Record == nil {
		return ""
	}
	var parts []string
	for _, name := range []string{"name", "effect_description", "damage", "flavour_text"} {
		if v, ok := e.Record.String(name); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, strings.TrimSpace(v))
		}
	}
	return strings.Join(parts, "\n")
}

// CreateEffect decides which magical effect a scene produces. A scene without
// magic is not an error: the returned Effect reports Occurred() == false.
// Effects are not checkpointed; pass Description() to Convert to build a stat block.
func (c *Converter) CreateEffect(ctx context.Context, req EffectRequest) (Effect, error) {
	scene := strings.TrimSpace(req.Scene)
	if scene == "" {
		return Effect{}, ErrEmptyScene
	}

	rec, err := c.engine.Effect(ctx, scene, req.System)
	if err != nil {
		return Effect{Scene: scene}, err
	}
	c.logger.Info("Effect created", "occurred", rec != nil)
	return Effect{Scene: scene, Record: rec}, nil
}
