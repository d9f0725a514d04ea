package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract verifies that a StateStore implementation honors the interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewWorkflowState(sessionID, "A metal scimitar that is engulfed by flame.", "", 2)
		state.EntityType = domain.MagicItem
		state.Stage = domain.StageCritique
		state.History = []domain.Stage{domain.StageClassify, domain.StageRetrieve, domain.StageGenerate}
		state.RevisionNumber = 1
		draft := domain.Record{Type: domain.MagicItem, Fields: map[string]any{
			"name":   "Flametongue",
			"range":  5,
			"damage": nil,
			"tags":   []string{"fire", "blade"},
		}}
		state.CurrentDraft = &draft
		state.Critique = &domain.Critique{Text: "Add charges.", DraftRevision: 1}

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Stage, loaded.Stage)
		assert.Equal(t, state.EntityType, loaded.EntityType)
		assert.Equal(t, state.RevisionNumber, loaded.RevisionNumber)
		assert.Equal(t, state.MaxRevisions, loaded.MaxRevisions)
		assert.Equal(t, state.History, loaded.History)
		assert.Equal(t, state.Critique, loaded.Critique)
		require.NotNil(t, loaded.CurrentDraft)
		assert.Equal(t, draft.Fields, loaded.CurrentDraft.Fields, "field values must keep their Go types")
		assert.True(t, state.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		state := domain.NewWorkflowState(sessionID, "desc", "", 0)
		require.NoError(t, store.Save(ctx, sessionID, state))

		state.Stage = domain.StageDone
		require.NoError(t, store.Save(ctx, sessionID, state))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageDone, loaded.Stage)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewWorkflowState(sessionID, "desc", "", 0))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewWorkflowState(id1, "one", "", 0))
		_ = store.Save(ctx, id2, domain.NewWorkflowState(id2, "two", "", 0))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunCorpusContract verifies that a Corpus implementation honors the interface contract.
// The corpus must be empty when passed in.
func RunCorpusContract(t *testing.T, corpus Corpus) {
	ctx := context.Background()

	t.Run("Empty Type", func(t *testing.T) {
		docs, err := corpus.Documents(ctx, domain.Creature)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("Append and Documents", func(t *testing.T) {
		first := domain.Record{Type: domain.Spell, Fields: map[string]any{"name": "Fire Bolt", "spell_level": 0}}
		second := domain.Record{Type: domain.Spell, Fields: map[string]any{"name": "Shield", "spell_level": 1}}
		require.NoError(t, corpus.Append(ctx, first))
		require.NoError(t, corpus.Append(ctx, second))

		docs, err := corpus.Documents(ctx, domain.Spell)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Contains(t, docs[0], "name: Fire Bolt")
		assert.Contains(t, docs[0], "spell_level: 0")
		assert.Contains(t, docs[1], "name: Shield")
	})

	t.Run("Types Are Isolated", func(t *testing.T) {
		require.NoError(t, corpus.Append(ctx, domain.Record{Type: domain.Other, Fields: map[string]any{"name": "Lantern"}}))

		docs, err := corpus.Documents(ctx, domain.Other)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.NotContains(t, docs[0], "Fire Bolt")
	})

	t.Run("Untyped Record", func(t *testing.T) {
		err := corpus.Append(ctx, domain.Record{Fields: map[string]any{"name": "x"}})
		assert.Error(t, err)
	})
}
