package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/internal/config"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/generation"
)

func mockConfig() config.Config {
	cfg := config.Default()
	cfg.Backend.Provider = "mock"
	cfg.Store.Type = "memory"
	cfg.Corpus.Type = "memory"
	return cfg
}

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	app, err := Build(ctx, Options{Config: mockConfig(), Registerer: reg})
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close(ctx)) }()

	state, err := app.Converter.Convert(ctx, statforge.Request{Description: statforge.DefaultDescription, MaxRevisions: 1})
	require.NoError(t, err)
	assert.True(t, state.Archived)

	n, err := app.Index.Count(ctx, state.EntityType)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := testutil.GatherAndCount(reg, "statforge_stage_runs_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestBuild_FileStoreAndCSVCorpus(t *testing.T) {
	ctx := context.Background()
	cfg := mockConfig()
	cfg.Store.Type = "file"
	cfg.Store.Path = t.TempDir()
	cfg.Corpus.Type = "csv"
	cfg.Corpus.Dir = t.TempDir()

	app, err := Build(ctx, Options{Config: cfg})
	require.NoError(t, err)
	state, err := app.Converter.Convert(ctx, statforge.Request{SessionID: "s1", Description: "A cursed ring"})
	require.NoError(t, err)
	require.NoError(t, app.Close(ctx))

	// A second app sees the checkpoint and indexes the csv corpus on startup.
	again, err := Build(ctx, Options{Config: cfg})
	require.NoError(t, err)
	defer func() { _ = again.Close(ctx) }()

	stored, err := again.Converter.Inspect(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.RevisionNumber, stored.RevisionNumber)

	n, err := again.Index.Count(ctx, state.EntityType)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestBuild_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := mockConfig()
	cfg.Store.Type = "redis"
	cfg.Store.LockTTLSeconds = 60
	cfg.Corpus.Type = "redis"
	cfg.Redis.Addr = mr.Addr()

	app, err := Build(ctx, Options{Config: cfg})
	require.NoError(t, err)
	defer func() { _ = app.Close(ctx) }()

	state, err := app.Converter.Convert(ctx, statforge.Request{SessionID: "s1", Description: "A cursed ring"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("statforge:session:s1"))
	assert.True(t, mr.Exists("statforge:corpus:"+state.EntityType.Slug()))
}

func TestBuild_RedisUnreachable(t *testing.T) {
	cfg := mockConfig()
	cfg.Store.Type = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := Build(context.Background(), Options{Config: cfg})
	assert.ErrorContains(t, err, "failed to reach redis")
}

func TestBuild_BackendOverrideAndHooks(t *testing.T) {
	ctx := context.Background()
	backend := &generation.MockBackend{}
	var done int

	cfg := mockConfig()
	cfg.Backend.Provider = "openai"
	cfg.Retrieval.Enabled = false

	app, err := Build(ctx, Options{
		Config:  cfg,
		Backend: backend,
		Hooks: []domain.LifecycleHooks{{
			OnSessionDone: func(context.Context, *domain.WorkflowState) { done++ },
		}},
	})
	require.NoError(t, err)
	defer func() { _ = app.Close(ctx) }()
	assert.Nil(t, app.Index)

	_, err = app.Converter.Convert(ctx, statforge.Request{Description: "A cursed ring"})
	require.NoError(t, err)
	assert.NotEmpty(t, backend.Requests())
	assert.Equal(t, 1, done)
}

func TestBuild_UnknownProvider(t *testing.T) {
	cfg := mockConfig()
	cfg.Backend.Provider = "claude"

	_, err := Build(context.Background(), Options{Config: cfg})
	assert.Error(t, err)
}

func TestBuild_EncryptedFileStore(t *testing.T) {
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	cfg := mockConfig()
	cfg.Store.Type = "file"
	cfg.Store.Path = t.TempDir()
	cfg.Store.EncryptionKey = key

	app, err := Build(ctx, Options{Config: cfg})
	require.NoError(t, err)
	defer func() { _ = app.Close(ctx) }()

	_, err = app.Converter.Convert(ctx, statforge.Request{SessionID: "s1", Description: "A cursed ring"})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.Store.Path, "s1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "A cursed ring")
	assert.Contains(t, string(raw), `"sealed"`)

	stored, err := app.Converter.Inspect(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "A cursed ring", stored.Description)
}

func TestBuild_InvalidEncryptionKey(t *testing.T) {
	cfg := mockConfig()
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))

	_, err := Build(context.Background(), Options{Config: cfg})
	assert.ErrorContains(t, err, "invalid store encryption key")
}
