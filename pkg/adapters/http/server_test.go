package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/generation"
	"github.com/aretw0/statforge/pkg/schema"
)

func newTestServer(t *testing.T, opts ...statforge.Option) *httptest.Server {
	t.Helper()
	conv := statforge.New(generation.NewGateway(&generation.MockBackend{}), opts...)
	srv := httptest.NewServer(NewHandler(conv))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestConvertAndInspect(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/convert", `{"session_id":"s1","description":"A metal scimitar that is engulfed by flame","max_revisions":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state domain.WorkflowState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "s1", state.SessionID)
	assert.Equal(t, domain.StageDone, state.Stage)
	assert.Equal(t, 1, state.RevisionNumber)

	resp = get(t, srv.URL+"/sessions/s1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv.URL+"/sessions")
	var ids []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ids))
	assert.Equal(t, []string{"s1"}, ids)

	resp = get(t, srv.URL+"/sessions/s1/statblock?format=html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp = get(t, srv.URL+"/graph?session=s1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConvert_DefaultRevisions(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/convert", `{"description":"A cursed ring"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state domain.WorkflowState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, DefaultMaxRevisions, state.MaxRevisions)
	assert.Equal(t, DefaultMaxRevisions+1, state.RevisionNumber)
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		resp   func() *http.Response
		status int
		kind   string
	}{
		{
			name:   "malformed body",
			resp:   func() *http.Response { return postJSON(t, srv.URL+"/convert", `{`) },
			status: http.StatusBadRequest,
			kind:   ProblemInvalidRequest,
		},
		{
			name:   "empty description",
			resp:   func() *http.Response { return postJSON(t, srv.URL+"/convert", `{"description":""}`) },
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "unknown type",
			resp:   func() *http.Response { return postJSON(t, srv.URL+"/convert", `{"description":"x","entity_type":"Vehicle"}`) },
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "negative max revisions",
			resp:   func() *http.Response { return postJSON(t, srv.URL+"/convert", `{"description":"x","max_revisions":-1}`) },
			status: http.StatusBadRequest,
			kind:   ProblemInvalidRequest,
		},
		{
			name:   "missing session",
			resp:   func() *http.Response { return get(t, srv.URL+"/sessions/missing") },
			status: http.StatusNotFound,
			kind:   "not_found",
		},
		{
			name:   "bad format",
			resp:   func() *http.Response { return get(t, srv.URL+"/sessions/missing/statblock?format=pdf") },
			status: http.StatusBadRequest,
			kind:   ProblemInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp()
			assert.Equal(t, tt.status, resp.StatusCode)

			assert.Equal(t, ProblemMediaType, resp.Header.Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Detail)
			assert.Equal(t, tt.kind, body.Type)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, http.StatusText(tt.status), body.Title)
		})
	}
}

type failingBackend struct{}

func (failingBackend) Complete(context.Context, generation.Request) (string, error) {
	return "", errors.New("upstream timeout")
}

func TestConvert_GenerationFailure(t *testing.T) {
	conv := statforge.New(generation.NewGateway(failingBackend{}))
	srv := httptest.NewServer(NewHandler(conv))
	defer srv.Close()

	// Preset type so the first backend call is the draft.
	resp := postJSON(t, srv.URL+"/convert", `{"description":"x","entity_type":"Spell"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ProblemGeneration, body.Type)
	assert.Equal(t, "/convert", body.Instance)
	assert.Equal(t, string(domain.StageGenerate), body.Stage)

	// An outage while classifying is still a generation failure.
	resp = postJSON(t, srv.URL+"/convert", `{"description":"y"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body = ErrorResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ProblemGeneration, body.Type)
	assert.Equal(t, string(domain.StageClassify), body.Stage)
}

// classifyAs answers every structured request with a fixed type tag.
type classifyAs string

func (c classifyAs) GenerateRecord(context.Context, domain.Prompt, schema.RecordSchema) (domain.Record, error) {
	return domain.Record{Fields: map[string]any{"type": string(c)}}, nil
}

func (c classifyAs) GenerateText(context.Context, domain.Prompt) (string, error) {
	return "", nil
}

func TestConvert_ClassificationFailure(t *testing.T) {
	srv := httptest.NewServer(NewHandler(statforge.New(classifyAs("Vehicle"))))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/convert", `{"description":"A rusty wagon"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ProblemClassification, body.Type)
	assert.Empty(t, body.Stage)

	// A tag the schema rejects is a classification failure too.
	offEnum := generation.BackendFunc(func(context.Context, generation.Request) (string, error) {
		return `{"type": "Vehicle"}`, nil
	})
	srv2 := httptest.NewServer(NewHandler(statforge.New(generation.NewGateway(offEnum))))
	defer srv2.Close()

	resp = postJSON(t, srv2.URL+"/convert", `{"description":"A rusty wagon"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCreateEffect(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/effects", `{"scene":"Five adventurers chant 'rage' around a fire."}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body EffectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Occurred)
	require.NotNil(t, body.Effect)
	assert.Equal(t, "Mock effect description", body.Effect.Fields["effect_description"])
	assert.Contains(t, body.Markdown, "## Mock name")
	assert.Contains(t, body.Description, "Mock effect description")

	resp = postJSON(t, srv.URL+"/effects", `{"scene":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateEffect_NoMagicalEffect(t *testing.T) {
	none := generation.BackendFunc(func(context.Context, generation.Request) (string, error) {
		return `{"effect_description": "There is no magical effect.", "flavour_text": "Nothing stirs."}`, nil
	})
	srv := httptest.NewServer(NewHandler(statforge.New(generation.NewGateway(none))))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/effects", `{"scene":"Two farmers discuss the weather."}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body EffectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Occurred)
	assert.Nil(t, body.Effect)
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/convert", `{"session_id":"s1","description":"A cursed ring","max_revisions":0}`)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/s1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/sessions/s1").StatusCode)
}

func TestParse(t *testing.T) {
	srv := newTestServer(t)

	raw := "name: Flame Blade\ndamage: 2d6\nrarity: Rare\nflavour_text: Hot.\n--document-separator--\nname: \n"
	resp, err := http.Post(srv.URL+"/parse?type=magic_item", "text/plain", strings.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ParseResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, "Flame Blade", body.Records[0].Fields["name"])
	require.Len(t, body.Warnings, 1)
	assert.Equal(t, 1, body.Warnings[0].Chunk)
}

func TestSchemas(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv.URL+"/schemas/spell")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sch map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sch))
	assert.Equal(t, "spell", sch["name"])

	resp = get(t, srv.URL+"/schemas/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, len(domain.EntityTypes()))

	assert.Equal(t, http.StatusBadRequest, get(t, srv.URL+"/schemas/vehicle").StatusCode)
}

func TestHealthAndInfo(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/health").StatusCode)

	var info map[string]string
	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/info").Body).Decode(&info))
	assert.Equal(t, statforge.Version, info["version"])
}

func TestSubscribeEvents(t *testing.T) {
	streams := NewStreamManager(nil)
	conv := statforge.New(generation.NewGateway(&generation.MockBackend{}),
		statforge.WithLifecycleHooks(streams.Hooks()),
	)
	srv := httptest.NewServer(NewHandler(conv, WithStreams(streams)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/s1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	go func() {
		_, _ = conv.Convert(context.Background(), statforge.Request{SessionID: "s1", Description: "A cursed ring"})
	}()

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	var ev streamEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, domain.EventStageEnter, ev.Type)
	assert.Equal(t, domain.StageClassify, ev.Stage)
}

func TestStreamManager_DropsForSlowClients(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, cancel := sm.Subscribe("s1")

	for i := 0; i < 100; i++ {
		sm.Broadcast("s1", "msg")
	}
	assert.Len(t, ch, cap(ch))

	cancel()
	cancel()
	sm.Broadcast("s1", "after")
}
