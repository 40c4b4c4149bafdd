package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pas-de-deux/cadence"
	"pas-de-deux/config"
	"pas-de-deux/loop"
	"pas-de-deux/performance"
	"pas-de-deux/render"
	"pas-de-deux/rhythm"
)

const spec = `{"tempo": 100, "patterns": {"a": {"notes": ["c4", "_"]}}}`

func newTestServer(debounceMS int) (*Server, *performance.Session, *loop.Manual) {
	m := loop.NewManual()
	s := performance.NewWithRuntime(m, &render.Recorder{}, performance.Options{})
	cfg := config.DefaultConfig()
	cfg.Server.DebounceMS = debounceMS
	return New(s, cfg), s, m
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestState(t *testing.T) {
	srv, s, _ := newTestServer(0)
	h := srv.Handler()
	s.Keystroke(cadence.Left)

	rec := do(t, h, "GET", "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, s.ID, snap["id"])
	left := snap["left"].(map[string]any)
	assert.Equal(t, float64(1), left["inScope"])
}

func TestPatternsLiveCode(t *testing.T) {
	srv, s, _ := newTestServer(0)
	h := srv.Handler()

	rec := do(t, h, "PUT", "/patterns", "{nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed JSON")
	assert.False(t, s.Snapshot().Pulse.Playing)

	rec = do(t, h, "PUT", "/patterns", spec)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, s.Snapshot().Pulse.Playing)

	rec = do(t, h, "GET", "/patterns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pulse performance.PulseSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pulse))
	assert.Equal(t, 100.0, pulse.Config.Tempo)
	require.Len(t, pulse.Patterns, 1)
	assert.Equal(t, []string{"c4", "_"}, pulse.Patterns[0].Notes)

	rec = do(t, h, "DELETE", "/patterns", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.Snapshot().Pulse.Playing)
}

func TestPatternsDebounced(t *testing.T) {
	srv, s, _ := newTestServer(20)
	srv.applied = make(chan error, 4)
	h := srv.Handler()

	do(t, h, "PUT", "/patterns", `{"patterns": {"a": {"notes": ["c4"]}}}`)
	do(t, h, "PUT", "/patterns", spec)

	select {
	case err := <-srv.applied:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced update never applied")
	}
	assert.Equal(t, 100.0, s.Snapshot().Pulse.Config.Tempo)
	assert.Len(t, srv.applied, 0, "only the last edit is applied")
}

func TestRhythmCommands(t *testing.T) {
	srv, s, _ := newTestServer(0)
	h := srv.Handler()

	rec := do(t, h, "POST", "/rhythm/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st rhythm.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Playing)

	rec = do(t, h, "PUT", "/rhythm/bpm", `{"bpm": 90}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90.0, s.Snapshot().Rhythm.BPM)

	rec = do(t, h, "PUT", "/rhythm/bpm", `oops`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/rhythm/next", "")
	assert.JSONEq(t, `{"name": "superDetune"}`, rec.Body.String())

	rec = do(t, h, "PUT", "/rhythm/preset", `{"name": "nope"}`)
	assert.JSONEq(t, `{"name": "classic"}`, rec.Body.String())

	rec = do(t, h, "POST", "/rhythm/stop", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Fading)
}

func TestStreams(t *testing.T) {
	srv, s, _ := newTestServer(0)
	h := srv.Handler()

	assert.Equal(t, http.StatusNoContent, do(t, h, "POST", "/streams/left/key", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, "POST", "/streams/right/hold", `{"ms": 50}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "POST", "/streams/middle/key", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/streams/left/hold", `{"ms": 0}`).Code)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Left.InScope)
	assert.Equal(t, cadence.Staccato, snap.Right.Hold)

	rec := do(t, h, "GET", "/take", "")
	var take performance.Take
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &take))
	assert.Len(t, take.Events, 2)
}

func TestConfigAndCORS(t *testing.T) {
	srv, _, _ := newTestServer(0)
	h := srv.Handler()

	req := httptest.NewRequest("GET", "/config", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var cfg config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, config.BackendSynth, cfg.Backend)
}
