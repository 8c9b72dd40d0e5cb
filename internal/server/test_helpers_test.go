package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/synth"
	"github.com/stretchr/testify/require"
)

// newTestServer returns a server with default estimation settings and a
// silent logger.
func newTestServer(t testing.TB, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Host:       "localhost",
		Port:       8080,
		CORSOrigin: "*",
		MaxBodyKB:  256,
		TimeoutSec: 5,
		Estimation: estimate.DefaultConfig(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func twoViewBody(t testing.TB, n int) ([]byte, *synth.TwoView) {
	t.Helper()
	scene := synth.NewGenerator(7).TwoView(n, false)
	return mustJSON(t, dataio.Correspondences{Pairs: scene.Pairs}), scene
}

func planarBody(t testing.TB, n int) ([]byte, *synth.Planar) {
	t.Helper()
	scene := synth.NewGenerator(11).Planar(n)
	return mustJSON(t, dataio.Correspondences{Pairs: scene.Pairs}), scene
}

func threeViewBody(t testing.TB, n int) []byte {
	t.Helper()
	scene := synth.NewGenerator(13).ThreeView(n, false)
	return mustJSON(t, dataio.Correspondences{Triples: scene.Triples})
}

func mustJSON(t testing.TB, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// postJSON sends body to h and returns the recorder.
func postJSON(h http.HandlerFunc, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeEstimate(t testing.TB, w *httptest.ResponseRecorder) EstimateResponse {
	t.Helper()
	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
