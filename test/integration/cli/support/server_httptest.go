package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/dataio"
	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/server"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// createTestHTTPServer starts the estimation API in-process.
func (testCtx *TestContext) createTestHTTPServer(mutate func(*server.Config)) error {
	cfg := server.Config{
		CORSOrigin: "*",
		MaxBodyKB:  4096,
		TimeoutSec: 10,
		Estimation: estimate.DefaultConfig(),
		Logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
	}
	return nil
}

// stopTestHTTPServer stops the httptest server.
func (testCtx *TestContext) stopTestHTTPServer() {
	if testCtx.HTTPTestServer == nil {
		return
	}
	testCtx.HTTPTestServer.Server.Close()
	_ = testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
}

// doRequest sends a request to the running server and records the response.
func (testCtx *TestContext) doRequest(method, endpoint string, body []byte, headers map[string]string) error {
	url := testCtx.GetServerURL() + endpoint

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader) //nolint:noctx // test helper
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

// fixtureBody encodes a fixture file as a JSON request body.
func (testCtx *TestContext) fixtureBody(name string) ([]byte, error) {
	corr, err := dataio.ReadFile(testCtx.path(name))
	if err != nil {
		return nil, err
	}
	return json.Marshal(corr)
}

// postFixture sends a fixture to endpoint.
func (testCtx *TestContext) postFixture(name, endpoint string) error {
	body, err := testCtx.fixtureBody(name)
	if err != nil {
		return err
	}
	return testCtx.doRequest(http.MethodPost, endpoint, body, nil)
}

// postFixtureTimes sends the same fixture n times and keeps the statuses.
func (testCtx *TestContext) postFixtureTimes(name, endpoint string, n int) ([]int, error) {
	body, err := testCtx.fixtureBody(name)
	if err != nil {
		return nil, err
	}
	statuses := make([]int, 0, n)
	for range n {
		if err := testCtx.doRequest(http.MethodPost, endpoint, body, nil); err != nil {
			return statuses, err
		}
		statuses = append(statuses, testCtx.LastHTTPStatusCode)
	}
	return statuses, nil
}

// responseResult decodes the estimation result of the last response.
func (testCtx *TestContext) responseResult() (*estimate.Result, error) {
	var resp server.EstimateResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return nil, fmt.Errorf("response is not an estimation response: %w\n%s", err, testCtx.LastHTTPResponse)
	}
	if !resp.Success || resp.Result == nil {
		return nil, fmt.Errorf("estimation failed: %s", resp.Error)
	}
	return resp.Result, nil
}

func (testCtx *TestContext) responseContains(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nResponse: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}
