package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/auth"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/cache"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/config"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/gateway"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/health"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/resilience"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/service"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/store"
)

const testKey = "test-key"

type harness struct {
	srv   *httptest.Server
	calls *atomic.Int32
	err   *atomic.Value
}

func newHarness(t *testing.T, authn auth.Authenticator) *harness {
	t.Helper()
	h := &harness{calls: &atomic.Int32{}, err: &atomic.Value{}}
	gw := gateway.Func(func(ctx context.Context, req gateway.Request) (gateway.Response, error) {
		h.calls.Add(1)
		if err, ok := h.err.Load().(error); ok && err != nil {
			return gateway.Response{}, err
		}
		text := `{"summary": "Looks fine.", "confidence": "high"}`
		parsed, ok := gateway.ParseStructured(text)
		return gateway.Response{Text: text, Parsed: parsed, HasParsed: ok}, nil
	})

	c := cache.New(cache.WithStore(store.NewMemory(0)))
	svc := service.New(cache.NewMiddleware(c, cache.DefaultPolicy()), gw)
	checks := health.NewAggregator(health.AggregatorConfig{})
	checks.Register(health.NewCacheChecker(c))

	s := &server{registry: service.DefaultRegistry(svc), health: checks, authn: authn}
	h.srv = httptest.NewServer(s.routes())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) failWith(err error) { h.err.Store(err) }

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(auth.DefaultAPIKeyHeader, testKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

const datasetPath = "/v1/modules/dataset-intelligence/entities/study-1"
const datasetBody = `{"columns": [{"name": "age", "nullCount": 0, "uniqueCount": 40}], "rowCount": 120}`

func TestServer_ComputeThenHit(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, http.MethodPost, datasetPath, datasetBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["cached"] != false || body["module"] != "dataset-intelligence" || body["entity"] != "study-1" {
		t.Errorf("first reply = %v", body)
	}

	_, body = h.do(t, http.MethodPost, datasetPath, datasetBody)
	if body["cached"] != true {
		t.Errorf("second reply = %v, want cached", body)
	}
	if n := h.calls.Load(); n != 1 {
		t.Errorf("gateway calls = %d, want 1", n)
	}
}

func TestServer_Peek(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, http.MethodPost, datasetPath+"/peek", datasetBody)
	if resp.StatusCode != http.StatusNotFound || body["error"] == nil {
		t.Fatalf("peek before compute: %d %v", resp.StatusCode, body)
	}

	h.do(t, http.MethodPost, datasetPath, datasetBody)
	resp, body = h.do(t, http.MethodPost, datasetPath+"/peek", datasetBody)
	if resp.StatusCode != http.StatusOK || body["cached"] != true {
		t.Fatalf("peek after compute: %d %v", resp.StatusCode, body)
	}
	if n := h.calls.Load(); n != 1 {
		t.Errorf("peek called the gateway: calls = %d", n)
	}
}

func TestServer_Invalidate(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, datasetPath, datasetBody)

	resp, _ := h.do(t, http.MethodDelete, datasetPath, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp, _ = h.do(t, http.MethodPost, datasetPath+"/peek", datasetBody)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("peek after invalidate = %d, want 404", resp.StatusCode)
	}
}

func TestServer_InvalidateAll(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, datasetPath, datasetBody)
	h.do(t, http.MethodPost, "/v1/modules/analysis-recommendation/entities/study-1", `{}`)

	resp, _ := h.do(t, http.MethodDelete, "/v1/entities/study-1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp, _ = h.do(t, http.MethodPost, "/v1/modules/analysis-recommendation/entities/study-1/peek", `{}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("peek after invalidate all = %d, want 404", resp.StatusCode)
	}
}

func TestServer_ListModules(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/v1/modules", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	mods, _ := body["modules"].([]any)
	if len(mods) != 8 {
		t.Errorf("modules = %d, want 8", len(mods))
	}
}

func TestServer_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		gatewayErr error
		wantStatus int
	}{
		{name: "unknown module", path: "/v1/modules/horoscope/entities/study-1", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", path: datasetPath, body: `{"columns": 3}`, wantStatus: http.StatusBadRequest},
		{
			name:       "service status",
			path:       datasetPath,
			body:       datasetBody,
			gatewayErr: &gateway.StatusError{StatusCode: 529, Body: "overloaded"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "missing credential",
			path:       datasetPath,
			body:       datasetBody,
			gatewayErr: fmt.Errorf("%w: ANTHROPIC_API_KEY", gateway.ErrMissingCredential),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "gateway timeout",
			path:       datasetPath,
			body:       datasetBody,
			gatewayErr: resilience.ErrTimeout,
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "transport",
			path:       datasetPath,
			body:       datasetBody,
			gatewayErr: errors.New("gateway: request failed: connection refused"),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if tt.gatewayErr != nil {
				h.failWith(tt.gatewayErr)
			}
			resp, body := h.do(t, http.MethodPost, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tt.wantStatus, body)
			}
			if msg, _ := body["error"].(string); msg == "" {
				t.Errorf("missing error body: %v", body)
			}
		})
	}
}

func TestServer_Auth(t *testing.T) {
	h := newHarness(t, auth.NewAPIKeyAuthenticator("", testKey))

	resp, err := http.Get(h.srv.URL + "/v1/modules")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("without key = %d, want 401", resp.StatusCode)
	}

	resp, _ = h.do(t, http.MethodGet, "/v1/modules", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("with key = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(h.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d, want 200 without credentials", resp.StatusCode)
	}
}

func TestServer_RequestID(t *testing.T) {
	h := newHarness(t, nil)

	resp, _ := h.do(t, http.MethodGet, "/v1/modules", "")
	if resp.Header.Get(requestIDHeader) == "" {
		t.Error("request id not generated")
	}

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestNewAuthenticator(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want bool
	}{
		{name: "disabled", cfg: config.Config{}},
		{name: "api keys", cfg: config.Config{APIKeys: []string{"k"}}, want: true},
		{name: "jwt", cfg: config.Config{JWTSecret: "s"}, want: true},
		{name: "blank keys only", cfg: config.Config{APIKeys: []string{" "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newAuthenticator(tt.cfg) != nil; got != tt.want {
				t.Errorf("enabled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantNil bool
	}{
		{name: "memory", cfg: config.Config{Store: config.StoreMemory}},
		{name: "none", cfg: config.Config{Store: config.StoreNone}, wantNil: true},
		{name: "sqlite", cfg: config.Config{Store: config.StoreSQLite, StorePath: t.TempDir() + "/cache.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closeFn, err := openStore(tt.cfg)
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			defer closeFn()
			if (s == nil) != tt.wantNil {
				t.Errorf("store = %v, wantNil %v", s, tt.wantNil)
			}
		})
	}
}
