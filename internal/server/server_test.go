package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/grapher/pkg/cache"
	"github.com/matzehuels/grapher/pkg/engine/enginetest"
	"github.com/matzehuels/grapher/pkg/errors"
	"github.com/matzehuels/grapher/pkg/observability"
	"github.com/matzehuels/grapher/pkg/observability/prom"
	"github.com/matzehuels/grapher/pkg/renderer"
)

const dotSource = `digraph G { a -> b; }`

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *enginetest.Stub) {
	t.Helper()
	stub := enginetest.New()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := log.NewWithOptions(io.Discard, log.Options{})
	opts.Logger = logger
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.NewRegistry()
	}
	ts := httptest.NewServer(New(renderer.NewRunner(stub, fc, nil, logger), opts))
	t.Cleanup(ts.Close)
	return ts, stub
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "text/vnd.graphviz", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRender(t *testing.T) {
	ts, stub := newTestServer(t, Options{})

	resp := post(t, ts.URL+"/v1/render?layout=neato&format=svg", dotSource)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if got := resp.Header.Get("X-Cache"); got != "miss" {
		t.Errorf("X-Cache = %q, want miss", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("<svg")) {
		t.Errorf("body = %q, want SVG", body)
	}
	if !stub.Counts().Balanced() {
		t.Errorf("unbalanced resources: %+v", stub.Counts())
	}

	again := post(t, ts.URL+"/v1/render?layout=neato&format=svg", dotSource)
	if got := again.Header.Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}
}

func TestRenderRefresh(t *testing.T) {
	tests := []struct {
		query   string
		want    string
		renders int
	}{
		{"", "hit", 1},
		{"?refresh=true", "miss", 2},
		{"?refresh=1", "miss", 2},
		{"?refresh=TRUE", "miss", 2},
		{"?refresh=t", "miss", 2},
		{"?refresh=false", "hit", 1},
		{"?refresh=0", "hit", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ts, stub := newTestServer(t, Options{})

			if resp := post(t, ts.URL+"/v1/render", dotSource); resp.StatusCode != http.StatusOK {
				t.Fatalf("first status = %d, want 200", resp.StatusCode)
			}
			resp := post(t, ts.URL+"/v1/render"+tt.query, dotSource)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if got := resp.Header.Get("X-Cache"); got != tt.want {
				t.Errorf("X-Cache = %q, want %q", got, tt.want)
			}
			if got := stub.Counts().Renders; got != tt.renders {
				t.Errorf("renders = %d, want %d", got, tt.renders)
			}
		})
	}
}

func TestRenderDefaultsAndContentTypes(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	tests := []struct {
		query string
		want  string
	}{
		{"", "image/svg+xml"},
		{"?format=png", "image/png"},
		{"?format=jpeg", "image/jpeg"},
		{"?format=dot", "text/vnd.graphviz"},
	}
	for _, tt := range tests {
		resp := post(t, ts.URL+"/v1/render"+tt.query, dotSource)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%q: status = %d", tt.query, resp.StatusCode)
			continue
		}
		if ct := resp.Header.Get("Content-Type"); ct != tt.want {
			t.Errorf("%q: Content-Type = %q, want %q", tt.query, ct, tt.want)
		}
	}
}

func TestRenderEmptyBody(t *testing.T) {
	ts, stub := newTestServer(t, Options{})

	resp := post(t, ts.URL+"/v1/render", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if len(stub.Calls()) != 0 {
		t.Errorf("engine called for empty body: %v", stub.Calls())
	}
}

func TestRenderErrors(t *testing.T) {
	ts, _ := newTestServer(t, Options{MaxBodyBytes: 64})

	tests := []struct {
		name     string
		path     string
		body     string
		status   int
		wantCode string
	}{
		{"bad layout", "/v1/render?layout=spiral", dotSource, http.StatusBadRequest, "INVALID_LAYOUT"},
		{"bad format", "/v1/render?format=gif", dotSource, http.StatusBadRequest, "INVALID_FORMAT"},
		{"bad dot", "/v1/render", "not a graph", http.StatusBadRequest, "PARSE_FAILED"},
		{"too large", "/v1/render", "digraph { " + strings.Repeat("a; ", 40) + "}", http.StatusRequestEntityTooLarge, "TOO_LARGE"},
		{"bad workflow", "/v1/workflow", "PARENT a CHILD b\n", http.StatusBadRequest, "PARSE_FAILED"},
		{"bad refresh", "/v1/render?refresh=maybe", dotSource, http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var e errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if string(e.Code) != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
			if e.Message == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestRenderEngineFailure(t *testing.T) {
	stub := enginetest.New().FailOn(enginetest.StepDestroy, nil)
	logger := log.NewWithOptions(io.Discard, log.Options{})
	ts := httptest.NewServer(New(renderer.NewRunner(stub, nil, nil, logger), Options{
		Logger:   logger,
		Gatherer: prometheus.NewRegistry(),
	}))
	defer ts.Close()

	resp := post(t, ts.URL+"/v1/render", dotSource)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	var e errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if e.Code != "TEARDOWN_FAILED" {
		t.Errorf("code = %q, want TEARDOWN_FAILED", e.Code)
	}
}

func TestWorkflow(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp := post(t, ts.URL+"/v1/workflow?format=svg", "JOB a a.job\nJOB b b.job\nPARENT a CHILD b\n")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("digraph workflow")) {
		t.Errorf("body does not come from the workflow DOT: %q", body)
	}
}

func TestFormats(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/v1/formats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got struct {
		Layouts []string `json:"layouts"`
		Formats []string `json:"formats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Layouts) == 0 || got.Layouts[0] != "dot" {
		t.Errorf("layouts = %v", got.Layouts)
	}
	if len(got.Formats) == 0 || got.Formats[0] != "svg" {
		t.Errorf("formats = %v", got.Formats)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/v1/render")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	observability.Reset()
	defer observability.Reset()

	reg := prometheus.NewRegistry()
	prom.Register(reg)
	ts, _ := newTestServer(t, Options{Gatherer: reg})

	post(t, ts.URL+"/v1/render", dotSource)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`grapher_renders_total{code="OK",format="svg",layout="dot"} 1`,
		`grapher_http_requests_total{code="200",method="POST",route="/v1/render"} 1`,
		`grapher_cache_events_total{event="miss",key_type="artifact"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"PARSE_FAILED", http.StatusBadRequest},
		{"INVALID_INPUT", http.StatusBadRequest},
		{"TOO_LARGE", http.StatusRequestEntityTooLarge},
		{"RENDER_FAILED", http.StatusInternalServerError},
		{"TEARDOWN_FAILED", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		err := errors.New(errors.Code(tt.code), "failed")
		if got := statusFor(err); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
