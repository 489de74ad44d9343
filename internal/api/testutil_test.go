package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Smeet2005/PHISHSCAN/internal/auth"
	"github.com/Smeet2005/PHISHSCAN/internal/config"
	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/metrics"
	"github.com/Smeet2005/PHISHSCAN/internal/store"
	"github.com/Smeet2005/PHISHSCAN/internal/threatfeed"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

type stubVirusTotal struct {
	calls atomic.Int32
}

func (s *stubVirusTotal) Name() string         { return "virustotal" }
func (s *stubVirusTotal) Source() types.Source { return types.SourceReputationA }
func (s *stubVirusTotal) Configured() bool     { return true }

func (s *stubVirusTotal) Query(_ context.Context, u string) detect.Result {
	s.calls.Add(1)
	if strings.Contains(u, "evil.example") {
		return detect.Result{
			Malicious: true,
			Reason:    "VirusTotal: 9/70 engines detected (12.9%)",
			Evidence:  &types.Evidence{ResponseCode: 1, Positives: 9, Total: 70},
		}
	}
	return detect.Result{
		Reason:   "VirusTotal: Clean (0/70 engines detected)",
		Evidence: &types.Evidence{ResponseCode: 1, Total: 70},
	}
}

type stubShortener struct{}

func (stubShortener) IsShortened(u string) bool { return strings.HasPrefix(u, "https://bit.ly/") }

func (stubShortener) Resolve(_ context.Context, u string) string {
	if u == "https://bit.ly/abc123" {
		return "https://www.google.com/maps"
	}
	return u
}

type stubSyncer struct {
	calls atomic.Int32
	err   error
}

func (s *stubSyncer) Refresh(context.Context) error {
	s.calls.Add(1)
	return s.err
}

type testEnv struct {
	app    *App
	cfg    *config.Config
	store  *store.Memory
	feed   *threatfeed.Store
	vt     *stubVirusTotal
	syncer *stubSyncer
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Metrics.Enabled = true

	allow, err := detect.NewAllowlist(nil, nil)
	require.NoError(t, err)
	feed := threatfeed.NewStore("", 0)
	vt := &stubVirusTotal{}
	st := store.NewMemory()
	m := metrics.New()

	orch := detect.NewOrchestrator(detect.Options{
		Allowlist: allow,
		Feed:      feed,
		Shortener: stubShortener{},
		Services:  []detect.Service{{Client: vt, Metered: true}},
		Metrics:   m,
	})
	scanner := detect.NewScanner(orch, st, detect.ScannerConfig{BatchSize: 4}, m, nil)
	syncer := &stubSyncer{}
	deps := Deps{
		Orchestrator: orch,
		Scanner:      scanner,
		Store:        st,
		Feed:         feed,
		Syncer:       syncer,
		Shortener:    stubShortener{},
		Metrics:      m,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	return &testEnv{app: NewApp(cfg, deps), cfg: cfg, store: st, feed: feed, vt: vt, syncer: syncer}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	e.app.Router().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func newHTTPTestServerOrSkip(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "operation not permitted") {
			t.Skipf("httptest server listen not permitted in this environment: %v", err)
		}
		t.Fatalf("listen: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func withAPIKey(t *testing.T) func(*config.Config, *Deps) {
	return func(cfg *config.Config, deps *Deps) {
		cfg.Auth.Type = "api_key"
		cfg.Auth.APIKeys = []string{"s3cret"}
		a, err := auth.NewAPIKeyAuth(cfg.Auth.APIKeys, "", cfg.Auth.HeaderName)
		require.NoError(t, err)
		deps.Auth = a
	}
}

var errUpstream = errors.New("openphish: unexpected status 503")
