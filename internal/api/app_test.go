package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smeet2005/PHISHSCAN/internal/config"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, withAPIKey(t))

	rr := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok\n", rr.Body.String())

	rr = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "phishscan_up 1")
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, withAPIKey(t))

	rr := env.do(t, http.MethodGet, "/api/v1/settings", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/settings", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/settings", nil, "X-API-Key", "s3cret")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthMiddleware_KeysNotLoaded(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) { cfg.Auth.Type = "api_key" })
	rr := env.do(t, http.MethodGet, "/api/v1/settings", nil, "X-API-Key", "s3cret")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestClassify(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/classify", types.ClassifyRequest{URL: "https://evil.example/login"})
	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeBody[types.Verdict](t, rr)
	assert.True(t, v.Malicious)
	assert.Equal(t, types.SourceReputationA, v.Source)
	assert.Equal(t, 9, v.Evidence.Positives)

	rr = env.do(t, http.MethodPost, "/api/v1/classify", types.ClassifyRequest{URL: "/docs", BaseURL: "https://github.com/org"})
	v = decodeBody[types.Verdict](t, rr)
	assert.Equal(t, "Safe domain (whitelisted)", v.Reason)

	rr = env.do(t, http.MethodPost, "/api/v1/classify", types.ClassifyRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/classify", "{")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid json")
}

func TestClassifyBatch_OnePass(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/classify/batch", types.ClassifyBatchRequest{
		URLs: []string{"https://docs.example/a", "http://www.docs.example/a", "https://evil.example/"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[types.ClassifyBatchResponse](t, rr)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "https://evil.example/", resp.Results[2].URL)
	assert.True(t, resp.Results[2].Verdict.Malicious)

	skipped := 0
	for _, r := range resp.Results[:2] {
		if r.Skipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
	assert.False(t, resp.RateLimited)

	rr = env.do(t, http.MethodPost, "/api/v1/classify/batch", types.ClassifyBatchRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScans(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/scans/latest", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/scans", types.ScanRequest{
		PageURL: "https://news.example/",
		HTML:    `<a href="https://evil.example/win">x</a><a href="/about">about</a><form action="/search"></form>`,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	snap := decodeBody[types.Snapshot](t, rr)
	assert.Equal(t, 3, snap.TotalScanned)
	require.Len(t, snap.Found, 1)
	assert.Equal(t, "https://evil.example/win", snap.Found[0].URL)
	assert.Len(t, snap.Clean, 1)

	rr = env.do(t, http.MethodGet, "/api/v1/scans/latest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, snap.ID, decodeBody[types.Snapshot](t, rr).ID)

	rr = env.do(t, http.MethodGet, "/api/v1/scans/"+snap.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodGet, "/api/v1/scans/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/scans", types.ScanRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScans_DisabledReturnsConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	off := false
	rr := env.do(t, http.MethodPut, "/api/v1/settings", types.SettingsPatch{Enabled: &off})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/scans", types.ScanRequest{PageURL: "https://news.example/", Links: []string{"https://evil.example/"}})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Zero(t, env.vt.calls.Load())
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, types.DefaultSettings(), decodeBody[types.Settings](t, rr))

	rr = env.do(t, http.MethodPut, "/api/v1/settings", `{"language":"gu","safe_mode":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[types.Settings](t, rr)
	assert.Equal(t, types.Settings{Enabled: true, Language: types.LanguageGujarati, SafeMode: true}, got)

	rr = env.do(t, http.MethodPut, "/api/v1/settings", `{"language":"fr"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFeed(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/feed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	st := decodeBody[types.FeedStatus](t, rr)
	assert.True(t, st.Fallback)
	assert.Zero(t, st.Size)

	rr = env.do(t, http.MethodPost, "/api/v1/feed/refresh", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(1), env.syncer.calls.Load())

	env.syncer.err = errUpstream
	rr = env.do(t, http.MethodPost, "/api/v1/feed/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "unexpected status 503")
}

func TestFeed_RefreshWithoutSyncer(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, d *Deps) { d.Syncer = nil })
	rr := env.do(t, http.MethodPost, "/api/v1/feed/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestResolve(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/resolve", types.ResolveRequest{URL: "http://bit.ly/abc123"})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[types.ResolveResponse](t, rr)
	assert.True(t, resp.IsShortened)
	assert.Equal(t, "https://www.google.com/maps", resp.ResolvedURL)

	rr = env.do(t, http.MethodPost, "/api/v1/resolve", types.ResolveRequest{URL: "https://docs.example/"})
	resp = decodeBody[types.ResolveResponse](t, rr)
	assert.False(t, resp.IsShortened)
	assert.Equal(t, "https://docs.example/", resp.ResolvedURL)
}

func TestRequestTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 32)
		env.app.Router().ServeHTTP(w, r)
	})

	body := `{"url":"https://docs.example/` + strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
