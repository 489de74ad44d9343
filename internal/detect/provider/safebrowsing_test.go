package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smeet2005/PHISHSCAN/pkg/ratelimit"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

func sbServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestSafeBrowsing_Identity(t *testing.T) {
	s := NewSafeBrowsing(SafeBrowsingConfig{})
	assert.Equal(t, "safebrowsing", s.Name())
	assert.Equal(t, types.SourceReputationB, s.Source())
	assert.False(t, s.Configured())
}

func TestSafeBrowsing_RequestShapeAndMatch(t *testing.T) {
	var got sbRequest
	srv := sbServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, threatMatchesPath, r.URL.Path)
		assert.Equal(t, "sb-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		jsonBody(w, `{"matches":[{"threatType":"SOCIAL_ENGINEERING","platformType":"ANY_PLATFORM","threat":{"url":"https://evil.example/"}}]}`)
	})

	s := NewSafeBrowsing(SafeBrowsingConfig{APIKey: "sb-key", BaseURL: srv.URL})
	r := s.Query(context.Background(), "https://evil.example/")

	assert.Equal(t, "phishscan-extension", got.Client.ClientID)
	assert.Equal(t, "1.0", got.Client.ClientVersion)
	assert.Equal(t, ThreatTypes, got.ThreatInfo.ThreatTypes)
	assert.Equal(t, []string{"ANY_PLATFORM"}, got.ThreatInfo.PlatformTypes)
	assert.Equal(t, []string{"URL"}, got.ThreatInfo.ThreatEntryTypes)
	require.Len(t, got.ThreatInfo.ThreatEntries, 1)
	assert.Equal(t, "https://evil.example/", got.ThreatInfo.ThreatEntries[0].URL)

	assert.True(t, r.Malicious)
	assert.Equal(t, "Google Safe Browsing: SOCIAL_ENGINEERING", r.Reason)
	assert.Equal(t, "SOCIAL_ENGINEERING", r.ThreatType)
	assert.Equal(t, "ANY_PLATFORM", r.PlatformType)
	assert.Nil(t, r.Evidence)
}

func TestSafeBrowsing_NoMatch(t *testing.T) {
	srv := sbServer(t, func(w http.ResponseWriter, r *http.Request) {
		jsonBody(w, `{}`)
	})
	r := NewSafeBrowsing(SafeBrowsingConfig{APIKey: "k", BaseURL: srv.URL}).Query(context.Background(), "https://a.example/")
	assert.False(t, r.Malicious)
	assert.Equal(t, "No threats detected", r.Reason)
	assert.Empty(t, r.Error)
}

func TestSafeBrowsing_RateLimited(t *testing.T) {
	srv := sbServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"Quota exceeded for quota metric 'Requests' and limit 'Requests per day'"}}`))
	})
	lim := ratelimit.NewLimiter(ratelimit.LimiterConfig{DailyQuota: 10000})
	r := NewSafeBrowsing(SafeBrowsingConfig{APIKey: "k", BaseURL: srv.URL, Limiter: lim}).Query(context.Background(), "https://a.example/")
	assert.True(t, r.RateLimited)
	assert.Equal(t, "API rate limit exceeded", r.Reason)
	assert.Equal(t, types.TagRateLimit, r.Error)
	assert.Equal(t, int64(0), lim.Quota().Remaining())
}

func TestSafeBrowsing_Timeout(t *testing.T) {
	srv := sbServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	r := NewSafeBrowsing(SafeBrowsingConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}).
		Query(context.Background(), "https://a.example/")
	assert.False(t, r.Malicious)
	assert.Equal(t, "API request timeout", r.Reason)
	assert.Equal(t, types.TagTimeout, r.Error)
}

func TestSafeBrowsing_ServerErrorIsInconclusive(t *testing.T) {
	srv := sbServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r := NewSafeBrowsing(SafeBrowsingConfig{APIKey: "k", BaseURL: srv.URL}).Query(context.Background(), "https://a.example/")
	assert.False(t, r.Malicious)
	assert.Equal(t, "Google Safe Browsing: API error (502)", r.Reason)
	assert.Equal(t, "HTTP_502", r.Error)
}

func TestSafeBrowsing_TransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	r := NewSafeBrowsing(SafeBrowsingConfig{APIKey: "secret-key", BaseURL: base}).Query(context.Background(), "https://a.example/")
	assert.Equal(t, types.TagNetworkError, r.Error)
	assert.Equal(t, "Google Safe Browsing: Network error", r.Reason)
	assert.NotContains(t, r.Reason, "secret-key")

	_, err := http.Get(base + threatMatchesPath + "?key=secret-key")
	require.Error(t, err)
	assert.NotContains(t, stripURL(err).Error(), "secret-key")
}
