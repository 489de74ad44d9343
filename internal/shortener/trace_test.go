package shortener_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/shortener"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
)

func TestClassifyTracesResolutionOnce(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/s" {
			http.Redirect(w, r, "/landing", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	res := shortener.New(shortener.Options{ExtraHosts: []string{u.Hostname()}, Client: srv.Client()})
	o := detect.NewOrchestrator(detect.Options{Shortener: res})

	v, ok := o.Classify(context.Background(), nil, srv.URL+"/s", "")
	require.True(t, ok)
	assert.True(t, v.IsShortened)
	assert.Equal(t, srv.URL+"/landing", v.ResolvedURL)

	resolves := 0
	for _, s := range sr.Ended() {
		if s.Name() == observability.StageShortener.String() {
			resolves++
		}
	}
	assert.Equal(t, 1, resolves)
}
