package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPass(t *testing.T) {
	p := NewPass()
	assert.True(t, p.MarkProcessed("https://a.example/"))
	assert.False(t, p.MarkProcessed("https://a.example/"))
	assert.True(t, p.Processed("https://a.example/"))
	assert.False(t, p.Processed("https://b.example/"))

	assert.False(t, p.RateLimited())
	assert.False(t, p.Exhausted("virustotal"))
	p.Exhaust("virustotal")
	assert.True(t, p.Exhausted("virustotal"))
	assert.False(t, p.Exhausted("safebrowsing"))
	assert.True(t, p.RateLimited())

	fresh := NewPass()
	assert.False(t, fresh.Exhausted("virustotal"))
	assert.False(t, fresh.Processed("https://a.example/"))
}

func TestProceed(t *testing.T) {
	assert.True(t, Proceed(context.Background()))
	assert.Equal(t, context.Background(), withGate(context.Background(), nil, "virustotal"))

	p := NewPass()
	vtCtx := withGate(context.Background(), p, "virustotal")
	sbCtx := withGate(context.Background(), p, "safebrowsing")
	assert.True(t, Proceed(vtCtx))

	p.Exhaust("virustotal")
	assert.False(t, Proceed(vtCtx))
	assert.True(t, Proceed(sbCtx))
}

func TestErrorKindTags(t *testing.T) {
	assert.Equal(t, "API_KEY_MISSING", KindConfigurationMissing.Tag())
	assert.Equal(t, "TIMEOUT", KindNetworkTimeout.Tag())
	assert.Equal(t, "NETWORK_ERROR", KindNetworkFailure.Tag())
	assert.Equal(t, "RATE_LIMIT", KindRateLimited.Tag())
	assert.Equal(t, "MALFORMED_URL", KindMalformedURL.Tag())
	assert.Equal(t, "PROTOCOL_ERROR", KindUpstreamProtocol.Tag())
	assert.Equal(t, "HTTP_503", HTTPStatusTag(503))
	assert.Equal(t, KindNone, ClassifyError(nil))
}
