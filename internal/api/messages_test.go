package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

func postMessage(t *testing.T, env *testEnv, msg types.Message) types.Reply {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/api/v1/messages", msg)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decodeBody[types.Reply](t, rr)
}

func TestMessages_UnknownType(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodPost, "/api/v1/messages", `{"id":"7","type":"DO_SOMETHING"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":"7","type":"DO_SOMETHING","error":"Unknown message type"}`, rr.Body.String())
}

func TestMessages_ToggleAndSettings(t *testing.T) {
	env := newTestEnv(t, nil)

	reply := postMessage(t, env, types.Message{ID: "1", Type: types.MsgGetToggleState})
	require.NotNil(t, reply.Enabled)
	assert.True(t, *reply.Enabled)
	assert.Equal(t, "1", reply.ID)

	off := false
	reply = postMessage(t, env, types.Message{ID: "2", Type: types.MsgSetToggleState, Enabled: &off})
	assert.True(t, reply.Success)
	assert.False(t, *reply.Enabled)

	reply = postMessage(t, env, types.Message{ID: "3", Type: types.MsgSetToggleState})
	assert.Equal(t, "enabled is required", reply.Error)

	reply = postMessage(t, env, types.Message{ID: "4", Type: types.MsgSetLanguage, Language: types.LanguageHindi})
	require.True(t, reply.Success)
	assert.Equal(t, types.LanguageHindi, reply.Settings.Language)
	assert.False(t, reply.Settings.Enabled)

	reply = postMessage(t, env, types.Message{ID: "5", Type: types.MsgSetLanguage, Language: "xx"})
	assert.Equal(t, "Invalid language", reply.Error)

	reply = postMessage(t, env, types.Message{ID: "6", Type: types.MsgGetSettings})
	assert.Equal(t, types.Settings{Enabled: false, Language: types.LanguageHindi}, *reply.Settings)
}

func TestMessages_PhishFeed(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := postMessage(t, env, types.Message{Type: types.MsgGetPhishFeed})
	assert.True(t, reply.Success)
	assert.Contains(t, reply.PhishList, "fake-paypal.com")
}

func TestMessages_URLChecks(t *testing.T) {
	env := newTestEnv(t, nil)

	reply := postMessage(t, env, types.Message{Type: types.MsgCheckURL, URL: "https://evil.example/"})
	require.NotNil(t, reply.Verdict)
	assert.True(t, reply.Verdict.Malicious)

	reply = postMessage(t, env, types.Message{Type: types.MsgCheckVirusTotal, URL: "http://docs.example"})
	require.NotNil(t, reply.Verdict)
	assert.False(t, reply.Verdict.Malicious)
	assert.Equal(t, "https://docs.example/", reply.Verdict.URL)
	assert.Equal(t, 70, reply.Verdict.Evidence.Total)

	reply = postMessage(t, env, types.Message{Type: types.MsgCheckURL})
	assert.Equal(t, "url is required", reply.Error)
}

func TestMessages_Shortener(t *testing.T) {
	env := newTestEnv(t, nil)

	reply := postMessage(t, env, types.Message{Type: types.MsgIsShortenedURL, URL: "https://bit.ly/abc123"})
	require.NotNil(t, reply.IsShortened)
	assert.True(t, *reply.IsShortened)

	reply = postMessage(t, env, types.Message{Type: types.MsgResolveShortenedURL, URL: "https://bit.ly/abc123"})
	assert.Equal(t, "https://www.google.com/maps", reply.ResolvedURL)

	reply = postMessage(t, env, types.Message{Type: types.MsgIsShortenedURL, URL: "https://docs.example/"})
	assert.False(t, *reply.IsShortened)
}

func TestMessages_ScanPage(t *testing.T) {
	env := newTestEnv(t, nil)

	reply := postMessage(t, env, types.Message{ID: "s1", Type: types.MsgScanPage, Page: &types.ScanRequest{
		PageURL: "https://news.example/",
		Links:   []string{"https://evil.example/", "https://docs.example/"},
	}})
	require.True(t, reply.Success, reply.Error)
	require.NotNil(t, reply.Snapshot)
	assert.Len(t, reply.Snapshot.Found, 1)
	assert.Len(t, reply.Snapshot.Clean, 1)

	reply = postMessage(t, env, types.Message{Type: types.MsgForceScan})
	assert.Equal(t, "page is required", reply.Error)
}
