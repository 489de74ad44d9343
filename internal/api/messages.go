package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

const (
	errUnknownType     = "Unknown message type"
	errURLRequired     = "url is required"
	errPageRequired    = "page is required"
	errEnabledRequired = "enabled is required"
	errInvalidLang     = "Invalid language"
	errScanDisabled    = "Scanning is disabled"
	errScanAbandoned   = "Scan abandoned"
)

func (a *App) postMessage(w http.ResponseWriter, r *http.Request) {
	var msg types.Message
	if !decodeJSON(w, r, &msg, "") {
		return
	}
	writeJSON(w, http.StatusOK, a.dispatch(r.Context(), msg, nil))
}

// dispatch answers one message. stream, when non-nil, receives the
// intermediate SCAN_RESULT messages of a scan before the reply is returned.
func (a *App) dispatch(ctx context.Context, msg types.Message, stream func(types.Reply)) types.Reply {
	reply := types.Reply{ID: msg.ID, Type: msg.Type}

	switch msg.Type {
	case types.MsgGetPhishFeed:
		a.feed.EnsureFresh()
		reply.PhishList = a.feed.Entries()
		reply.Success = true

	case types.MsgGetToggleState:
		s, err := a.store.GetSettings(ctx)
		if err != nil {
			return fail(reply, err.Error())
		}
		reply.Enabled = &s.Enabled
		reply.Success = true

	case types.MsgSetToggleState:
		if msg.Enabled == nil {
			return fail(reply, errEnabledRequired)
		}
		s, err := a.applySettings(ctx, types.SettingsPatch{Enabled: msg.Enabled})
		if err != nil {
			return fail(reply, err.Error())
		}
		reply.Enabled = &s.Enabled
		reply.Success = true

	case types.MsgGetSettings:
		s, err := a.store.GetSettings(ctx)
		if err != nil {
			return fail(reply, err.Error())
		}
		reply.Settings = &s
		reply.Success = true

	case types.MsgSetLanguage:
		lang := msg.Language
		s, err := a.applySettings(ctx, types.SettingsPatch{Language: &lang})
		if errors.Is(err, errInvalidLanguage) {
			return fail(reply, errInvalidLang)
		}
		if err != nil {
			return fail(reply, err.Error())
		}
		reply.Settings = &s
		reply.Success = true

	case types.MsgCheckURL:
		if strings.TrimSpace(msg.URL) == "" {
			return fail(reply, errURLRequired)
		}
		v, _ := a.orch.Classify(ctx, nil, msg.URL, msg.BaseURL)
		reply.Verdict = &v
		reply.Success = true

	case types.MsgCheckVirusTotal:
		if strings.TrimSpace(msg.URL) == "" {
			return fail(reply, errURLRequired)
		}
		v := a.orch.LookupVerdict(ctx, "virustotal", msg.URL)
		reply.Verdict = &v
		reply.Success = true

	case types.MsgIsShortenedURL:
		if strings.TrimSpace(msg.URL) == "" {
			return fail(reply, errURLRequired)
		}
		shortened := a.shortener != nil && a.shortener.IsShortened(urlnorm.MustNormalize(msg.URL))
		reply.IsShortened = &shortened
		reply.Success = true

	case types.MsgResolveShortenedURL:
		if strings.TrimSpace(msg.URL) == "" {
			return fail(reply, errURLRequired)
		}
		u := urlnorm.MustNormalize(msg.URL)
		shortened := a.shortener != nil && a.shortener.IsShortened(u)
		reply.IsShortened = &shortened
		reply.ResolvedURL = u
		if shortened {
			reply.ResolvedURL = a.shortener.Resolve(ctx, u)
		}
		reply.Success = true

	case types.MsgScanPage, types.MsgForceScan:
		if msg.Page == nil || strings.TrimSpace(msg.Page.PageURL) == "" {
			return fail(reply, errPageRequired)
		}
		var emit func(types.ScanResult)
		if stream != nil {
			emit = func(res types.ScanResult) {
				stream(types.Reply{ID: msg.ID, Type: types.MsgScanResult, Result: &res})
			}
		}
		snap, err := a.scanner.Scan(ctx, *msg.Page, emit)
		switch {
		case errors.Is(err, detect.ErrDisabled):
			reply.Snapshot = &snap
			return fail(reply, errScanDisabled)
		case errors.Is(err, detect.ErrAbandoned):
			return fail(reply, errScanAbandoned)
		case err != nil:
			return fail(reply, err.Error())
		}
		reply.Snapshot = &snap
		reply.Success = true

	default:
		return fail(reply, errUnknownType)
	}
	return reply
}

func fail(reply types.Reply, msg string) types.Reply {
	reply.Success = false
	reply.Error = msg
	return reply
}
