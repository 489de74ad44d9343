package api

import (
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

const maxBatchURLs = 500

func (a *App) classify(w http.ResponseWriter, r *http.Request) {
	var req types.ClassifyRequest
	if !decodeJSON(w, r, &req, "") {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "url is required"})
		return
	}
	v, _ := a.orch.Classify(r.Context(), nil, req.URL, req.BaseURL)
	writeJSON(w, http.StatusOK, v)
}

// classifyBatch evaluates every URL within one pass, so duplicates after
// normalization are reported as skipped and a rate limit hit by one URL
// pauses the service for the rest.
func (a *App) classifyBatch(w http.ResponseWriter, r *http.Request) {
	var req types.ClassifyBatchRequest
	if !decodeJSON(w, r, &req, "") {
		return
	}
	if len(req.URLs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "urls is required"})
		return
	}
	if len(req.URLs) > maxBatchURLs {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "too many urls"})
		return
	}

	pass := detect.NewPass()
	results := make([]types.ScanResult, len(req.URLs))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(max(a.cfg.Scan.BatchSize, 1))
	for i, u := range req.URLs {
		g.Go(func() error {
			res := types.ScanResult{URL: u, Kind: types.CandidateLink}
			if v, ok := a.orch.Classify(ctx, pass, u, req.BaseURL); ok {
				res.Verdict = &v
			} else {
				res.Skipped = true
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, types.ClassifyBatchResponse{Results: results, RateLimited: pass.RateLimited()})
}

func (a *App) resolve(w http.ResponseWriter, r *http.Request) {
	var req types.ResolveRequest
	if !decodeJSON(w, r, &req, "") {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "url is required"})
		return
	}
	writeJSON(w, http.StatusOK, a.resolveURL(r, req.URL))
}

func (a *App) resolveURL(r *http.Request, raw string) types.ResolveResponse {
	u := urlnorm.MustNormalize(raw)
	resp := types.ResolveResponse{URL: raw, ResolvedURL: u}
	if a.shortener == nil || !a.shortener.IsShortened(u) {
		return resp
	}
	resp.IsShortened = true
	resp.ResolvedURL = a.shortener.Resolve(r.Context(), u)
	return resp
}
