package api

import "net/http"

func (a *App) feedStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.feed.Status())
}

func (a *App) refreshFeed(w http.ResponseWriter, r *http.Request) {
	if a.syncer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "threat feed sync is disabled"})
		return
	}
	if err := a.syncer.Refresh(r.Context()); err != nil {
		a.logger.Warn("feed refresh failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "status": a.feed.Status()})
		return
	}
	writeJSON(w, http.StatusOK, a.feed.Status())
}
