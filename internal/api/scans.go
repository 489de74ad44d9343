package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/store"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

func (a *App) createScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	if !decodeJSON(w, r, &req, "") {
		return
	}
	if strings.TrimSpace(req.PageURL) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "page_url is required"})
		return
	}

	snap, err := a.scanner.Scan(r.Context(), req, nil)
	switch {
	case errors.Is(err, detect.ErrDisabled):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "scanning is disabled", "snapshot": snap})
		return
	case errors.Is(err, detect.ErrAbandoned):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "scan abandoned"})
		return
	case err != nil:
		a.logger.Error("scan failed", "page", req.PageURL, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (a *App) latestScan(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.LatestSnapshot(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no scans yet"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *App) getScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := a.store.GetSnapshot(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "scan not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
