package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

var errInvalidLanguage = errors.New("invalid language")

func (a *App) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.store.GetSettings(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *App) putSettings(w http.ResponseWriter, r *http.Request) {
	var patch types.SettingsPatch
	if !decodeJSON(w, r, &patch, "") {
		return
	}
	s, err := a.applySettings(r.Context(), patch)
	if errors.Is(err, errInvalidLanguage) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// applySettings merges patch into the stored settings and saves the result.
func (a *App) applySettings(ctx context.Context, patch types.SettingsPatch) (types.Settings, error) {
	if patch.Language != nil && !patch.Language.Valid() {
		return types.Settings{}, errInvalidLanguage
	}
	s, err := a.store.GetSettings(ctx)
	if err != nil {
		return types.Settings{}, err
	}
	s = s.Apply(patch)
	if err := a.store.PutSettings(ctx, s); err != nil {
		return types.Settings{}, err
	}
	a.logger.Info("settings updated", "enabled", s.Enabled, "language", s.Language, "safe_mode", s.SafeMode)
	return s, nil
}
