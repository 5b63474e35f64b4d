package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	initialized, err := a.Query.IsInitialized(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("health check store read failed")
		a.json(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"program_id":  a.Engine.Deriver().Program().String(),
		"initialized": initialized,
	})
}
