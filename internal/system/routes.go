package system

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
)

// RegisterRoutes wires the server-meta routes.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/vibin/status", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, service.Status())
	}))

	router.Method(http.MethodGet, "/vibin/summary", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, service.Summary())
	}))

	router.Method(http.MethodGet, "/vibin/settings", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, service.Settings())
	}))

	router.Method(http.MethodPut, "/vibin/settings", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var settings map[string]any
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			return apperrors.NewInputError("invalid settings body: "+err.Error(), nil)
		}
		if err := service.UpdateSettings(settings); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, service.Settings())
	}))

	router.Method(http.MethodPost, "/vibin/clear_media_caches", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		service.ClearMediaCaches()
		return api.WriteJSON(w, http.StatusOK, map[string]any{"cleared": true})
	}))

	router.Method(http.MethodGet, "/vibin/db", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		export, err := service.ExportDB()
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, export)
	}))
}
