package favorites

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
)

// RegisterRoutes wires the favorites routes.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/favorites", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		favorites, err := service.Favorites(r.Context())
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, favorites)
	}))

	router.Method(http.MethodGet, "/favorites/albums", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		favorites, err := service.FavoriteAlbums(r.Context())
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, favorites)
	}))

	router.Method(http.MethodGet, "/favorites/tracks", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		favorites, err := service.FavoriteTracks(r.Context())
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, favorites)
	}))

	router.Method(http.MethodPost, "/favorites", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body struct {
			Type    string `json:"type"`
			MediaID string `json:"mediaId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return apperrors.NewInputError("invalid favorite body: "+err.Error(), nil)
		}
		if body.MediaID == "" {
			return apperrors.NewInputError("mediaId is required", nil)
		}
		if err := service.Add(r.Context(), body.Type, body.MediaID); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"type": body.Type, "mediaId": body.MediaID})
	}))

	router.Method(http.MethodDelete, "/favorites/{mediaId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		mediaID := chi.URLParam(r, "mediaId")
		if err := service.Remove(r.Context(), mediaID); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"deleted": mediaID})
	}))
}
