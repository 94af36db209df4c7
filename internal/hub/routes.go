package hub

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// RegisterRoutes wires the subscriber endpoint and the bulk play routes.
func RegisterRoutes(router chi.Router, h *Hub) {
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(h, w, r)
	})

	router.Method(http.MethodPost, "/queue/modify", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body struct {
			Action   string   `json:"action"`
			MaxCount int      `json:"maxCount"`
			MediaIDs []string `json:"mediaIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return apperrors.NewInputError("invalid queue modification body: "+err.Error(), nil)
		}

		action, ok := model.ParseQueueAction(body.Action)
		if !ok || action != model.QueueActionReplace {
			return apperrors.NewInputError("bulk queue modification supports only REPLACE", nil)
		}

		if err := h.PlayIDs(r.Context(), body.MediaIDs, body.MaxCount); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, h.Queue())
	}))

	router.Method(http.MethodPost, "/favorites/albums/play", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := h.PlayFavoriteAlbums(r.Context(), 0); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, h.Queue())
	}))

	router.Method(http.MethodPost, "/favorites/tracks/play", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := h.PlayFavoriteTracks(r.Context(), 0); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, h.Queue())
	}))
}
