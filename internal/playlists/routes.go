package playlists

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
	"github.com/vibin-audio/vibin-go/internal/streamer"
)

// RegisterRoutes wires the stored-playlist and queue routes. Queue mutations
// go through the reconciler so drift tracking stays coherent.
func RegisterRoutes(router chi.Router, reconciler *Reconciler) {
	router.Method(http.MethodGet, "/playlists", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, reconciler.Payload())
	}))

	router.Method(http.MethodGet, "/playlists/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		playlist, err := reconciler.Get(chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, playlist)
	}))

	router.Method(http.MethodPut, "/playlists/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return apperrors.NewInputError("invalid playlist body: "+err.Error(), nil)
		}
		if body.Name == "" {
			return apperrors.NewInputError("playlist name is required", nil)
		}
		playlist, err := reconciler.UpdateMetadata(chi.URLParam(r, "id"), body.Name)
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, playlist)
	}))

	router.Method(http.MethodDelete, "/playlists/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := reconciler.Delete(chi.URLParam(r, "id")); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"deleted": chi.URLParam(r, "id")})
	}))

	router.Method(http.MethodPost, "/playlists/{id}/make_current", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := reconciler.Activate(r.Context(), chi.URLParam(r, "id")); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, reconciler.Payload())
	}))

	router.Method(http.MethodPost, "/playlists/current/store", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		name := r.URL.Query().Get("name")
		replace := r.URL.Query().Get("replace") == "true"
		playlist, err := reconciler.StoreActive(r.Context(), name, replace)
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, playlist)
	}))

	router.Method(http.MethodGet, "/queue", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, reconciler.Queue())
	}))

	router.Method(http.MethodPost, "/queue/modify/{mediaId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		mediaID := chi.URLParam(r, "mediaId")
		action, err := parseAction(r.URL.Query().Get("action"))
		if err != nil {
			return err
		}

		// play_from_id and insert_index coexist on the wire; both are
		// accepted and treated the same way downstream.
		opts := streamer.ModifyQueueOptions{
			PlayFromID: r.URL.Query().Get("play_from_id"),
		}
		if raw := r.URL.Query().Get("insert_index"); raw != "" {
			index, err := strconv.Atoi(raw)
			if err != nil {
				return apperrors.NewInputError("insert_index must be an integer: "+raw, nil)
			}
			opts.InsertIndex = &index
		}

		if err := reconciler.ModifyQueue(r.Context(), mediaID, action, opts); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"mediaId": mediaID, "action": action})
	}))

	router.Method(http.MethodPost, "/queue/play/id/{itemId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		itemID, err := intParam(r, "itemId")
		if err != nil {
			return err
		}
		if err := reconciler.PlayQueueID(r.Context(), itemID); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"playing": itemID})
	}))

	router.Method(http.MethodPost, "/queue/play/position/{position}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		position, err := intParam(r, "position")
		if err != nil {
			return err
		}
		if err := reconciler.PlayQueuePosition(r.Context(), position); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"playing_position": position})
	}))

	router.Method(http.MethodPost, "/queue/move/{itemId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		itemID, err := intParam(r, "itemId")
		if err != nil {
			return err
		}
		from, err := intQuery(r, "from_position")
		if err != nil {
			return err
		}
		to, err := intQuery(r, "to_position")
		if err != nil {
			return err
		}
		if err := reconciler.MoveQueueItem(r.Context(), itemID, from, to); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"moved": itemID})
	}))

	router.Method(http.MethodPost, "/queue/clear", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := reconciler.ClearQueue(r.Context()); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, reconciler.Queue())
	}))

	router.Method(http.MethodPost, "/queue/delete/{itemId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		itemID, err := intParam(r, "itemId")
		if err != nil {
			return err
		}
		if err := reconciler.DeleteQueueItem(r.Context(), itemID); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"deleted": itemID})
	}))

	router.Method(http.MethodPost, "/transport/play/{mediaId}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		mediaID := chi.URLParam(r, "mediaId")
		if err := reconciler.ModifyQueue(r.Context(), mediaID, model.QueueActionReplace, streamer.ModifyQueueOptions{}); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"playing": mediaID})
	}))
}

func parseAction(raw string) (model.QueueAction, error) {
	if raw == "" {
		return "", apperrors.NewInputError("action query parameter is required", nil)
	}
	action, ok := model.ParseQueueAction(raw)
	if !ok {
		return "", apperrors.NewInputError("unsupported queue action: "+raw, nil)
	}
	return action, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInputError(name+" must be an integer: "+raw, nil)
	}
	return value, nil
}

func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperrors.NewInputError(name+" query parameter is required", nil)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInputError(name+" must be an integer: "+raw, nil)
	}
	return value, nil
}
