package streamer

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// RegisterRoutes wires the transport, preset, and streamer-device routes.
func RegisterRoutes(router chi.Router, service *Service) {
	transportCommand := func(run func(r *http.Request) (model.TransportState, error)) api.Handler {
		return func(w http.ResponseWriter, r *http.Request) error {
			transport, err := run(r)
			if err != nil {
				return err
			}
			return api.WriteJSON(w, http.StatusOK, transport)
		}
	}

	router.Method(http.MethodPost, "/transport/play", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.Play(r.Context())
	}))
	router.Method(http.MethodPost, "/transport/pause", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.Pause(r.Context())
	}))
	router.Method(http.MethodPost, "/transport/stop", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.StopPlayback(r.Context())
	}))
	router.Method(http.MethodPost, "/transport/toggle_playback", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.TogglePlayback(r.Context())
	}))
	router.Method(http.MethodPost, "/transport/next", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.Next(r.Context())
	}))
	router.Method(http.MethodPost, "/transport/previous", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.Previous(r.Context())
	}))
	router.Method(http.MethodPost, "/transport/repeat", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.ToggleRepeat(r.Context())
	}))
	router.Method(http.MethodPost, "/transport/shuffle", transportCommand(func(r *http.Request) (model.TransportState, error) {
		return service.ToggleShuffle(r.Context())
	}))

	router.Method(http.MethodPost, "/transport/seek", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		target := r.URL.Query().Get("target")
		if target == "" {
			return apperrors.NewInputError("target query parameter is required", nil)
		}
		if err := service.Seek(r.Context(), target); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, service.TransportState())
	}))

	router.Method(http.MethodGet, "/transport/position", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]int{"position": service.Position()})
	}))

	router.Method(http.MethodGet, "/transport/active_controls", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{
			"activeControls": service.TransportState().ActiveControls,
		})
	}))

	router.Method(http.MethodGet, "/presets", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, service.Presets())
	}))

	router.Method(http.MethodGet, "/presets/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := presetID(r)
		if err != nil {
			return err
		}
		for _, preset := range service.Presets().Presets {
			if preset.ID == id {
				return api.WriteJSON(w, http.StatusOK, preset)
			}
		}
		return apperrors.NewNotFoundResource("preset", strconv.Itoa(id))
	}))

	router.Method(http.MethodPost, "/presets/{id}/play", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id, err := presetID(r)
		if err != nil {
			return err
		}
		if err := service.PlayPreset(r.Context(), id); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"preset": id})
	}))

	router.Method(http.MethodPost, "/system/streamer/power_toggle", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if err := service.TogglePower(r.Context()); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, service.State())
	}))

	router.Method(http.MethodPost, "/system/streamer/source", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		source := r.URL.Query().Get("source")
		if source == "" {
			return apperrors.NewInputError("source query parameter is required", nil)
		}
		if err := service.SetSource(r.Context(), source); err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, service.State())
	}))

	router.Method(http.MethodGet, "/system/streamer/device_display", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, service.State().Display)
	}))
}

func presetID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInputError("preset id must be an integer: "+raw, nil)
	}
	return id, nil
}
