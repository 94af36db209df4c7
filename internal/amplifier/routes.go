package amplifier

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// RegisterRoutes wires the amplifier command routes. amp may be nil when no
// amplifier is configured; every route then reports it missing.
func RegisterRoutes(router chi.Router, amp Amplifier) {
	command := func(run func(r *http.Request) error) api.Handler {
		return func(w http.ResponseWriter, r *http.Request) error {
			if amp == nil {
				return apperrors.NewNotFoundError("no amplifier is configured", nil)
			}
			if err := run(r); err != nil {
				return err
			}
			return api.WriteJSON(w, http.StatusOK, amp.State())
		}
	}

	router.Method(http.MethodGet, "/system/amplifier", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if amp == nil {
			return apperrors.NewNotFoundError("no amplifier is configured", nil)
		}
		return api.WriteJSON(w, http.StatusOK, amp.State())
	}))

	router.Method(http.MethodPost, "/system/amplifier/power_toggle", command(func(r *http.Request) error {
		return amp.TogglePower(r.Context())
	}))

	router.Method(http.MethodPost, "/system/amplifier/mute_toggle", command(func(r *http.Request) error {
		return amp.ToggleMute(r.Context())
	}))

	router.Method(http.MethodPost, "/system/amplifier/volume_up", command(func(r *http.Request) error {
		return amp.VolumeUp(r.Context())
	}))

	router.Method(http.MethodPost, "/system/amplifier/volume_down", command(func(r *http.Request) error {
		return amp.VolumeDown(r.Context())
	}))

	router.Method(http.MethodPost, "/system/amplifier/volume", command(func(r *http.Request) error {
		raw := r.URL.Query().Get("value")
		if raw == "" {
			return apperrors.NewInputError("value query parameter is required", nil)
		}
		volume, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return apperrors.NewInputError("volume must be a float in [0, 1]: "+raw, nil)
		}
		return amp.SetVolume(r.Context(), volume)
	}))

	router.Method(http.MethodPost, "/system/amplifier/source", command(func(r *http.Request) error {
		source := r.URL.Query().Get("source")
		if source == "" {
			return apperrors.NewInputError("source query parameter is required", nil)
		}
		return amp.SetSource(r.Context(), source)
	}))

	router.Method(http.MethodPost, "/system/amplifier/mute", command(func(r *http.Request) error {
		switch r.URL.Query().Get("value") {
		case "on":
			return amp.SetMute(r.Context(), model.MuteOn)
		case "off":
			return amp.SetMute(r.Context(), model.MuteOff)
		default:
			return apperrors.NewInputError("mute value must be on or off", nil)
		}
	}))
}
