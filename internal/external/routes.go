package external

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// RegisterRoutes wires the per-track enrichment routes.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/tracks/{id}/lyrics", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		track, err := service.track(r)
		if err != nil {
			return err
		}
		lyrics := service.lyricsFor(r.Context(), track.ID, track.Artist, track.Title)
		return api.WriteJSON(w, http.StatusOK, lyrics)
	}))

	router.Method(http.MethodGet, "/tracks/{id}/links", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		track, err := service.track(r)
		if err != nil {
			return err
		}
		links := service.linksFor(r.Context(), track.ID, track.Artist, track.Album, track.Title)
		return api.WriteJSON(w, http.StatusOK, links)
	}))

	router.Method(http.MethodGet, "/tracks/{id}/waveform", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		track, err := service.track(r)
		if err != nil {
			return err
		}
		if track.AudioURL == "" {
			return apperrors.NewNotFoundError("track has no audio URL: "+track.ID, nil)
		}
		rendered, err := service.waveformFor(r.Context(), track.AudioURL, "json")
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(rendered)
		return err
	}))

	router.Method(http.MethodGet, "/tracks/{id}/waveform.png", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		track, err := service.track(r)
		if err != nil {
			return err
		}
		if track.AudioURL == "" {
			return apperrors.NewNotFoundError("track has no audio URL: "+track.ID, nil)
		}
		rendered, err := service.waveformFor(r.Context(), track.AudioURL, "png")
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(rendered)
		return err
	}))

	router.Method(http.MethodGet, "/tracks/{id}/rms", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		track, err := service.track(r)
		if err != nil {
			return err
		}
		if track.AudioURL == "" {
			return apperrors.NewNotFoundError("track has no audio URL: "+track.ID, nil)
		}
		rms, err := service.rmsFor(r.Context(), track.AudioURL)
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, rms)
	}))
}

func (s *Service) track(r *http.Request) (model.Track, error) {
	if s.media == nil {
		return model.Track{}, apperrors.NewNotFoundError("no media server is available", nil)
	}
	return s.media.Track(r.Context(), chi.URLParam(r, "id"))
}
