package mediaserver

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
)

// RegisterRoutes wires the media catalog and browse routes to the router.
// service may be nil when no media server was resolved; every route then
// reports the missing media server instead of panicking.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/albums", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		albums, err := service.Albums(r.Context())
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, albums)
	}))

	router.Method(http.MethodGet, "/albums/new", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		albums, err := service.NewAlbums(r.Context())
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, albums)
	}))

	router.Method(http.MethodGet, "/albums/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		album, err := service.Album(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, album)
	}))

	router.Method(http.MethodGet, "/albums/{id}/tracks", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		id := chi.URLParam(r, "id")
		if _, err := service.Album(r.Context(), id); err != nil {
			return err
		}
		tracks, err := service.AlbumTracks(r.Context(), id)
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, tracks)
	}))

	router.Method(http.MethodGet, "/artists", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		artists, err := service.Artists(r.Context())
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, artists)
	}))

	router.Method(http.MethodGet, "/artists/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		artist, err := service.Artist(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, artist)
	}))

	router.Method(http.MethodGet, "/tracks", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		tracks, err := service.Tracks(r.Context())
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, tracks)
	}))

	router.Method(http.MethodGet, "/tracks/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		track, err := service.Track(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, track)
	}))

	router.Method(http.MethodGet, "/browse/children/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		entries, err := service.Children(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, entries)
	}))

	router.Method(http.MethodGet, "/browse/metadata/{id}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		entry, err := service.Metadata(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, entry)
	}))

	// The path is a slash-separated sequence of container titles, so it is
	// captured with a wildcard rather than a single URL param.
	router.Method(http.MethodGet, "/browse/path/*", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if service == nil {
			return errNoMediaServer()
		}
		rawPath := chi.URLParam(r, "*")
		decoded, err := url.PathUnescape(rawPath)
		if err != nil {
			return apperrors.NewInputError("invalid browse path: "+rawPath, nil)
		}

		id, err := service.ResolvePath(r.Context(), decoded)
		if err != nil {
			return err
		}
		entries, err := service.Children(r.Context(), id)
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, entries)
	}))
}

func errNoMediaServer() error {
	return apperrors.NewNotFoundError("no media server is available", nil)
}
