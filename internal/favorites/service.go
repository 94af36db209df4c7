package favorites

import (
	"context"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

const (
	// TypeAlbum and TypeTrack are the two favoritable media kinds.
	TypeAlbum = "album"
	TypeTrack = "track"
)

// MediaResolver is the slice of the media-server adapter used to hydrate
// favorites. It is nil when no media server was resolved.
type MediaResolver interface {
	Album(ctx context.Context, id string) (model.Album, error)
	Track(ctx context.Context, id string) (model.Track, error)
}

// Service layers media hydration over the favorites repository. Favorites
// whose media id no longer resolves are omitted from reads; the stored record
// is kept, so they reappear if the media does.
type Service struct {
	repo    *Repository
	media   MediaResolver
	publish model.PublishFunc
}

// NewService creates the favorites service. media may be nil.
func NewService(repo *Repository, media MediaResolver, publish model.PublishFunc) *Service {
	return &Service{repo: repo, media: media, publish: publish}
}

// Favorites returns every favorite that still resolves against the media
// server, hydrated with its album or track record.
func (s *Service) Favorites(ctx context.Context) ([]model.Favorite, error) {
	return s.list(ctx, "")
}

// FavoriteAlbums returns the hydrated album favorites.
func (s *Service) FavoriteAlbums(ctx context.Context) ([]model.Favorite, error) {
	return s.list(ctx, TypeAlbum)
}

// FavoriteTracks returns the hydrated track favorites.
func (s *Service) FavoriteTracks(ctx context.Context) ([]model.Favorite, error) {
	return s.list(ctx, TypeTrack)
}

func (s *Service) list(ctx context.Context, filterType string) ([]model.Favorite, error) {
	stored, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	favorites := make([]model.Favorite, 0, len(stored))
	for _, favorite := range stored {
		if filterType != "" && favorite.Type != filterType {
			continue
		}
		media, ok := s.hydrate(ctx, favorite)
		if !ok {
			continue
		}
		favorite.Media = media
		favorites = append(favorites, favorite)
	}
	return favorites, nil
}

// hydrate resolves a favorite's media record. A media id that no longer
// resolves drops the favorite from the view without deleting it.
func (s *Service) hydrate(ctx context.Context, favorite model.Favorite) (any, bool) {
	if s.media == nil {
		return nil, false
	}
	switch favorite.Type {
	case TypeAlbum:
		album, err := s.media.Album(ctx, favorite.MediaID)
		if err != nil {
			return nil, false
		}
		return album, true
	case TypeTrack:
		track, err := s.media.Track(ctx, favorite.MediaID)
		if err != nil {
			return nil, false
		}
		return track, true
	}
	return nil, false
}

// Add stores a favorite. The media id must resolve to the declared type.
func (s *Service) Add(ctx context.Context, favoriteType, mediaID string) error {
	switch favoriteType {
	case TypeAlbum, TypeTrack:
	default:
		return apperrors.NewInputError("favorite type must be album or track: "+favoriteType, nil)
	}

	if s.media != nil {
		if _, ok := s.hydrate(ctx, model.Favorite{Type: favoriteType, MediaID: mediaID}); !ok {
			return apperrors.NewNotFoundResource(favoriteType, mediaID)
		}
	}

	if err := s.repo.Upsert(favoriteType, mediaID); err != nil {
		return err
	}
	s.emit(ctx)
	return nil
}

// Remove deletes a favorite by media id.
func (s *Service) Remove(ctx context.Context, mediaID string) error {
	if err := s.repo.Delete(mediaID); err != nil {
		return err
	}
	s.emit(ctx)
	return nil
}

func (s *Service) emit(ctx context.Context) {
	favorites, err := s.Favorites(ctx)
	if err != nil {
		return
	}
	s.publish(model.UpdateFavorites, favorites)
}
