package mediaserver

import (
	"context"
	"strings"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// Albums returns every album under the configured all-albums path. Lazy;
// cached until ClearCaches.
func (s *Service) Albums(ctx context.Context) ([]model.Album, error) {
	s.mu.Lock()
	if s.haveAlbums {
		albums := s.albums
		s.mu.Unlock()
		return albums, nil
	}
	s.mu.Unlock()

	albums, err := s.fetchAlbums(ctx, s.paths.AllAlbums)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.albums = albums
	s.haveAlbums = true
	s.mu.Unlock()
	return albums, nil
}

// NewAlbums returns the new-albums listing. The device mints different ids
// for these entries than for the all-albums listing, so each entry is
// rebound to its all-albums equivalent where one matches.
func (s *Service) NewAlbums(ctx context.Context) ([]model.Album, error) {
	s.mu.Lock()
	if s.haveNewAlbums {
		albums := s.newAlbums
		s.mu.Unlock()
		return albums, nil
	}
	s.mu.Unlock()

	fresh, err := s.fetchAlbums(ctx, s.paths.NewAlbums)
	if err != nil {
		return nil, err
	}
	all, err := s.Albums(ctx)
	if err != nil {
		return nil, err
	}

	rebound := rebindAlbums(fresh, all)

	s.mu.Lock()
	s.newAlbums = rebound
	s.haveNewAlbums = true
	s.mu.Unlock()
	return rebound, nil
}

// Artists returns every artist under the configured all-artists path.
func (s *Service) Artists(ctx context.Context) ([]model.Artist, error) {
	s.mu.Lock()
	if s.haveArtists {
		artists := s.artists
		s.mu.Unlock()
		return artists, nil
	}
	s.mu.Unlock()

	rootID, err := s.ResolvePath(ctx, s.paths.AllArtists)
	if err != nil {
		return nil, err
	}
	entries, err := s.Children(ctx, rootID)
	if err != nil {
		return nil, err
	}

	artists := make([]model.Artist, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.Artist != nil:
			artists = append(artists, *entry.Artist)
		case entry.Folder != nil:
			// Some servers present artists as plain containers.
			artists = append(artists, model.Artist{
				ID:          entry.Folder.ID,
				ParentID:    entry.Folder.ParentID,
				Title:       entry.Folder.Title,
				AlbumArtURI: entry.Folder.AlbumArtURI,
			})
		}
	}

	s.mu.Lock()
	s.artists = artists
	s.haveArtists = true
	s.mu.Unlock()
	return artists, nil
}

// Tracks returns every track, derived by iterating each album's children so
// AlbumID is set correctly on every record. Expensive on first call; cached
// until ClearCaches.
func (s *Service) Tracks(ctx context.Context) ([]model.Track, error) {
	s.mu.Lock()
	if s.haveTracks {
		tracks := s.tracks
		s.mu.Unlock()
		return tracks, nil
	}
	s.mu.Unlock()

	albums, err := s.Albums(ctx)
	if err != nil {
		return nil, err
	}

	var tracks []model.Track
	for _, album := range albums {
		albumTracks, err := s.AlbumTracks(ctx, album.ID)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, albumTracks...)
	}

	s.mu.Lock()
	s.tracks = tracks
	s.haveTracks = true
	s.mu.Unlock()
	return tracks, nil
}

// AlbumTracks lists one album's tracks with AlbumID filled in.
func (s *Service) AlbumTracks(ctx context.Context, albumID string) ([]model.Track, error) {
	entries, err := s.Children(ctx, albumID)
	if err != nil {
		return nil, err
	}

	tracks := make([]model.Track, 0, len(entries))
	for _, entry := range entries {
		if entry.Track == nil {
			continue
		}
		track := *entry.Track
		track.AlbumID = albumID
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// Album looks up a cached album by id.
func (s *Service) Album(ctx context.Context, id string) (model.Album, error) {
	albums, err := s.Albums(ctx)
	if err != nil {
		return model.Album{}, err
	}
	for _, album := range albums {
		if album.ID == id {
			return album, nil
		}
	}
	return model.Album{}, apperrors.NewNotFoundResource("album", id)
}

// Artist looks up a cached artist by id.
func (s *Service) Artist(ctx context.Context, id string) (model.Artist, error) {
	artists, err := s.Artists(ctx)
	if err != nil {
		return model.Artist{}, err
	}
	for _, artist := range artists {
		if artist.ID == id {
			return artist, nil
		}
	}
	return model.Artist{}, apperrors.NewNotFoundResource("artist", id)
}

// Track looks up a cached track by id.
func (s *Service) Track(ctx context.Context, id string) (model.Track, error) {
	tracks, err := s.Tracks(ctx)
	if err != nil {
		return model.Track{}, err
	}
	for _, track := range tracks {
		if track.ID == id {
			return track, nil
		}
	}
	return model.Track{}, apperrors.NewNotFoundResource("track", id)
}

// AlbumIDByTitleArtist finds an album by title and artist; empty when no
// match. Used to enrich streamer queue items with media ids.
func (s *Service) AlbumIDByTitleArtist(ctx context.Context, title, artist string) string {
	albums, err := s.Albums(ctx)
	if err != nil {
		return ""
	}
	for _, album := range albums {
		if strings.EqualFold(album.Title, title) && strings.EqualFold(albumArtist(album), artist) {
			return album.ID
		}
	}
	return ""
}

// TrackIDForAlbum finds a track within an album by track number, falling
// back to title matching; empty when no match.
func (s *Service) TrackIDForAlbum(ctx context.Context, albumID string, trackNumber int, title string) string {
	tracks, err := s.AlbumTracks(ctx, albumID)
	if err != nil {
		return ""
	}
	if trackNumber > 0 {
		for _, track := range tracks {
			if track.OriginalTrackNumber == trackNumber {
				return track.ID
			}
		}
	}
	for _, track := range tracks {
		if strings.EqualFold(track.Title, title) {
			return track.ID
		}
	}
	return ""
}

func (s *Service) fetchAlbums(ctx context.Context, path string) ([]model.Album, error) {
	rootID, err := s.ResolvePath(ctx, path)
	if err != nil {
		return nil, err
	}
	entries, err := s.Children(ctx, rootID)
	if err != nil {
		return nil, err
	}

	albums := make([]model.Album, 0, len(entries))
	for _, entry := range entries {
		if entry.Album != nil {
			albums = append(albums, *entry.Album)
		}
	}
	return albums, nil
}

// rebindAlbums replaces each new-albums entry with its all-albums
// equivalent, matched on (title, creator, date, artist, genre). Unmatched
// entries are kept as-is.
func rebindAlbums(fresh, all []model.Album) []model.Album {
	rebound := make([]model.Album, 0, len(fresh))
	for _, candidate := range fresh {
		match := candidate
		for _, album := range all {
			if album.Title == candidate.Title &&
				album.Creator == candidate.Creator &&
				album.Date == candidate.Date &&
				album.Artist == candidate.Artist &&
				album.Genre == candidate.Genre {
				match = album
				break
			}
		}
		rebound = append(rebound, match)
	}
	return rebound
}

func albumArtist(album model.Album) string {
	if album.Artist != "" {
		return album.Artist
	}
	return album.Creator
}
