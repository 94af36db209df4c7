package mediaserver

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/vibin-audio/vibin-go/internal/model"
)

// idToken matches the id-shaped tokens Asset UPnP embeds in stream
// filenames, e.g. "co12" or "c-1043".
var idToken = regexp.MustCompile(`[A-Za-z]-?[A-Za-z0-9]+`)

// MediaIDs are the media-server ids recovered from a stream URL.
type MediaIDs struct {
	AlbumID  string
	TrackID  string
	ArtistID string
}

// IDsFromFilename extracts id-shaped tokens from a stream URL's filename
// stem and classifies each against the cached album/artist/track id sets.
// When a track id is found without an album id, the album is derived from
// the track record.
func (s *Service) IDsFromFilename(ctx context.Context, rawURL string) MediaIDs {
	var ids MediaIDs

	stem := filenameStem(rawURL)
	if stem == "" {
		return ids
	}

	albums, albumsErr := s.Albums(ctx)
	tracks, tracksErr := s.Tracks(ctx)
	artists, artistsErr := s.Artists(ctx)

	for _, token := range idToken.FindAllString(stem, -1) {
		switch {
		case ids.AlbumID == "" && albumsErr == nil && containsAlbumID(albums, token):
			ids.AlbumID = token
		case ids.TrackID == "" && tracksErr == nil && containsTrackID(tracks, token):
			ids.TrackID = token
		case ids.ArtistID == "" && artistsErr == nil && containsArtistID(artists, token):
			ids.ArtistID = token
		}
	}

	if ids.TrackID != "" && ids.AlbumID == "" {
		if track, err := s.Track(ctx, ids.TrackID); err == nil {
			ids.AlbumID = track.AlbumID
		}
	}
	return ids
}

// filenameStem returns the final path segment of a URL (or bare path)
// without its extension.
func filenameStem(rawURL string) string {
	candidate := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		candidate = parsed.Path
	}
	base := path.Base(candidate)
	if base == "." || base == "/" {
		return ""
	}
	if dot := strings.LastIndexByte(base, '.'); dot > 0 {
		base = base[:dot]
	}
	return base
}

func containsAlbumID(albums []model.Album, id string) bool {
	for _, album := range albums {
		if album.ID == id {
			return true
		}
	}
	return false
}

func containsTrackID(tracks []model.Track, id string) bool {
	for _, track := range tracks {
		if track.ID == id {
			return true
		}
	}
	return false
}

func containsArtistID(artists []model.Artist, id string) bool {
	for _, artist := range artists {
		if artist.ID == id {
			return true
		}
	}
	return false
}
