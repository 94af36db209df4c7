package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LyricsChunk is one section of lyrics: an optional header (verse, chorus)
// and its lines.
type LyricsChunk struct {
	Header string   `json:"header,omitempty"`
	Body   []string `json:"body"`
}

// Lyrics is the cached lyrics record for one track.
type Lyrics struct {
	MediaID string        `json:"mediaId"`
	Artist  string        `json:"artist,omitempty"`
	Title   string        `json:"title,omitempty"`
	Chunks  []LyricsChunk `json:"chunks"`
	IsValid bool          `json:"isValid"`
}

// LyricsProvider fetches lyrics from an external service. Failures degrade to
// an empty result; they never fail the request.
type LyricsProvider interface {
	Lyrics(ctx context.Context, artist, title string) ([]LyricsChunk, error)
}

// GeniusProvider resolves lyrics through the Genius API.
type GeniusProvider struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewGeniusProvider creates a Genius-backed lyrics provider.
func NewGeniusProvider(token string) *GeniusProvider {
	return &GeniusProvider{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.genius.com",
	}
}

type geniusSearchResponse struct {
	Response struct {
		Hits []struct {
			Result struct {
				ID        int    `json:"id"`
				FullTitle string `json:"full_title"`
				URL       string `json:"url"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

type geniusSongResponse struct {
	Response struct {
		Song struct {
			Description struct {
				Plain string `json:"plain"`
			} `json:"description"`
		} `json:"song"`
	} `json:"response"`
}

// Lyrics searches Genius for the track and returns the matched song's
// sections. The Genius API does not serve raw lyric text, so the first chunk
// links to the lyrics page and the rest carry the song description.
func (p *GeniusProvider) Lyrics(ctx context.Context, artist, title string) ([]LyricsChunk, error) {
	var search geniusSearchResponse
	query := url.Values{}
	query.Set("q", strings.TrimSpace(artist+" "+title))
	if err := p.get(ctx, "/search?"+query.Encode(), &search); err != nil {
		return nil, err
	}
	if len(search.Response.Hits) == 0 {
		return nil, nil
	}
	hit := search.Response.Hits[0].Result

	chunks := []LyricsChunk{{
		Header: hit.FullTitle,
		Body:   []string{hit.URL},
	}}

	var song geniusSongResponse
	if err := p.get(ctx, fmt.Sprintf("/songs/%d?text_format=plain", hit.ID), &song); err != nil {
		return chunks, nil
	}
	for _, paragraph := range strings.Split(song.Response.Song.Description.Plain, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" || paragraph == "?" {
			continue
		}
		chunks = append(chunks, LyricsChunk{Body: strings.Split(paragraph, "\n")})
	}
	return chunks, nil
}

func (p *GeniusProvider) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("genius returned http %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

// lyricsFor serves lyrics for one track, from the cache when present.
func (s *Service) lyricsFor(ctx context.Context, mediaID, artist, title string) Lyrics {
	if cached, ok := s.cachedLyrics(mediaID); ok {
		return cached
	}

	lyrics := Lyrics{MediaID: mediaID, Artist: artist, Title: title, Chunks: []LyricsChunk{}}
	if s.lyrics != nil {
		chunks, err := s.lyrics.Lyrics(ctx, artist, title)
		if err != nil {
			log.Printf("EXTERNAL: lyrics lookup for %q / %q failed: %v", artist, title, err)
		} else if chunks != nil {
			lyrics.Chunks = chunks
			lyrics.IsValid = true
		}
	}

	s.storeLyrics(lyrics)
	return lyrics
}

func (s *Service) cachedLyrics(mediaID string) (Lyrics, bool) {
	row := s.pair.Reader().QueryRow(
		`SELECT artist, title, chunks, is_valid FROM lyrics WHERE media_id = ?`, mediaID)

	lyrics := Lyrics{MediaID: mediaID}
	var chunks string
	var isValid int
	if err := row.Scan(&lyrics.Artist, &lyrics.Title, &chunks, &isValid); err != nil {
		return Lyrics{}, false
	}
	if err := json.Unmarshal([]byte(chunks), &lyrics.Chunks); err != nil {
		return Lyrics{}, false
	}
	lyrics.IsValid = isValid != 0
	return lyrics, true
}

func (s *Service) storeLyrics(lyrics Lyrics) {
	chunks, err := json.Marshal(lyrics.Chunks)
	if err != nil {
		return
	}
	isValid := 0
	if lyrics.IsValid {
		isValid = 1
	}
	if _, err := s.pair.Writer().Exec(
		`INSERT INTO lyrics (media_id, artist, title, chunks, is_valid) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(media_id) DO UPDATE SET
		   artist = excluded.artist, title = excluded.title,
		   chunks = excluded.chunks, is_valid = excluded.is_valid`,
		lyrics.MediaID, lyrics.Artist, lyrics.Title, string(chunks), isValid); err != nil {
		log.Printf("EXTERNAL: lyrics cache write failed: %v", err)
	}
}
