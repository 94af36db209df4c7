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

// Link is one external resource for a track or album.
type Link struct {
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TrackLinks groups a track's external links by service.
type TrackLinks map[string][]Link

// LinksProvider resolves external links from one service. Failures degrade to
// an empty result.
type LinksProvider interface {
	ServiceName() string
	Links(ctx context.Context, artist, album, title string) ([]Link, error)
}

// DiscogsProvider resolves release links through the Discogs search API.
type DiscogsProvider struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewDiscogsProvider creates a Discogs-backed links provider.
func NewDiscogsProvider(token string) *DiscogsProvider {
	return &DiscogsProvider{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.discogs.com",
	}
}

// ServiceName names the provider in the grouped links payload.
func (p *DiscogsProvider) ServiceName() string {
	return "Discogs"
}

type discogsSearchResponse struct {
	Results []struct {
		Title string `json:"title"`
		Type  string `json:"type"`
		URI   string `json:"uri"`
	} `json:"results"`
}

// Links searches Discogs for the release and returns up to three matches.
func (p *DiscogsProvider) Links(ctx context.Context, artist, album, _ string) ([]Link, error) {
	query := url.Values{}
	query.Set("q", strings.TrimSpace(artist+" "+album))
	query.Set("type", "release")
	query.Set("token", p.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/database/search?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("discogs returned http %d", resp.StatusCode)
	}

	var parsed discogsSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	links := make([]Link, 0, 3)
	for _, result := range parsed.Results {
		if result.URI == "" {
			continue
		}
		links = append(links, Link{
			Type: result.Type,
			Name: result.Title,
			URL:  "https://www.discogs.com" + result.URI,
		})
		if len(links) == 3 {
			break
		}
	}
	return links, nil
}

// staticLinks builds the always-available lookup links that need no API.
func staticLinks(artist, album string) TrackLinks {
	links := TrackLinks{}
	if artist != "" {
		links["Wikipedia"] = []Link{{
			Type: "artist",
			Name: artist,
			URL:  "https://en.wikipedia.org/wiki/Special:Search?search=" + url.QueryEscape(artist),
		}}
		links["RateYourMusic"] = []Link{{
			Type: "artist",
			Name: artist,
			URL:  "https://rateyourmusic.com/search?searchtype=a&searchterm=" + url.QueryEscape(artist),
		}}
	}
	if artist != "" && album != "" {
		links["AllMusic"] = []Link{{
			Type: "album",
			Name: album,
			URL:  "https://www.allmusic.com/search/albums/" + url.QueryEscape(artist+" "+album),
		}}
	}
	return links
}

// linksFor serves grouped links for one track, from the cache when present.
func (s *Service) linksFor(ctx context.Context, mediaID, artist, album, title string) TrackLinks {
	if cached, ok := s.cachedLinks(mediaID); ok {
		return cached
	}

	links := staticLinks(artist, album)
	for _, provider := range s.links {
		resolved, err := provider.Links(ctx, artist, album, title)
		if err != nil {
			log.Printf("EXTERNAL: %s links lookup failed: %v", provider.ServiceName(), err)
			continue
		}
		if len(resolved) > 0 {
			links[provider.ServiceName()] = resolved
		}
	}

	s.storeLinks(mediaID, links)
	return links
}

func (s *Service) cachedLinks(mediaID string) (TrackLinks, bool) {
	row := s.pair.Reader().QueryRow(`SELECT payload FROM links WHERE media_id = ?`, mediaID)

	var payload string
	if err := row.Scan(&payload); err != nil {
		return nil, false
	}
	var links TrackLinks
	if err := json.Unmarshal([]byte(payload), &links); err != nil {
		return nil, false
	}
	return links, true
}

func (s *Service) storeLinks(mediaID string, links TrackLinks) {
	payload, err := json.Marshal(links)
	if err != nil {
		return
	}
	if _, err := s.pair.Writer().Exec(
		`INSERT INTO links (media_id, payload) VALUES (?, ?)
		 ON CONFLICT(media_id) DO UPDATE SET payload = excluded.payload`,
		mediaID, string(payload)); err != nil {
		log.Printf("EXTERNAL: links cache write failed: %v", err)
	}
}
