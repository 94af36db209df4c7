package external

import (
	"net/http"
	"time"

	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/mediaserver"
)

// Service answers per-track enrichment requests: lyrics, external links, and
// waveform renderings. Providers without an access token are simply not
// registered; their results degrade to empty.
type Service struct {
	pair       *db.DBPair
	media      *mediaserver.Service
	lyrics     LyricsProvider
	links      []LinksProvider
	httpClient *http.Client
}

// NewService creates the enrichment service. media may be nil; lyrics may be
// nil; links may be empty.
func NewService(pair *db.DBPair, media *mediaserver.Service, lyrics LyricsProvider, links []LinksProvider) *Service {
	return &Service{
		pair:       pair,
		media:      media,
		lyrics:     lyrics,
		links:      links,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}
