package mediaserver

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/discovery"
	"github.com/vibin-audio/vibin-go/internal/model"
	"github.com/vibin-audio/vibin-go/internal/upnp/soap"
)

// browseConcurrency caps in-flight Browse calls. The device develops long
// tail latencies above two concurrent requests.
const browseConcurrency = 2

// metadataTTL bounds how long a BrowseMetadata result is served from cache.
const metadataTTL = 5 * time.Second

// Paths are the configured content-directory navigation roots, each a
// slash-separated sequence of container titles.
type Paths struct {
	AllAlbums  string
	NewAlbums  string
	AllArtists string
}

// Service is the media-server adapter: it browses a UPnP ContentDirectory,
// caches albums/artists/tracks, and answers by-ID lookups. Caches are lazy
// and cleared only by an explicit ClearCaches.
type Service struct {
	device *discovery.Device
	soap   *soap.Client
	cd     discovery.Service
	paths  Paths

	sem      chan struct{}
	inFlight int

	mu        sync.Mutex
	albums    []model.Album
	newAlbums []model.Album
	artists   []model.Artist
	tracks    []model.Track
	haveAlbums, haveNewAlbums, haveArtists, haveTracks bool

	metaMu    sync.Mutex
	metaCache map[string]metaEntry
}

type metaEntry struct {
	entry   model.BrowseEntry
	didl    string
	expires time.Time
}

// NewService creates the adapter for a resolved media server device.
func NewService(device *discovery.Device, soapClient *soap.Client, paths Paths) (*Service, error) {
	cd, ok := device.Service("ContentDirectory")
	if !ok {
		return nil, apperrors.NewDeviceError("media server exposes no ContentDirectory service", nil)
	}
	return &Service{
		device:    device,
		soap:      soapClient,
		cd:        cd,
		paths:     paths,
		sem:       make(chan struct{}, browseConcurrency),
		metaCache: make(map[string]metaEntry),
	}, nil
}

// Name returns the device's friendly name.
func (s *Service) Name() string {
	return s.device.FriendlyName
}

// Device returns the underlying device handle.
func (s *Service) Device() *discovery.Device {
	return s.device
}

// State returns the normalized media-server state.
func (s *Service) State() model.MediaServerState {
	return model.MediaServerState{Name: s.device.FriendlyName}
}

// Children lists the direct children of a container.
func (s *Service) Children(ctx context.Context, parentID string) ([]model.BrowseEntry, error) {
	payload, err := s.browse(ctx, parentID, "BrowseDirectChildren")
	if err != nil {
		return nil, err
	}
	return parseDIDL(payload)
}

// Metadata returns the typed record for one object, served from a short TTL
// cache. Expired entries are swept on each miss.
func (s *Service) Metadata(ctx context.Context, id string) (model.BrowseEntry, error) {
	entry, _, err := s.metadataWithDIDL(ctx, id)
	return entry, err
}

// DIDL returns the raw DIDL-Lite fragment describing one object, as the
// streamer expects it for enqueueing.
func (s *Service) DIDL(ctx context.Context, id string) (string, error) {
	_, didl, err := s.metadataWithDIDL(ctx, id)
	return didl, err
}

func (s *Service) metadataWithDIDL(ctx context.Context, id string) (model.BrowseEntry, string, error) {
	now := time.Now()

	s.metaMu.Lock()
	if cached, ok := s.metaCache[id]; ok && cached.expires.After(now) {
		s.metaMu.Unlock()
		return cached.entry, cached.didl, nil
	}
	// Miss: sweep anything expired before going to the device.
	for key, cached := range s.metaCache {
		if !cached.expires.After(now) {
			delete(s.metaCache, key)
		}
	}
	s.metaMu.Unlock()

	payload, err := s.browse(ctx, id, "BrowseMetadata")
	if err != nil {
		return model.BrowseEntry{}, "", err
	}

	entries, err := parseDIDL(payload)
	if err != nil {
		return model.BrowseEntry{}, "", err
	}
	if len(entries) == 0 {
		return model.BrowseEntry{}, "", apperrors.NewNotFoundResource("media", id)
	}

	result := metaEntry{
		entry:   entries[0],
		didl:    string(payload),
		expires: time.Now().Add(metadataTTL),
	}
	s.metaMu.Lock()
	s.metaCache[id] = result
	s.metaMu.Unlock()

	return result.entry, result.didl, nil
}

// browse issues one ContentDirectory Browse, gated by the concurrency
// semaphore, and returns the unescaped DIDL-Lite Result payload.
func (s *Service) browse(ctx context.Context, objectID, flag string) ([]byte, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, apperrors.NewMediaServerError("browse canceled: "+ctx.Err().Error(), nil)
	}
	s.mu.Lock()
	s.inFlight++
	inFlight := s.inFlight
	s.mu.Unlock()

	start := time.Now()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
		<-s.sem
		log.Printf("CD: Browse(%s, %s) in_flight=%d elapsed=%s", flag, objectID, inFlight, time.Since(start).Round(time.Millisecond))
	}()

	payload, err := s.soap.Invoke(ctx, s.cd.ControlURL, s.cd.Type, "Browse", map[string]string{
		"ObjectID":       objectID,
		"BrowseFlag":     flag,
		"Filter":         "*",
		"StartingIndex":  "0",
		"RequestedCount": "0",
		"SortCriteria":   "",
	})
	if err != nil {
		return nil, mapBrowseError(objectID, err)
	}

	result, ok := soap.ExtractValue(payload, "Result")
	if !ok {
		return nil, apperrors.NewMediaServerError("browse response carried no Result", map[string]any{"object_id": objectID})
	}
	return []byte(result), nil
}

// mapBrowseError turns transport-level failures into the adapter's error
// taxonomy. UPnP 701 (no such object) is a NotFound.
func mapBrowseError(objectID string, err error) error {
	var soapErr *soap.SoapError
	if errors.As(err, &soapErr) {
		if soapErr.Code != nil && *soapErr.Code == 701 {
			return apperrors.NewNotFoundResource("media", objectID)
		}
		return apperrors.NewMediaServerError(soapErr.Error(), map[string]any{"object_id": objectID})
	}
	return apperrors.NewMediaServerError(err.Error(), map[string]any{"object_id": objectID})
}

// ResolvePath walks a slash-separated sequence of container titles from the
// root and returns the final container's id.
func (s *Service) ResolvePath(ctx context.Context, path string) (string, error) {
	currentID := "0"
	for _, segment := range strings.Split(path, "/") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		entries, err := s.Children(ctx, currentID)
		if err != nil {
			return "", err
		}

		found := false
		for _, entry := range entries {
			title, id := entryTitleID(entry)
			if strings.EqualFold(title, segment) {
				currentID = id
				found = true
				break
			}
		}
		if !found {
			return "", apperrors.NewNotFoundError("path segment not found: "+segment, map[string]any{"path": path})
		}
	}
	return currentID, nil
}

func entryTitleID(entry model.BrowseEntry) (string, string) {
	switch {
	case entry.Folder != nil:
		return entry.Folder.Title, entry.Folder.ID
	case entry.Album != nil:
		return entry.Album.Title, entry.Album.ID
	case entry.Artist != nil:
		return entry.Artist.Title, entry.Artist.ID
	case entry.Track != nil:
		return entry.Track.Title, entry.Track.ID
	}
	return "", ""
}

// ClearCaches discards every collection cache and the metadata TTL cache.
// Called from the REST surface; caches repopulate lazily.
func (s *Service) ClearCaches() {
	s.mu.Lock()
	s.albums, s.newAlbums, s.artists, s.tracks = nil, nil, nil, nil
	s.haveAlbums, s.haveNewAlbums, s.haveArtists, s.haveTracks = false, false, false, false
	s.mu.Unlock()

	s.metaMu.Lock()
	s.metaCache = make(map[string]metaEntry)
	s.metaMu.Unlock()

	log.Printf("CD: media caches cleared")
}
