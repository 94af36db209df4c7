package mediaserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/discovery"
	"github.com/vibin-audio/vibin-go/internal/upnp/soap"
)

var (
	objectIDPattern = regexp.MustCompile(`<ObjectID>([^<]*)</ObjectID>`)
	flagPattern     = regexp.MustCompile(`<BrowseFlag>([^<]*)</BrowseFlag>`)
)

// fakeContentDirectory serves canned DIDL-Lite per object id, tracking call
// counts and peak concurrency.
type fakeContentDirectory struct {
	server *httptest.Server

	mu       sync.Mutex
	children map[string]string
	metadata map[string]string
	faults   map[string]int

	delay time.Duration

	calls          atomic.Int32
	concurrent     atomic.Int32
	peakConcurrent atomic.Int32
}

func newFakeContentDirectory(t *testing.T) *fakeContentDirectory {
	t.Helper()
	cd := &fakeContentDirectory{
		children: map[string]string{},
		metadata: map[string]string{},
		faults:   map[string]int{},
	}
	cd.server = httptest.NewServer(http.HandlerFunc(cd.handle))
	t.Cleanup(cd.server.Close)
	return cd
}

func (cd *fakeContentDirectory) handle(w http.ResponseWriter, r *http.Request) {
	current := cd.concurrent.Add(1)
	defer cd.concurrent.Add(-1)
	for {
		peak := cd.peakConcurrent.Load()
		if current <= peak || cd.peakConcurrent.CompareAndSwap(peak, current) {
			break
		}
	}
	cd.calls.Add(1)

	if cd.delay > 0 {
		time.Sleep(cd.delay)
	}

	body, _ := io.ReadAll(r.Body)
	objectID := submatch(objectIDPattern, string(body))
	flag := submatch(flagPattern, string(body))

	cd.mu.Lock()
	faultCode, faulted := cd.faults[objectID]
	var didl string
	var known bool
	if flag == "BrowseMetadata" {
		didl, known = cd.metadata[objectID]
	} else {
		didl, known = cd.children[objectID]
	}
	cd.mu.Unlock()

	if faulted {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault><detail><UPnPError><errorCode>%d</errorCode><errorDescription>No such object</errorDescription></UPnPError></detail></s:Fault></s:Body></s:Envelope>`, faultCode)
		return
	}
	if !known {
		didl = `<DIDL-Lite></DIDL-Lite>`
	}

	escaper := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	fmt.Fprintf(w, `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:BrowseResponse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1"><Result>%s</Result><NumberReturned>1</NumberReturned><TotalMatches>1</TotalMatches><UpdateID>1</UpdateID></u:BrowseResponse></s:Body></s:Envelope>`, escaper.Replace(didl))
}

func submatch(pattern *regexp.Regexp, body string) string {
	match := pattern.FindStringSubmatch(body)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

func (cd *fakeContentDirectory) service(t *testing.T, paths Paths) *Service {
	t.Helper()
	device := &discovery.Device{
		UDN:          "uuid:test-media-server",
		FriendlyName: "Asset Test Server",
		ModelName:    "Asset UPnP",
		Services: map[string]discovery.Service{
			"ContentDirectory": {
				ID:         "urn:upnp-org:serviceId:ContentDirectory",
				Type:       "urn:schemas-upnp-org:service:ContentDirectory:1",
				ControlURL: cd.server.URL + "/control",
			},
		},
	}
	service, err := NewService(device, soap.NewClient(5*time.Second), paths)
	require.NoError(t, err)
	return service
}

func albumDIDL(id, title, artist string) string {
	return fmt.Sprintf(`<container id=%q parentID="alb-root"><dc:title>%s</dc:title><upnp:class>object.container.album.musicAlbum</upnp:class><dc:creator>%s</dc:creator><dc:date>2001-01-01</dc:date><upnp:artist>%s</upnp:artist><upnp:genre>Rock</upnp:genre></container>`, id, title, artist, artist)
}

func trackDIDL(id, title string, trackNumber int) string {
	return fmt.Sprintf(`<item id=%q parentID="co02"><dc:title>%s</dc:title><upnp:class>object.item.audioItem.musicTrack</upnp:class><upnp:originalTrackNumber>%d</upnp:originalTrackNumber><res duration="0:03:45.000">http://example.com/stream/%s.flac</res></item>`, id, title, trackNumber, id)
}

func libraryFixture(t *testing.T) (*fakeContentDirectory, *Service) {
	t.Helper()
	cd := newFakeContentDirectory(t)
	cd.children["0"] = `<DIDL-Lite>` +
		`<container id="alb-root" parentID="0"><dc:title>Albums</dc:title><upnp:class>object.container</upnp:class></container>` +
		`<container id="new-root" parentID="0"><dc:title>New Albums</dc:title><upnp:class>object.container</upnp:class></container>` +
		`<container id="art-root" parentID="0"><dc:title>Artists</dc:title><upnp:class>object.container</upnp:class></container>` +
		`</DIDL-Lite>`
	cd.children["alb-root"] = `<DIDL-Lite>` +
		albumDIDL("co02", "Abbey Road", "The Beatles") +
		albumDIDL("co03", "Blue", "Joni Mitchell") +
		`</DIDL-Lite>`
	cd.children["co02"] = `<DIDL-Lite>` +
		trackDIDL("c01", "Come Together", 1) +
		trackDIDL("c05", "Something", 2) +
		`</DIDL-Lite>`
	cd.children["co03"] = `<DIDL-Lite>` + trackDIDL("c07", "All I Want", 1) + `</DIDL-Lite>`
	cd.children["new-root"] = `<DIDL-Lite>` + albumDIDL("co99", "Abbey Road", "The Beatles") + `</DIDL-Lite>`
	cd.children["art-root"] = `<DIDL-Lite>` +
		`<container id="a01" parentID="art-root"><dc:title>The Beatles</dc:title><upnp:class>object.container.person.musicArtist</upnp:class></container>` +
		`</DIDL-Lite>`

	service := cd.service(t, Paths{AllAlbums: "Albums", NewAlbums: "New Albums", AllArtists: "Artists"})
	return cd, service
}

func TestChildrenClassifiesEntries(t *testing.T) {
	_, service := libraryFixture(t)
	ctx := context.Background()

	entries, err := service.Children(ctx, "co02")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Track)
	require.Equal(t, "Come Together", entries[0].Track.Title)
	require.Equal(t, 1, entries[0].Track.OriginalTrackNumber)
	require.Equal(t, 225, entries[0].Track.Duration)
	require.Equal(t, "http://example.com/stream/c01.flac", entries[0].Track.AudioURL)
}

func TestResolvePathMatchesTitlesCaseInsensitively(t *testing.T) {
	_, service := libraryFixture(t)

	id, err := service.ResolvePath(context.Background(), "albums")
	require.NoError(t, err)
	require.Equal(t, "alb-root", id)

	_, err = service.ResolvePath(context.Background(), "No Such Folder")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeNotFound, appErr.Code)
}

func TestAlbumsAndTracksAreCached(t *testing.T) {
	cd, service := libraryFixture(t)
	ctx := context.Background()

	albums, err := service.Albums(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 2)

	tracks, err := service.Tracks(ctx)
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	for _, track := range tracks {
		require.NotEmpty(t, track.AlbumID)
	}

	before := cd.calls.Load()
	_, err = service.Albums(ctx)
	require.NoError(t, err)
	_, err = service.Tracks(ctx)
	require.NoError(t, err)
	require.Equal(t, before, cd.calls.Load(), "cached reads must not hit the device")
}

func TestNewAlbumsRebindsToAllAlbumsIDs(t *testing.T) {
	_, service := libraryFixture(t)

	albums, err := service.NewAlbums(context.Background())
	require.NoError(t, err)
	require.Len(t, albums, 1)
	require.Equal(t, "co02", albums[0].ID, "new-albums entry must adopt the all-albums id")
}

func TestMetadataServedFromTTLCache(t *testing.T) {
	cd, service := libraryFixture(t)
	cd.metadata["c01"] = `<DIDL-Lite>` + trackDIDL("c01", "Come Together", 1) + `</DIDL-Lite>`
	ctx := context.Background()

	first, err := service.Metadata(ctx, "c01")
	require.NoError(t, err)
	require.NotNil(t, first.Track)

	before := cd.calls.Load()
	second, err := service.Metadata(ctx, "c01")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, before, cd.calls.Load(), "second read within the TTL must be a cache hit")
}

func TestBrowseFault701IsNotFound(t *testing.T) {
	cd, service := libraryFixture(t)
	cd.faults["missing"] = 701

	_, err := service.Children(context.Background(), "missing")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeNotFound, appErr.Code)
}

func TestBrowseConcurrencyIsBounded(t *testing.T) {
	cd, service := libraryFixture(t)
	cd.delay = 50 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Children(ctx, "co02")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, cd.peakConcurrent.Load(), int32(browseConcurrency))
}

func TestIDsFromFilename(t *testing.T) {
	_, service := libraryFixture(t)
	ctx := context.Background()

	ids := service.IDsFromFilename(ctx, "http://example.com/stream/c01-co02.flac")
	require.Equal(t, "c01", ids.TrackID)
	require.Equal(t, "co02", ids.AlbumID)

	// Album id absent from the filename: derived from the track record.
	ids = service.IDsFromFilename(ctx, "http://example.com/stream/c07.flac")
	require.Equal(t, "c07", ids.TrackID)
	require.Equal(t, "co03", ids.AlbumID)

	ids = service.IDsFromFilename(ctx, "http://example.com/stream/unknown-tokens.flac")
	require.Empty(t, ids.TrackID)
	require.Empty(t, ids.AlbumID)
}

func TestClearCachesForcesRefetch(t *testing.T) {
	cd, service := libraryFixture(t)
	ctx := context.Background()

	_, err := service.Albums(ctx)
	require.NoError(t, err)

	service.ClearCaches()

	before := cd.calls.Load()
	_, err = service.Albums(ctx)
	require.NoError(t, err)
	require.Greater(t, cd.calls.Load(), before)
}
