package streamer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/discovery"
	"github.com/vibin-audio/vibin-go/internal/mediaserver"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// publishRecorder collects update messages for assertions.
type publishRecorder struct {
	mu       sync.Mutex
	messages []recordedMessage
}

type recordedMessage struct {
	Type    model.UpdateMessageType
	Payload any
}

func (p *publishRecorder) publish(messageType model.UpdateMessageType, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, recordedMessage{Type: messageType, Payload: payload})
}

func (p *publishRecorder) ofType(messageType model.UpdateMessageType) []recordedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedMessage
	for _, msg := range p.messages {
		if msg.Type == messageType {
			out = append(out, msg)
		}
	}
	return out
}

// fakeSMOIP serves the streamer's HTTP command surface, recording requests.
type fakeSMOIP struct {
	server *httptest.Server

	mu        sync.Mutex
	requests  []string
	queueList string
}

func newFakeSMOIP(t *testing.T) *fakeSMOIP {
	t.Helper()
	f := &fakeSMOIP{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.String())
		body := f.queueList
		f.mu.Unlock()

		if strings.HasPrefix(r.URL.Path, "/smoip/queue/list") && body != "" {
			fmt.Fprint(w, body)
			return
		}
		fmt.Fprint(w, `{"data":{}}`)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSMOIP) host(t *testing.T) string {
	t.Helper()
	parsed, err := url.Parse(f.server.URL)
	require.NoError(t, err)
	return parsed.Host
}

func (f *fakeSMOIP) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSMOIP) lastRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1]
}

// fakeMedia satisfies MediaSource with static lookups.
type fakeMedia struct {
	albums map[string]string // "album|artist" -> album id
	tracks map[string]string // "albumID|trackNumber" -> track id
	didl   map[string]string
}

func (f *fakeMedia) AlbumIDByTitleArtist(_ context.Context, title, artist string) string {
	return f.albums[title+"|"+artist]
}

func (f *fakeMedia) TrackIDForAlbum(_ context.Context, albumID string, trackNumber int, _ string) string {
	return f.tracks[fmt.Sprintf("%s|%d", albumID, trackNumber)]
}

func (f *fakeMedia) DIDL(_ context.Context, id string) (string, error) {
	didl, ok := f.didl[id]
	if !ok {
		return "", apperrors.NewNotFoundResource("media", id)
	}
	return didl, nil
}

func (f *fakeMedia) IDsFromFilename(context.Context, string) mediaserver.MediaIDs {
	return mediaserver.MediaIDs{}
}

func testService(t *testing.T, smoip *fakeSMOIP, media MediaSource) (*Service, *publishRecorder) {
	t.Helper()
	recorder := &publishRecorder{}
	device := &discovery.Device{
		FriendlyName: "CXNv2 Test",
		Manufacturer: "Cambridge Audio",
		ModelName:    "CXNv2",
		Host:         smoip.host(t),
	}
	return NewService(device, media, recorder.publish, 5*time.Second), recorder
}

func TestParseSeekTargetForms(t *testing.T) {
	// The three accepted forms agree for the same instant.
	byString, err := parseSeekTarget("0:01:30", 200)
	require.NoError(t, err)
	bySeconds, err := parseSeekTarget("90", 200)
	require.NoError(t, err)
	byFraction, err := parseSeekTarget("0.45", 200)
	require.NoError(t, err)
	require.Equal(t, 90, byString)
	require.Equal(t, byString, bySeconds)
	require.Equal(t, byString, byFraction)

	// Fractional edges.
	seconds, err := parseSeekTarget("0.0", 200)
	require.NoError(t, err)
	require.Equal(t, 0, seconds)
	seconds, err = parseSeekTarget("1.0", 200)
	require.NoError(t, err)
	require.Equal(t, 1, seconds, "1.0 reads as one second, not end-of-track")

	// Fractions need a known duration.
	_, err = parseSeekTarget("0.5", 0)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)

	_, err = parseSeekTarget("bogus", 200)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
}

func TestControlNameMapping(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, recorder := testService(t, smoip, nil)

	service.handleNowPlaying(json.RawMessage(`{
		"controls": ["play_pause", "toggle_shuffle", "track_next", "made_up_control", "seek"],
		"source": {"id": "MEDIA_PLAYER", "name": "Media Player"}
	}`))

	transport := service.TransportState()
	require.Equal(t, []model.TransportAction{
		model.TransportActionTogglePlayback,
		model.TransportActionShuffle,
		model.TransportActionNext,
		model.TransportActionSeek,
	}, transport.ActiveControls)

	require.NotEmpty(t, recorder.ofType(model.UpdateTransportState))
}

func TestPlayStateTitleFallsBackToStation(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, recorder := testService(t, smoip, nil)

	service.handlePlayState(json.RawMessage(`{
		"state": "play",
		"metadata": {"station": "Radio Paradise", "codec": "AAC"}
	}`))

	playing := service.CurrentlyPlaying()
	require.Equal(t, "Radio Paradise", playing.ActiveTrack.Title)
	require.Equal(t, model.PlayStatePlay, service.TransportState().PlayState)
	require.NotEmpty(t, recorder.ofType(model.UpdateCurrentlyPlaying))
	require.NotEmpty(t, recorder.ofType(model.UpdateTransportState))
}

func TestPausedPlayStateFillsTrackFromQueue(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, _ := testService(t, smoip, nil)

	service.mu.Lock()
	service.playing.Queue = model.Queue{Items: []model.QueueItem{{
		ID:       7,
		Position: 0,
		Metadata: model.QueueItemMetadata{Title: "Something", Artist: "The Beatles", Album: "Abbey Road", Duration: 182},
	}}}
	service.mu.Unlock()

	service.handlePlayState(json.RawMessage(`{
		"state": "pause",
		"metadata": {"title": "Something"}
	}`))

	playing := service.CurrentlyPlaying()
	require.Equal(t, "The Beatles", playing.ActiveTrack.Artist)
	require.Equal(t, "Abbey Road", playing.ActiveTrack.Album)
	require.Equal(t, 182, playing.ActiveTrack.Duration)
}

func TestNonMediaPlayerSourceClearsMediaIDs(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, _ := testService(t, smoip, nil)

	service.mu.Lock()
	service.playing.AlbumMediaID = "co02"
	service.playing.TrackMediaID = "c01"
	service.mu.Unlock()

	service.handleNowPlaying(json.RawMessage(`{
		"controls": [],
		"source": {"id": "AIRPLAY", "name": "AirPlay"}
	}`))

	playing := service.CurrentlyPlaying()
	require.Empty(t, playing.AlbumMediaID)
	require.Empty(t, playing.TrackMediaID)
}

func TestQueueRefreshEnrichesAndRenumbers(t *testing.T) {
	smoip := newFakeSMOIP(t)
	smoip.queueList = `{"data": {"play_position": 1, "items": [
		{"id": 41, "position": 3, "metadata": {"title": "Come Together", "album": "Abbey Road", "artist": "The Beatles", "track_number": 1}},
		{"id": 42, "position": 9, "metadata": {"title": "Something", "album": "Abbey Road", "artist": "The Beatles", "track_number": 2}}
	]}}`

	media := &fakeMedia{
		albums: map[string]string{"Abbey Road|The Beatles": "co02"},
		tracks: map[string]string{"co02|1": "c01", "co02|2": "c05"},
	}
	service, recorder := testService(t, smoip, media)

	observed := make(chan model.Queue, 1)
	service.SetQueueObserver(func(queue model.Queue) { observed <- queue })

	service.handleQueueInfo()

	queue := service.Queue()
	require.Len(t, queue.Items, 2)
	// Positions are dense and 0-based regardless of what the device reports.
	require.Equal(t, 0, queue.Items[0].Position)
	require.Equal(t, 1, queue.Items[1].Position)
	require.Equal(t, "co02", queue.Items[0].AlbumMediaID)
	require.Equal(t, "c01", queue.Items[0].TrackMediaID)
	require.Equal(t, "c05", queue.Items[1].TrackMediaID)

	select {
	case got := <-observed:
		require.Equal(t, queue, got)
	default:
		t.Fatal("queue observer was not invoked")
	}

	require.NotEmpty(t, recorder.ofType(model.UpdateQueue))
	require.NotEmpty(t, recorder.ofType(model.UpdateCurrentlyPlaying))
}

func TestPauseWhenAlreadyPausedIsNoOp(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, _ := testService(t, smoip, nil)

	service.mu.Lock()
	service.transport.PlayState = model.PlayStatePause
	service.transport.ActiveControls = []model.TransportAction{model.TransportActionPause, model.TransportActionPlay}
	s := service.transport
	service.mu.Unlock()

	before := smoip.requestCount()
	transport, err := service.Pause(context.Background())
	require.NoError(t, err)
	require.Equal(t, s, transport)
	require.Equal(t, before, smoip.requestCount(), "no command may be issued")
}

func TestStopRequiresActiveControl(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, _ := testService(t, smoip, nil)

	_, err := service.StopPlayback(context.Background())
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
}

func TestSeekSendsPosition(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, _ := testService(t, smoip, nil)

	service.mu.Lock()
	service.playing.ActiveTrack.Duration = 200
	service.mu.Unlock()

	require.NoError(t, service.Seek(context.Background(), "0:01:30"))
	require.Contains(t, smoip.lastRequest(), "position=90")
}

func TestModifyQueueEncodesDIDL(t *testing.T) {
	smoip := newFakeSMOIP(t)
	media := &fakeMedia{didl: map[string]string{
		"co02": `<DIDL-Lite><container id="co02"><dc:title>Abbey Road & More</dc:title></container></DIDL-Lite>`,
	}}
	service, _ := testService(t, smoip, media)

	err := service.ModifyQueue(context.Background(), "co02", model.QueueActionReplace, ModifyQueueOptions{})
	require.NoError(t, err)

	request := smoip.lastRequest()
	require.Contains(t, request, "/smoip/queue/add")
	require.Contains(t, request, "action=REPLACE")
	require.NotContains(t, request, "<DIDL-Lite>", "DIDL must be percent-encoded")

	parsed, err := url.Parse(request)
	require.NoError(t, err)
	require.Contains(t, parsed.Query().Get("metadata"), "Abbey Road & More")
}

func TestModifyQueuePlayFromHereRequiresID(t *testing.T) {
	smoip := newFakeSMOIP(t)
	media := &fakeMedia{didl: map[string]string{"co02": "<DIDL-Lite/>"}}
	service, _ := testService(t, smoip, media)

	err := service.ModifyQueue(context.Background(), "co02", model.QueueActionPlayFromHere, ModifyQueueOptions{})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)

	err = service.ModifyQueue(context.Background(), "co02", model.QueueActionPlayFromHere, ModifyQueueOptions{PlayFromID: "c05"})
	require.NoError(t, err)
	require.Contains(t, smoip.lastRequest(), "play_from_id=c05")
}

func TestPowerEventEmitsSystem(t *testing.T) {
	smoip := newFakeSMOIP(t)
	service, recorder := testService(t, smoip, nil)

	service.handlePower(json.RawMessage(`{"power": "ON"}`))

	require.Equal(t, model.PowerOn, service.State().Power)
	systems := recorder.ofType(model.UpdateSystem)
	require.NotEmpty(t, systems)
	state, ok := systems[len(systems)-1].Payload.(model.StreamerState)
	require.True(t, ok)
	require.Equal(t, model.PowerOn, state.Power)
}
