package streamer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/conn"
	"github.com/vibin-audio/vibin-go/internal/discovery"
	"github.com/vibin-audio/vibin-go/internal/mediaserver"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// mediaPlayerSourceID is the streamer source that plays from the local queue.
// Media ids only make sense while this source is active.
const mediaPlayerSourceID = "MEDIA_PLAYER"

// MediaSource is the slice of the media-server adapter the streamer needs to
// enrich queue items and enqueue media. It may be nil when no media server
// was resolved.
type MediaSource interface {
	AlbumIDByTitleArtist(ctx context.Context, title, artist string) string
	TrackIDForAlbum(ctx context.Context, albumID string, trackNumber int, title string) string
	DIDL(ctx context.Context, id string) (string, error)
	IDsFromFilename(ctx context.Context, rawURL string) mediaserver.MediaIDs
}

// QueueObserver is told about every refreshed queue; the playlist reconciler
// uses it to track drift against the active stored playlist.
type QueueObserver func(queue model.Queue)

// Service is the StreamMagic streamer adapter. It owns the smoip WebSocket,
// the transport/playing/queue/preset state, and the outbound HTTP command
// surface. All inbound mutations happen on the worker goroutine.
type Service struct {
	device  *discovery.Device
	host    string
	publish model.PublishFunc
	media   MediaSource

	httpClient *http.Client
	worker     *conn.WSWorker

	mu        sync.Mutex
	state     model.StreamerState
	transport model.TransportState
	playing   model.CurrentlyPlaying
	presets   model.Presets
	position  int

	// lastDisplay is the raw display payload last seen, for change detection.
	lastDisplay string

	queueObserver QueueObserver
}

// NewService creates the streamer adapter for a resolved StreamMagic device.
// media may be nil; publish must not be.
func NewService(device *discovery.Device, media MediaSource, publish model.PublishFunc, commandTimeout time.Duration) *Service {
	s := &Service{
		device:  device,
		host:    device.Host,
		publish: publish,
		media:   media,
		httpClient: &http.Client{
			Timeout: commandTimeout,
		},
		state: model.StreamerState{
			Name:  device.FriendlyName,
			Power: model.PowerUnknown,
		},
		transport: model.TransportState{
			PlayState: model.PlayStateNotReady,
			Repeat:    model.RepeatOff,
			Shuffle:   model.ShuffleOff,
		},
	}

	s.worker = conn.NewWSWorker("STREAMER", fmt.Sprintf("ws://%s:80/smoip", s.host), conn.WSCallbacks{
		OnConnect:    s.onConnect,
		OnData:       s.onFrame,
		OnDisconnect: s.onDisconnect,
	})
	return s
}

// SetQueueObserver installs the reconciler's queue hook. Must be called
// before Start.
func (s *Service) SetQueueObserver(observer QueueObserver) {
	s.queueObserver = observer
}

// Start launches the smoip worker; it reconnects with backoff until Stop.
func (s *Service) Start() {
	s.worker.Start()
}

// Stop tears the worker down and joins it.
func (s *Service) Stop() {
	s.worker.Stop()
}

// Name returns the streamer's friendly name.
func (s *Service) Name() string {
	return s.device.FriendlyName
}

// Device returns the underlying device handle.
func (s *Service) Device() *discovery.Device {
	return s.device
}

// subscribePaths are sent on every (re)connect. update=1 asks for one
// message per change; power uses the slow keepalive interval.
var subscribePaths = []struct {
	path   string
	update int
}{
	{"/zone/play_state", 1},
	{"/zone/play_state/position", 1},
	{"/zone/now_playing", 1},
	{"/queue/info", 1},
	{"/presets/list", 1},
	{"/system/power", 100},
}

type subscribeFrame struct {
	Path   string          `json:"path"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Update int `json:"update"`
}

func (s *Service) onConnect(ws *websocket.Conn) error {
	for _, sub := range subscribePaths {
		frame := subscribeFrame{Path: sub.path, Params: subscribeParams{Update: sub.update}}
		if err := ws.WriteJSON(frame); err != nil {
			return err
		}
	}

	// Source list rarely changes; fetch it once per connection.
	go s.refreshSources(context.Background())
	return nil
}

func (s *Service) onDisconnect(err error) {
	if err != nil {
		log.Printf("STREAMER: connection lost: %v", err)
	}
}

// State returns a snapshot of the normalized streamer device state.
func (s *Service) State() model.StreamerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TransportState returns a snapshot of the transport channel.
func (s *Service) TransportState() model.TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// CurrentlyPlaying returns a snapshot of the playback channel.
func (s *Service) CurrentlyPlaying() model.CurrentlyPlaying {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Queue returns a snapshot of the active queue.
func (s *Service) Queue() model.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing.Queue
}

// Presets returns a snapshot of the preset list.
func (s *Service) Presets() model.Presets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presets
}

// Position returns the last position report in seconds.
func (s *Service) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// smoipGet issues one GET against the streamer's smoip surface and decodes
// the response body into out (when non-nil).
func (s *Service) smoipGet(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := fmt.Sprintf("http://%s/smoip/%s", s.host, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.NewInternalError(err.Error())
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.NewDeviceError("streamer unreachable: "+err.Error(), nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewDeviceError("streamer response read failed: "+err.Error(), nil)
	}
	if resp.StatusCode >= 400 {
		return apperrors.NewDeviceError(fmt.Sprintf("streamer rejected %s: http %d", path, resp.StatusCode), nil)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return apperrors.NewDeviceError("unexpected streamer payload from "+path+": "+err.Error(), nil)
		}
	}
	return nil
}

// smoipSourcesResponse mirrors /smoip/system/sources.
type smoipSourcesResponse struct {
	Data struct {
		Sources []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			DefaultName string `json:"default_name"`
			Class       string `json:"class"`
			Nameable    bool   `json:"nameable"`
		} `json:"sources"`
	} `json:"data"`
}

func (s *Service) refreshSources(ctx context.Context) {
	var parsed smoipSourcesResponse
	if err := s.smoipGet(ctx, "system/sources", nil, &parsed); err != nil {
		log.Printf("STREAMER: source list fetch failed: %v", err)
		return
	}

	available := make([]model.AudioSource, 0, len(parsed.Data.Sources))
	for _, src := range parsed.Data.Sources {
		available = append(available, model.AudioSource{
			ID:          src.ID,
			Name:        src.Name,
			DefaultName: src.DefaultName,
			Class:       src.Class,
			Nameable:    src.Nameable,
		})
	}

	s.mu.Lock()
	active := s.state.Sources.Active
	s.state.Sources = model.AudioSources{Available: available, Active: active}
	system := s.state
	s.mu.Unlock()

	s.publish(model.UpdateSystem, system)
}
