package streamer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/vibin-audio/vibin-go/internal/model"
)

// smoipMessage is the envelope of every inbound smoip frame.
type smoipMessage struct {
	Path   string `json:"path"`
	Params struct {
		Data json.RawMessage `json:"data"`
	} `json:"params"`
}

// controlNames maps the streamer's control names to normalized transport
// actions. Unknown names are dropped.
var controlNames = map[string]model.TransportAction{
	"pause":          model.TransportActionPause,
	"play":           model.TransportActionPlay,
	"play_pause":     model.TransportActionTogglePlayback,
	"toggle_shuffle": model.TransportActionShuffle,
	"toggle_repeat":  model.TransportActionRepeat,
	"track_next":     model.TransportActionNext,
	"track_previous": model.TransportActionPrevious,
	"seek":           model.TransportActionSeek,
	"stop":           model.TransportActionStop,
}

// onFrame dispatches one inbound smoip frame. It runs synchronously on the
// worker goroutine, so per-connection event ordering is preserved.
func (s *Service) onFrame(frame []byte) {
	var msg smoipMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		log.Printf("STREAMER: dropping unparseable frame: %v", err)
		return
	}

	switch msg.Path {
	case "/zone/play_state":
		s.handlePlayState(msg.Params.Data)
	case "/zone/play_state/position":
		s.handlePosition(msg.Params.Data)
	case "/zone/now_playing":
		s.handleNowPlaying(msg.Params.Data)
	case "/queue/info":
		s.handleQueueInfo()
	case "/presets/list":
		s.handlePresets(msg.Params.Data)
	case "/system/power":
		s.handlePower(msg.Params.Data)
	default:
		log.Printf("STREAMER: ignoring frame for %s", msg.Path)
	}
}

// playStateData mirrors the /zone/play_state payload.
type playStateData struct {
	State       string `json:"state"`
	Position    *int   `json:"position"`
	ModeRepeat  string `json:"mode_repeat"`
	ModeShuffle string `json:"mode_shuffle"`
	Metadata    struct {
		Title      string `json:"title"`
		Station    string `json:"station"`
		Artist     string `json:"artist"`
		Album      string `json:"album"`
		ArtURL     string `json:"art_url"`
		Duration   int    `json:"duration"`
		Codec      string `json:"codec"`
		Lossless   bool   `json:"lossless"`
		SampleRate int    `json:"sample_rate"`
		BitDepth   int    `json:"bit_depth"`
		Encoding   string `json:"encoding"`
		MQA        string `json:"mqa"`
		StreamURL  string `json:"stream_url"`
	} `json:"metadata"`
}

func (s *Service) handlePlayState(data json.RawMessage) {
	var parsed playStateData
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("STREAMER: bad play_state payload: %v", err)
		return
	}

	title := parsed.Metadata.Title
	if title == "" && parsed.Metadata.Station != "" {
		title = parsed.Metadata.Station
	}

	s.mu.Lock()
	if parsed.State != "" {
		s.transport.PlayState = normalizePlayState(parsed.State)
	}
	if parsed.ModeRepeat != "" {
		s.transport.Repeat = normalizeRepeat(parsed.ModeRepeat)
	}
	if parsed.ModeShuffle != "" {
		s.transport.Shuffle = normalizeShuffle(parsed.ModeShuffle)
	}
	if parsed.Position != nil {
		s.position = *parsed.Position
	}

	s.playing.ActiveTrack = model.ActiveTrack{
		Title:    title,
		Artist:   parsed.Metadata.Artist,
		Album:    parsed.Metadata.Album,
		ArtURL:   parsed.Metadata.ArtURL,
		Duration: parsed.Metadata.Duration,
	}
	s.playing.Format = model.MediaFormat{
		MQA:        parsed.Metadata.MQA,
		Codec:      parsed.Metadata.Codec,
		Lossless:   parsed.Metadata.Lossless,
		SampleRate: parsed.Metadata.SampleRate,
		BitDepth:   parsed.Metadata.BitDepth,
		Encoding:   parsed.Metadata.Encoding,
	}
	if parsed.Metadata.StreamURL != "" {
		s.playing.Stream = model.MediaStream{Type: "stream", URL: parsed.Metadata.StreamURL}
	}

	// A paused streamer reports sparse metadata; recover the rest from the
	// matching queue item.
	if s.transport.PlayState == model.PlayStatePause {
		s.fillActiveTrackFromQueueLocked(title)
	}

	if s.media != nil && parsed.Metadata.StreamURL != "" {
		ids := s.media.IDsFromFilename(context.Background(), parsed.Metadata.StreamURL)
		if ids.AlbumID != "" {
			s.playing.AlbumMediaID = ids.AlbumID
		}
		if ids.TrackID != "" {
			s.playing.TrackMediaID = ids.TrackID
		}
	}

	transport := s.transport
	playing := s.playing
	s.mu.Unlock()

	s.publish(model.UpdatePlayState, map[string]any{
		"state":    string(transport.PlayState),
		"position": s.Position(),
	})
	s.publish(model.UpdateCurrentlyPlaying, playing)
	s.publish(model.UpdateTransportState, transport)
}

// fillActiveTrackFromQueueLocked fills missing active-track fields from the
// queue item whose title matches. Caller holds s.mu.
func (s *Service) fillActiveTrackFromQueueLocked(title string) {
	if title == "" {
		return
	}
	for _, item := range s.playing.Queue.Items {
		if item.Metadata.Title != title {
			continue
		}
		if s.playing.ActiveTrack.Artist == "" {
			s.playing.ActiveTrack.Artist = item.Metadata.Artist
		}
		if s.playing.ActiveTrack.Album == "" {
			s.playing.ActiveTrack.Album = item.Metadata.Album
		}
		if s.playing.ActiveTrack.Duration == 0 {
			s.playing.ActiveTrack.Duration = item.Metadata.Duration
		}
		if s.playing.ActiveTrack.ArtURL == "" {
			s.playing.ActiveTrack.ArtURL = item.Metadata.ArtURL
		}
		return
	}
}

type positionData struct {
	Position int `json:"position"`
}

func (s *Service) handlePosition(data json.RawMessage) {
	var parsed positionData
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("STREAMER: bad position payload: %v", err)
		return
	}

	s.mu.Lock()
	s.position = parsed.Position
	s.mu.Unlock()

	s.publish(model.UpdatePosition, map[string]any{"position": parsed.Position})
}

// nowPlayingData mirrors the /zone/now_playing payload.
type nowPlayingData struct {
	Controls []string `json:"controls"`
	Source   *struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DefaultName string `json:"default_name"`
		Class       string `json:"class"`
		Nameable    bool   `json:"nameable"`
	} `json:"source"`
	Display json.RawMessage `json:"display"`
}

func (s *Service) handleNowPlaying(data json.RawMessage) {
	var parsed nowPlayingData
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("STREAMER: bad now_playing payload: %v", err)
		return
	}

	controls := make([]model.TransportAction, 0, len(parsed.Controls))
	for _, name := range parsed.Controls {
		if action, ok := controlNames[name]; ok {
			controls = append(controls, action)
		}
	}

	s.mu.Lock()
	s.transport.ActiveControls = controls

	if parsed.Source != nil {
		s.state.Sources.Active = &model.AudioSource{
			ID:          parsed.Source.ID,
			Name:        parsed.Source.Name,
			DefaultName: parsed.Source.DefaultName,
			Class:       parsed.Source.Class,
			Nameable:    parsed.Source.Nameable,
		}
		// Media ids are only meaningful while the local queue is the source.
		if parsed.Source.ID != mediaPlayerSourceID {
			s.playing.AlbumMediaID = ""
			s.playing.TrackMediaID = ""
		}
	}

	displayChanged := false
	if len(parsed.Display) > 0 && string(parsed.Display) != s.lastDisplay {
		s.lastDisplay = string(parsed.Display)
		var display model.StreamerDeviceDisplay
		if err := json.Unmarshal(parsed.Display, &display); err == nil {
			s.state.Display = display
			displayChanged = true
		}
	}

	transport := s.transport
	system := s.state
	display := s.state.Display
	s.mu.Unlock()

	if displayChanged {
		s.publish(model.UpdateDeviceDisplay, display)
		s.publish(model.UpdateSystem, system)
	}
	s.publish(model.UpdateTransportState, transport)
}

// queueListResponse mirrors the /smoip/queue/list payload.
type queueListResponse struct {
	Data struct {
		PlayPosition *int `json:"play_position"`
		Items        []struct {
			ID       int    `json:"id"`
			Position int    `json:"position"`
			URI      string `json:"uri"`
			Metadata struct {
				Title       string `json:"title"`
				Album       string `json:"album"`
				Artist      string `json:"artist"`
				Duration    int    `json:"duration"`
				TrackNumber int    `json:"track_number"`
				ArtURL      string `json:"art_url"`
				Class       string `json:"class"`
			} `json:"metadata"`
		} `json:"items"`
	} `json:"data"`
}

// handleQueueInfo refreshes the queue. The notification body is not trusted;
// the queue is re-fetched in full, enriched with media ids, and replaced
// atomically.
func (s *Service) handleQueueInfo() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var parsed queueListResponse
	if err := s.smoipGet(ctx, "queue/list", nil, &parsed); err != nil {
		log.Printf("STREAMER: queue refresh failed: %v", err)
		return
	}

	items := make([]model.QueueItem, 0, len(parsed.Data.Items))
	for index, raw := range parsed.Data.Items {
		item := model.QueueItem{
			ID:       raw.ID,
			Position: index,
			URI:      raw.URI,
			Metadata: model.QueueItemMetadata{
				Title:       raw.Metadata.Title,
				Album:       raw.Metadata.Album,
				Artist:      raw.Metadata.Artist,
				Duration:    raw.Metadata.Duration,
				TrackNumber: raw.Metadata.TrackNumber,
				ArtURL:      raw.Metadata.ArtURL,
				ClassName:   raw.Metadata.Class,
			},
		}
		if s.media != nil {
			item.AlbumMediaID = s.media.AlbumIDByTitleArtist(ctx, raw.Metadata.Album, raw.Metadata.Artist)
			if item.AlbumMediaID != "" {
				item.TrackMediaID = s.media.TrackIDForAlbum(ctx, item.AlbumMediaID, raw.Metadata.TrackNumber, raw.Metadata.Title)
			}
		}
		items = append(items, item)
	}

	queue := model.Queue{
		PlayPosition: parsed.Data.PlayPosition,
		Items:        items,
	}

	s.mu.Lock()
	s.playing.Queue = queue
	playing := s.playing
	s.mu.Unlock()

	if s.queueObserver != nil {
		s.queueObserver(queue)
	}

	s.publish(model.UpdateQueue, queue)
	s.publish(model.UpdateCurrentlyPlaying, playing)
}

// presetsData mirrors the /presets/list payload.
type presetsData struct {
	Start      int `json:"start"`
	End        int `json:"end"`
	MaxPresets int `json:"max_presets"`
	Presets    []struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		Type      string `json:"type"`
		Class     string `json:"class"`
		State     string `json:"state"`
		IsPlaying bool   `json:"is_playing"`
		ArtURL    string `json:"art_url"`
	} `json:"presets"`
}

func (s *Service) handlePresets(data json.RawMessage) {
	var parsed presetsData
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("STREAMER: bad presets payload: %v", err)
		return
	}

	presets := model.Presets{
		Start:      parsed.Start,
		End:        parsed.End,
		MaxPresets: parsed.MaxPresets,
		Presets:    make([]model.Preset, 0, len(parsed.Presets)),
	}
	for _, raw := range parsed.Presets {
		presets.Presets = append(presets.Presets, model.Preset{
			ID:        raw.ID,
			Name:      raw.Name,
			Type:      raw.Type,
			ClassName: raw.Class,
			State:     raw.State,
			IsPlaying: raw.IsPlaying,
			ArtURL:    raw.ArtURL,
		})
	}

	s.mu.Lock()
	s.presets = presets
	s.mu.Unlock()

	s.publish(model.UpdatePresets, presets)
}

type powerData struct {
	Power string `json:"power"`
}

func (s *Service) handlePower(data json.RawMessage) {
	var parsed powerData
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("STREAMER: bad power payload: %v", err)
		return
	}

	power := model.PowerOff
	if parsed.Power == "ON" {
		power = model.PowerOn
	}

	s.mu.Lock()
	s.state.Power = power
	system := s.state
	s.mu.Unlock()

	s.publish(model.UpdateSystem, system)
}

func normalizePlayState(raw string) model.PlayState {
	switch raw {
	case "buffering":
		return model.PlayStateBuffering
	case "connecting":
		return model.PlayStateConnecting
	case "no_signal":
		return model.PlayStateNoSignal
	case "not_ready":
		return model.PlayStateNotReady
	case "pause":
		return model.PlayStatePause
	case "play":
		return model.PlayStatePlay
	case "ready":
		return model.PlayStateReady
	case "stop":
		return model.PlayStateStop
	default:
		return model.PlayStateNotReady
	}
}

func normalizeRepeat(raw string) model.RepeatState {
	if raw == "all" {
		return model.RepeatAll
	}
	return model.RepeatOff
}

func normalizeShuffle(raw string) model.ShuffleState {
	if raw == "all" {
		return model.ShuffleAll
	}
	return model.ShuffleOff
}
