package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vibin-audio/vibin-go/internal/amplifier"
	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/favorites"
	"github.com/vibin-audio/vibin-go/internal/mediaserver"
	"github.com/vibin-audio/vibin-go/internal/model"
	"github.com/vibin-audio/vibin-go/internal/playlists"
	"github.com/vibin-audio/vibin-go/internal/streamer"
	"github.com/vibin-audio/vibin-go/internal/upnp/events"
)

// defaultPlayIDsMax caps how many media ids a bulk play loads when the caller
// does not say.
const defaultPlayIDsMax = 10

// Message is one typed update delivered to subscribers.
type Message struct {
	Type    model.UpdateMessageType `json:"type"`
	Payload any                     `json:"payload"`
}

// MessageFunc receives update messages. Handlers are invoked synchronously on
// the publishing adapter's goroutine and must not block.
type MessageFunc func(message Message)

// StatusPayload is the VibinStatus update-message payload.
type StatusPayload struct {
	StartTime       time.Time `json:"startTime"`
	StreamerName    string    `json:"streamerName,omitempty"`
	MediaServerName string    `json:"mediaServerName,omitempty"`
	AmplifierName   string    `json:"amplifierName,omitempty"`
	Clients         int       `json:"clients"`
}

// Bindings are the adapter handles the hub composes. MediaServer, Amplifier,
// and Events may be nil.
type Bindings struct {
	Streamer    *streamer.Service
	MediaServer *mediaserver.Service
	Amplifier   amplifier.Amplifier
	Reconciler  *playlists.Reconciler
	Favorites   *favorites.Service
	Events      *events.Manager
}

// Hub holds the adapter handles, composes their states into the full system
// view, and fans typed update messages out to every subscriber.
type Hub struct {
	started time.Time

	bindMu sync.RWMutex
	b      Bindings

	mu       sync.RWMutex
	handlers map[int]MessageFunc
	nextID   int
}

// New creates an empty hub. Bind attaches the adapters before Start.
func New() *Hub {
	return &Hub{
		started:  time.Now().UTC(),
		handlers: make(map[int]MessageFunc),
	}
}

// Bind attaches the adapter handles. Called once during wiring, before any
// adapter worker starts publishing.
func (h *Hub) Bind(bindings Bindings) {
	h.bindMu.Lock()
	h.b = bindings
	h.bindMu.Unlock()
}

func (h *Hub) bindings() Bindings {
	h.bindMu.RLock()
	defer h.bindMu.RUnlock()
	return h.b
}

// StartTime reports when the hub was created.
func (h *Hub) StartTime() time.Time {
	return h.started
}

// Publish is the model.PublishFunc handed to every adapter. System payloads
// are recomposed into the full SystemState so each message matches the hub's
// snapshot for its channel.
func (h *Hub) Publish(messageType model.UpdateMessageType, payload any) {
	if messageType == model.UpdateSystem {
		payload = h.SystemState()
	}
	h.fanOut(Message{Type: messageType, Payload: payload})
}

func (h *Hub) fanOut(message Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, handler := range h.handlers {
		handler(message)
	}
}

// Subscribe registers a handler. The priming snapshot is delivered through
// the handler before registration completes, so no live update ever precedes
// it; live updates follow in adapter order. The returned function removes the
// handler and is safe to call from any goroutine.
func (h *Hub) Subscribe(handler MessageFunc) (unsubscribe func()) {
	h.mu.Lock()
	for _, message := range h.CurrentStateMessages() {
		handler(message)
	}
	id := h.nextID
	h.nextID++
	h.handlers[id] = handler
	clients := len(h.handlers)
	h.mu.Unlock()

	h.publishStatus(clients)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.handlers, id)
			remaining := len(h.handlers)
			h.mu.Unlock()
			h.publishStatus(remaining)
		})
	}
}

// SubscriberCount reports how many handlers are registered.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}

func (h *Hub) publishStatus(clients int) {
	h.fanOut(Message{Type: model.UpdateVibinStatus, Payload: h.statusPayload(clients)})
}

func (h *Hub) statusPayload(clients int) StatusPayload {
	b := h.bindings()
	status := StatusPayload{
		StartTime: h.started,
		Clients:   clients,
	}
	if b.Streamer != nil {
		status.StreamerName = b.Streamer.Name()
	}
	if b.MediaServer != nil {
		status.MediaServerName = b.MediaServer.Name()
	}
	if b.Amplifier != nil {
		status.AmplifierName = b.Amplifier.Name()
	}
	return status
}

// Status returns the current VibinStatus payload.
func (h *Hub) Status() StatusPayload {
	return h.statusPayload(h.SubscriberCount())
}

// CurrentStateMessages returns the full snapshot as the fixed ordered list
// used to prime a new subscriber.
func (h *Hub) CurrentStateMessages() []Message {
	return []Message{
		{Type: model.UpdateSystem, Payload: h.SystemState()},
		{Type: model.UpdateUPnPProperties, Payload: h.UPnPProperties()},
		{Type: model.UpdateTransportState, Payload: h.TransportState()},
		{Type: model.UpdateCurrentlyPlaying, Payload: h.CurrentlyPlaying()},
		{Type: model.UpdateFavorites, Payload: h.Favorites()},
		{Type: model.UpdatePresets, Payload: h.Presets()},
		{Type: model.UpdateStoredPlaylists, Payload: h.StoredPlaylists()},
	}
}

// SystemState composes the per-device states into the full system view.
func (h *Hub) SystemState() model.SystemState {
	b := h.bindings()
	state := model.SystemState{Power: model.PowerUnknown}

	if b.Streamer != nil {
		state.Streamer = b.Streamer.State()
		state.Power = state.Streamer.Power
	}
	if b.MediaServer != nil {
		mediaState := b.MediaServer.State()
		state.MediaServer = &mediaState
	}
	if b.Amplifier != nil {
		ampState := b.Amplifier.State()
		state.Amplifier = &ampState
	}
	return state
}

// TransportState returns the streamer's transport snapshot.
func (h *Hub) TransportState() model.TransportState {
	if b := h.bindings(); b.Streamer != nil {
		return b.Streamer.TransportState()
	}
	return model.TransportState{}
}

// CurrentlyPlaying returns the playback snapshot.
func (h *Hub) CurrentlyPlaying() model.CurrentlyPlaying {
	if b := h.bindings(); b.Streamer != nil {
		return b.Streamer.CurrentlyPlaying()
	}
	return model.CurrentlyPlaying{}
}

// Queue returns the active queue snapshot.
func (h *Hub) Queue() model.Queue {
	if b := h.bindings(); b.Streamer != nil {
		return b.Streamer.Queue()
	}
	return model.Queue{}
}

// Presets returns the preset snapshot.
func (h *Hub) Presets() model.Presets {
	if b := h.bindings(); b.Streamer != nil {
		return b.Streamer.Presets()
	}
	return model.Presets{}
}

// Favorites returns the hydrated favorites snapshot. Read failures degrade to
// an empty list.
func (h *Hub) Favorites() []model.Favorite {
	b := h.bindings()
	if b.Favorites == nil {
		return []model.Favorite{}
	}
	favs, err := b.Favorites.Favorites(context.Background())
	if err != nil {
		log.Printf("HUB: favorites snapshot failed: %v", err)
		return []model.Favorite{}
	}
	if favs == nil {
		favs = []model.Favorite{}
	}
	return favs
}

// StoredPlaylists returns the stored-playlist snapshot.
func (h *Hub) StoredPlaylists() model.StoredPlaylistsPayload {
	b := h.bindings()
	if b.Reconciler == nil {
		return model.StoredPlaylistsPayload{Playlists: []model.StoredPlaylist{}}
	}
	return b.Reconciler.Payload()
}

// UPnPProperties returns the last-seen evented UPnP variables.
func (h *Hub) UPnPProperties() map[string]map[string]string {
	b := h.bindings()
	if b.Events == nil {
		return map[string]map[string]string{}
	}
	return b.Events.Properties()
}

// PlayAlbum replaces the queue with an album and starts playback.
func (h *Hub) PlayAlbum(ctx context.Context, albumID string) error {
	return h.playMedia(ctx, albumID)
}

// PlayTrack replaces the queue with a single track and starts playback.
func (h *Hub) PlayTrack(ctx context.Context, trackID string) error {
	return h.playMedia(ctx, trackID)
}

func (h *Hub) playMedia(ctx context.Context, mediaID string) error {
	b := h.bindings()
	if b.Reconciler == nil {
		return apperrors.NewInternalError("no reconciler is bound")
	}
	return b.Reconciler.ModifyQueue(ctx, mediaID, model.QueueActionReplace, streamer.ModifyQueueOptions{})
}

// PlayIDs replaces the queue with the given media ids, capped at maxCount
// (default 10), and starts playback of the first.
func (h *Hub) PlayIDs(ctx context.Context, mediaIDs []string, maxCount int) error {
	b := h.bindings()
	if b.Reconciler == nil {
		return apperrors.NewInternalError("no reconciler is bound")
	}
	if len(mediaIDs) == 0 {
		return apperrors.NewInputError("at least one media id is required", nil)
	}
	if maxCount <= 0 {
		maxCount = defaultPlayIDsMax
	}
	if len(mediaIDs) > maxCount {
		mediaIDs = mediaIDs[:maxCount]
	}

	for index, mediaID := range mediaIDs {
		action := model.QueueActionAppend
		if index == 0 {
			action = model.QueueActionReplace
		}
		if err := b.Reconciler.ModifyQueue(ctx, mediaID, action, streamer.ModifyQueueOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// PlayFavoriteAlbums loads the favorited albums into the queue.
func (h *Hub) PlayFavoriteAlbums(ctx context.Context, maxCount int) error {
	b := h.bindings()
	if b.Favorites == nil {
		return apperrors.NewNotFoundError("no favorites are available", nil)
	}
	favs, err := b.Favorites.FavoriteAlbums(ctx)
	if err != nil {
		return err
	}
	return h.PlayIDs(ctx, favoriteIDs(favs), maxCount)
}

// PlayFavoriteTracks loads the favorited tracks into the queue.
func (h *Hub) PlayFavoriteTracks(ctx context.Context, maxCount int) error {
	b := h.bindings()
	if b.Favorites == nil {
		return apperrors.NewNotFoundError("no favorites are available", nil)
	}
	favs, err := b.Favorites.FavoriteTracks(ctx)
	if err != nil {
		return err
	}
	return h.PlayIDs(ctx, favoriteIDs(favs), maxCount)
}

func favoriteIDs(favs []model.Favorite) []string {
	ids := make([]string, 0, len(favs))
	for _, favorite := range favs {
		ids = append(ids, favorite.MediaID)
	}
	return ids
}
