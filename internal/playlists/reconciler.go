package playlists

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibin-audio/vibin-go/internal/model"
	"github.com/vibin-audio/vibin-go/internal/streamer"
)

// Controller is the slice of the streamer adapter the reconciler drives. All
// queue mutations flow through the reconciler so activation and drift
// tracking stay coherent.
type Controller interface {
	Queue() model.Queue
	ClearQueue(ctx context.Context) error
	ModifyQueue(ctx context.Context, mediaID string, action model.QueueAction, opts streamer.ModifyQueueOptions) error
	PlayQueueID(ctx context.Context, itemID int) error
	PlayQueuePosition(ctx context.Context, position int) error
	MoveQueueItem(ctx context.Context, itemID, fromPosition, toPosition int) error
	DeleteQueueItem(ctx context.Context, itemID int) error
}

// Reconciler owns StoredPlaylistStatus and all stored-playlist persistence.
// It compares the live streamer queue to the active stored playlist and
// tracks drift between them.
type Reconciler struct {
	repo       *Repository
	controller Controller
	publish    model.PublishFunc

	mu             sync.Mutex
	status         model.StoredPlaylistStatus
	activeEntryIDs []string

	// suppressQueueUpdates mutes drift detection while an activation is
	// rebuilding the queue entry by entry.
	suppressQueueUpdates bool
}

// NewReconciler creates the playlist/queue reconciler.
func NewReconciler(repo *Repository, controller Controller, publish model.PublishFunc) *Reconciler {
	return &Reconciler{
		repo:       repo,
		controller: controller,
		publish:    publish,
	}
}

// Status returns a snapshot of the stored-playlist status.
func (r *Reconciler) Status() model.StoredPlaylistStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Queue returns the streamer's active queue.
func (r *Reconciler) Queue() model.Queue {
	return r.controller.Queue()
}

// Payload builds the StoredPlaylists update-message payload. Read failures
// degrade to an empty playlist list.
func (r *Reconciler) Payload() model.StoredPlaylistsPayload {
	playlists, err := r.repo.List()
	if err != nil {
		log.Printf("PLAYLISTS: list failed: %v", err)
		playlists = nil
	}
	if playlists == nil {
		playlists = []model.StoredPlaylist{}
	}
	return model.StoredPlaylistsPayload{
		Playlists: playlists,
		Status:    r.Status(),
	}
}

// List returns every stored playlist.
func (r *Reconciler) List() ([]model.StoredPlaylist, error) {
	return r.repo.List()
}

// Get returns one stored playlist.
func (r *Reconciler) Get(id string) (model.StoredPlaylist, error) {
	return r.repo.Get(id)
}

// ClearQueue empties the streamer's queue and resets the status.
func (r *Reconciler) ClearQueue(ctx context.Context) error {
	if err := r.controller.ClearQueue(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.status = model.StoredPlaylistStatus{}
	r.activeEntryIDs = nil
	r.mu.Unlock()

	r.emit()
	return nil
}

// ModifyQueue applies one queue mutation through the streamer. A REPLACE
// detaches any active stored playlist.
func (r *Reconciler) ModifyQueue(ctx context.Context, mediaID string, action model.QueueAction, opts streamer.ModifyQueueOptions) error {
	if err := r.controller.ModifyQueue(ctx, mediaID, action, opts); err != nil {
		return err
	}

	if action == model.QueueActionReplace || action == model.QueueActionPlayFromHere {
		r.mu.Lock()
		r.status.ActiveID = ""
		r.status.IsActiveSyncedWithStore = false
		r.activeEntryIDs = nil
		r.mu.Unlock()
		r.emit()
	}
	return nil
}

// PlayQueueID starts playback of a queue item by streamer id.
func (r *Reconciler) PlayQueueID(ctx context.Context, itemID int) error {
	return r.controller.PlayQueueID(ctx, itemID)
}

// PlayQueuePosition starts playback of a queue item by position.
func (r *Reconciler) PlayQueuePosition(ctx context.Context, position int) error {
	return r.controller.PlayQueuePosition(ctx, position)
}

// MoveQueueItem reorders one queue item.
func (r *Reconciler) MoveQueueItem(ctx context.Context, itemID, fromPosition, toPosition int) error {
	return r.controller.MoveQueueItem(ctx, itemID, fromPosition, toPosition)
}

// DeleteQueueItem removes one queue item.
func (r *Reconciler) DeleteQueueItem(ctx context.Context, itemID int) error {
	return r.controller.DeleteQueueItem(ctx, itemID)
}

// Activate loads a stored playlist into the streamer's active queue. Queue
// drift detection is suppressed while the queue is rebuilt entry by entry.
func (r *Reconciler) Activate(ctx context.Context, playlistID string) error {
	playlist, err := r.repo.Get(playlistID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.status.IsActivatingPlaylist = true
	r.suppressQueueUpdates = true
	r.mu.Unlock()
	r.emit()

	activateErr := func() error {
		if err := r.controller.ClearQueue(ctx); err != nil {
			return err
		}
		for _, entryID := range playlist.EntryIDs {
			if err := r.controller.ModifyQueue(ctx, entryID, model.QueueActionAppend, streamer.ModifyQueueOptions{}); err != nil {
				return err
			}
		}
		return nil
	}()

	r.mu.Lock()
	r.suppressQueueUpdates = false
	if activateErr != nil {
		r.status = model.StoredPlaylistStatus{}
		r.activeEntryIDs = nil
	} else {
		r.status = model.StoredPlaylistStatus{
			ActiveID:                playlist.ID,
			IsActiveSyncedWithStore: true,
		}
		r.activeEntryIDs = append([]string(nil), playlist.EntryIDs...)
	}
	r.mu.Unlock()

	r.emit()
	return activateErr
}

// StoreActive persists the streamer's current queue as a stored playlist.
// With replace and an active playlist, that playlist's entries are updated in
// place; otherwise a new playlist is created and marked active.
func (r *Reconciler) StoreActive(ctx context.Context, name string, replace bool) (model.StoredPlaylist, error) {
	entryIDs := r.controller.Queue().TrackMediaIDs()
	now := time.Now().UTC()

	r.mu.Lock()
	activeID := r.status.ActiveID
	r.mu.Unlock()

	if replace && activeID != "" {
		if err := r.repo.UpdateEntries(activeID, entryIDs, now); err != nil {
			return model.StoredPlaylist{}, err
		}
		if name != "" {
			if err := r.repo.UpdateName(activeID, name, now); err != nil {
				return model.StoredPlaylist{}, err
			}
		}

		r.mu.Lock()
		r.status.IsActiveSyncedWithStore = true
		r.activeEntryIDs = append([]string(nil), entryIDs...)
		r.mu.Unlock()

		r.emit()
		return r.repo.Get(activeID)
	}

	if name == "" {
		name = "Playlist " + now.Format("2006-01-02 15:04")
	}
	playlist := model.StoredPlaylist{
		ID:       uuid.NewString(),
		Name:     name,
		Created:  now,
		Updated:  now,
		EntryIDs: entryIDs,
	}
	if err := r.repo.Insert(playlist); err != nil {
		return model.StoredPlaylist{}, err
	}

	r.mu.Lock()
	r.status = model.StoredPlaylistStatus{
		ActiveID:                playlist.ID,
		IsActiveSyncedWithStore: true,
	}
	r.activeEntryIDs = append([]string(nil), entryIDs...)
	r.mu.Unlock()

	r.emit()
	return playlist, nil
}

// Delete removes a stored playlist. Deleting the active playlist detaches it
// first so the status never names a playlist missing from the store.
func (r *Reconciler) Delete(playlistID string) error {
	if err := r.repo.Delete(playlistID); err != nil {
		return err
	}

	r.mu.Lock()
	if r.status.ActiveID == playlistID {
		r.status = model.StoredPlaylistStatus{}
		r.activeEntryIDs = nil
	}
	r.mu.Unlock()

	r.emit()
	return nil
}

// UpdateMetadata renames a stored playlist.
func (r *Reconciler) UpdateMetadata(playlistID, name string) (model.StoredPlaylist, error) {
	if err := r.repo.UpdateName(playlistID, name, time.Now().UTC()); err != nil {
		return model.StoredPlaylist{}, err
	}
	r.emit()
	return r.repo.Get(playlistID)
}

// CheckOnStartup matches the streamer's current queue against the store. The
// most recently updated playlist with identical ordered entry ids becomes the
// active playlist; an empty queue clears any active id.
func (r *Reconciler) CheckOnStartup() {
	queueIDs := r.controller.Queue().TrackMediaIDs()

	if len(queueIDs) == 0 {
		r.mu.Lock()
		r.status = model.StoredPlaylistStatus{}
		r.activeEntryIDs = nil
		r.mu.Unlock()
		return
	}

	playlists, err := r.repo.List()
	if err != nil {
		log.Printf("PLAYLISTS: startup check skipped: %v", err)
		return
	}

	// List is ordered most recently updated first; first match wins.
	for _, playlist := range playlists {
		if equalIDs(playlist.EntryIDs, queueIDs) {
			r.mu.Lock()
			r.status = model.StoredPlaylistStatus{
				ActiveID:                playlist.ID,
				IsActiveSyncedWithStore: true,
			}
			r.activeEntryIDs = append([]string(nil), playlist.EntryIDs...)
			r.mu.Unlock()
			log.Printf("PLAYLISTS: queue matches stored playlist %q (%s)", playlist.Name, playlist.ID)
			return
		}
	}
}

// OnStreamerQueueModified is the hot-path hook invoked on every refreshed
// queue. It re-derives the sync flag against the active playlist; a changed
// flag is announced to subscribers.
func (r *Reconciler) OnStreamerQueueModified(queue model.Queue) {
	r.mu.Lock()
	if r.suppressQueueUpdates || r.status.ActiveID == "" {
		r.mu.Unlock()
		return
	}

	synced := equalIDs(queue.TrackMediaIDs(), r.activeEntryIDs)
	changed := r.status.IsActiveSyncedWithStore != synced
	r.status.IsActiveSyncedWithStore = synced
	r.mu.Unlock()

	if changed {
		r.emit()
	}
}

func (r *Reconciler) emit() {
	r.publish(model.UpdateStoredPlaylists, r.Payload())
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
