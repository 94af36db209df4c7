package playlists

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/model"
	"github.com/vibin-audio/vibin-go/internal/streamer"
)

// fakeController simulates the streamer's queue without a device.
type fakeController struct {
	mu    sync.Mutex
	queue []string // trackMediaIds in order
}

func (f *fakeController) Queue() model.Queue {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]model.QueueItem, 0, len(f.queue))
	for index, mediaID := range f.queue {
		items = append(items, model.QueueItem{
			ID:           index + 100,
			Position:     index,
			TrackMediaID: mediaID,
		})
	}
	return model.Queue{Items: items}
}

func (f *fakeController) ClearQueue(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = nil
	return nil
}

func (f *fakeController) ModifyQueue(_ context.Context, mediaID string, action model.QueueAction, _ streamer.ModifyQueueOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch action {
	case model.QueueActionReplace, model.QueueActionPlayFromHere:
		f.queue = []string{mediaID}
	case model.QueueActionAppend:
		f.queue = append(f.queue, mediaID)
	}
	return nil
}

func (f *fakeController) PlayQueueID(context.Context, int) error        { return nil }
func (f *fakeController) PlayQueuePosition(context.Context, int) error  { return nil }
func (f *fakeController) MoveQueueItem(context.Context, int, int, int) error { return nil }
func (f *fakeController) DeleteQueueItem(context.Context, int) error    { return nil }

type publishRecorder struct {
	mu       sync.Mutex
	payloads []model.StoredPlaylistsPayload
}

func (p *publishRecorder) publish(messageType model.UpdateMessageType, payload any) {
	if messageType != model.UpdateStoredPlaylists {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload.(model.StoredPlaylistsPayload))
}

func (p *publishRecorder) last(t *testing.T) model.StoredPlaylistsPayload {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.payloads)
	return p.payloads[len(p.payloads)-1]
}

func testReconciler(t *testing.T) (*Reconciler, *Repository, *fakeController, *publishRecorder) {
	t.Helper()
	pair, err := db.Init(filepath.Join(t.TempDir(), "vibin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	repo := NewRepository(pair)
	controller := &fakeController{}
	recorder := &publishRecorder{}
	return NewReconciler(repo, controller, recorder.publish), repo, controller, recorder
}

func storedPlaylist(t *testing.T, repo *Repository, id, name string, entryIDs []string, updated time.Time) {
	t.Helper()
	require.NoError(t, repo.Insert(model.StoredPlaylist{
		ID:       id,
		Name:     name,
		Created:  updated,
		Updated:  updated,
		EntryIDs: entryIDs,
	}))
}

func TestActivateLoadsPlaylistIntoQueue(t *testing.T) {
	reconciler, repo, controller, recorder := testReconciler(t)
	storedPlaylist(t, repo, "P", "Evening", []string{"m1", "m2", "m3"}, time.Now().UTC())

	require.NoError(t, reconciler.Activate(context.Background(), "P"))

	require.Equal(t, []string{"m1", "m2", "m3"}, controller.Queue().TrackMediaIDs())

	status := recorder.last(t).Status
	require.Equal(t, "P", status.ActiveID)
	require.True(t, status.IsActiveSyncedWithStore)
	require.False(t, status.IsActivatingPlaylist)
}

func TestActivateUnknownPlaylist(t *testing.T) {
	reconciler, _, _, _ := testReconciler(t)
	err := reconciler.Activate(context.Background(), "missing")
	require.Error(t, err)
}

func TestQueueDriftFlipsSyncFlag(t *testing.T) {
	reconciler, repo, controller, recorder := testReconciler(t)
	storedPlaylist(t, repo, "P", "Evening", []string{"m1", "m2", "m3"}, time.Now().UTC())
	require.NoError(t, reconciler.Activate(context.Background(), "P"))

	// An appended track drifts the queue away from the store.
	require.NoError(t, controller.ModifyQueue(context.Background(), "m4", model.QueueActionAppend, streamer.ModifyQueueOptions{}))
	reconciler.OnStreamerQueueModified(controller.Queue())

	status := recorder.last(t).Status
	require.Equal(t, "P", status.ActiveID, "drift keeps the active playlist")
	require.False(t, status.IsActiveSyncedWithStore)

	// Removing the drift restores the flag.
	controller.mu.Lock()
	controller.queue = []string{"m1", "m2", "m3"}
	controller.mu.Unlock()
	reconciler.OnStreamerQueueModified(controller.Queue())
	require.True(t, recorder.last(t).Status.IsActiveSyncedWithStore)
}

func TestModifyQueueReplaceDetachesActivePlaylist(t *testing.T) {
	reconciler, repo, _, recorder := testReconciler(t)
	storedPlaylist(t, repo, "P", "Evening", []string{"m1"}, time.Now().UTC())
	require.NoError(t, reconciler.Activate(context.Background(), "P"))

	require.NoError(t, reconciler.ModifyQueue(context.Background(), "m9", model.QueueActionReplace, streamer.ModifyQueueOptions{}))

	status := recorder.last(t).Status
	require.Empty(t, status.ActiveID)
	require.False(t, status.IsActiveSyncedWithStore)
}

func TestStoreActiveReplaceRoundTrip(t *testing.T) {
	reconciler, repo, controller, _ := testReconciler(t)
	storedPlaylist(t, repo, "P", "Evening", []string{"m1", "m2"}, time.Now().UTC())
	require.NoError(t, reconciler.Activate(context.Background(), "P"))

	// Drift the queue, then persist it back over the active playlist.
	require.NoError(t, controller.ModifyQueue(context.Background(), "m3", model.QueueActionAppend, streamer.ModifyQueueOptions{}))
	reconciler.OnStreamerQueueModified(controller.Queue())

	playlist, err := reconciler.StoreActive(context.Background(), "", true)
	require.NoError(t, err)
	require.Equal(t, "P", playlist.ID)
	require.Equal(t, []string{"m1", "m2", "m3"}, playlist.EntryIDs)
	require.True(t, reconciler.Status().IsActiveSyncedWithStore)
}

func TestStoreActiveInsertsNewPlaylist(t *testing.T) {
	reconciler, repo, controller, _ := testReconciler(t)
	controller.queue = []string{"m1", "m2"}

	playlist, err := reconciler.StoreActive(context.Background(), "Morning", false)
	require.NoError(t, err)
	require.NotEmpty(t, playlist.ID)
	require.Equal(t, "Morning", playlist.Name)
	require.Equal(t, []string{"m1", "m2"}, playlist.EntryIDs)

	stored, err := repo.Get(playlist.ID)
	require.NoError(t, err)
	require.Equal(t, playlist.EntryIDs, stored.EntryIDs)

	status := reconciler.Status()
	require.Equal(t, playlist.ID, status.ActiveID)
	require.True(t, status.IsActiveSyncedWithStore)
}

func TestCheckOnStartup(t *testing.T) {
	reconciler, repo, controller, _ := testReconciler(t)

	// Empty queue clears any active id.
	reconciler.CheckOnStartup()
	require.Empty(t, reconciler.Status().ActiveID)

	// Two playlists match the queue; the most recently updated one wins.
	older := time.Now().UTC().Add(-2 * time.Hour)
	newer := time.Now().UTC()
	storedPlaylist(t, repo, "old", "Old", []string{"m1", "m2"}, older)
	storedPlaylist(t, repo, "new", "New", []string{"m1", "m2"}, newer)
	controller.queue = []string{"m1", "m2"}

	reconciler.CheckOnStartup()
	status := reconciler.Status()
	require.Equal(t, "new", status.ActiveID)
	require.True(t, status.IsActiveSyncedWithStore)
}

func TestDeleteActivePlaylistClearsStatus(t *testing.T) {
	reconciler, repo, _, _ := testReconciler(t)
	storedPlaylist(t, repo, "P", "Evening", []string{"m1"}, time.Now().UTC())
	require.NoError(t, reconciler.Activate(context.Background(), "P"))

	require.NoError(t, reconciler.Delete("P"))
	require.Empty(t, reconciler.Status().ActiveID)

	_, err := repo.Get("P")
	require.Error(t, err)
}

func TestUpdateMetadataRenames(t *testing.T) {
	reconciler, repo, _, _ := testReconciler(t)
	storedPlaylist(t, repo, "P", "Evening", []string{"m1"}, time.Now().UTC())

	playlist, err := reconciler.UpdateMetadata("P", "Late Night")
	require.NoError(t, err)
	require.Equal(t, "Late Night", playlist.Name)
	require.Equal(t, []string{"m1"}, playlist.EntryIDs)
}
