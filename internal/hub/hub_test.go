package hub

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/model"
	"github.com/vibin-audio/vibin-go/internal/playlists"
	"github.com/vibin-audio/vibin-go/internal/streamer"
)

// collector is a subscriber handler that records every delivered message.
type collector struct {
	mu       sync.Mutex
	messages []Message
}

func (c *collector) handle(message Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *collector) types() []model.UpdateMessageType {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]model.UpdateMessageType, 0, len(c.messages))
	for _, message := range c.messages {
		types = append(types, message.Type)
	}
	return types
}

func (c *collector) countOf(messageType model.UpdateMessageType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, message := range c.messages {
		if message.Type == messageType {
			count++
		}
	}
	return count
}

var primingOrder = []model.UpdateMessageType{
	model.UpdateSystem,
	model.UpdateUPnPProperties,
	model.UpdateTransportState,
	model.UpdateCurrentlyPlaying,
	model.UpdateFavorites,
	model.UpdatePresets,
	model.UpdateStoredPlaylists,
}

func TestSubscribePrimesInFixedOrder(t *testing.T) {
	h := New()
	c := &collector{}

	unsubscribe := h.Subscribe(c.handle)
	defer unsubscribe()

	types := c.types()
	require.GreaterOrEqual(t, len(types), len(primingOrder))
	require.Equal(t, primingOrder, types[:len(primingOrder)])

	// Registration is announced after the priming snapshot.
	require.Equal(t, model.UpdateVibinStatus, types[len(primingOrder)])
	status := c.messages[len(primingOrder)].Payload.(StatusPayload)
	require.Equal(t, 1, status.Clients)
}

func TestPublishRecomposesSystemPayload(t *testing.T) {
	h := New()
	c := &collector{}
	defer h.Subscribe(c.handle)()

	// Adapters publish their own partial state; the fanned-out message must
	// carry the composed system view instead.
	h.Publish(model.UpdateSystem, model.StreamerState{Name: "partial"})

	c.mu.Lock()
	last := c.messages[len(c.messages)-1]
	c.mu.Unlock()
	require.Equal(t, model.UpdateSystem, last.Type)
	_, ok := last.Payload.(model.SystemState)
	require.True(t, ok, "system payload should be the composed SystemState")
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := New()
	c := &collector{}
	observer := &collector{}
	defer h.Subscribe(observer.handle)()

	unsubscribe := h.Subscribe(c.handle)
	require.Equal(t, 2, h.SubscriberCount())

	before := observer.countOf(model.UpdateVibinStatus)
	unsubscribe()
	unsubscribe()
	require.Equal(t, 1, h.SubscriberCount())

	// A double unsubscribe announces the departure once.
	require.Equal(t, before+1, observer.countOf(model.UpdateVibinStatus))
}

func TestPrimingIsAtomicUnderConcurrentPublish(t *testing.T) {
	h := New()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.Publish(model.UpdateTransportState, model.TransportState{})
			}
		}
	}()

	for i := 0; i < 20; i++ {
		c := &collector{}
		unsubscribe := h.Subscribe(c.handle)
		types := c.types()
		require.GreaterOrEqual(t, len(types), len(primingOrder))
		require.Equal(t, primingOrder, types[:len(primingOrder)],
			"no live update may interleave the priming snapshot")
		unsubscribe()
	}

	close(stop)
	wg.Wait()
}

// fakeController simulates the streamer queue for bulk-play tests.
type fakeController struct {
	mu    sync.Mutex
	queue []string
}

func (f *fakeController) Queue() model.Queue {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]model.QueueItem, 0, len(f.queue))
	for index, mediaID := range f.queue {
		items = append(items, model.QueueItem{ID: index, Position: index, TrackMediaID: mediaID})
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
	if action == model.QueueActionReplace || action == model.QueueActionPlayFromHere {
		f.queue = []string{mediaID}
		return nil
	}
	f.queue = append(f.queue, mediaID)
	return nil
}

func (f *fakeController) PlayQueueID(context.Context, int) error            { return nil }
func (f *fakeController) PlayQueuePosition(context.Context, int) error      { return nil }
func (f *fakeController) MoveQueueItem(context.Context, int, int, int) error { return nil }
func (f *fakeController) DeleteQueueItem(context.Context, int) error        { return nil }

func boundHub(t *testing.T) (*Hub, *fakeController) {
	t.Helper()
	pair, err := db.Init(filepath.Join(t.TempDir(), "vibin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	h := New()
	controller := &fakeController{}
	reconciler := playlists.NewReconciler(playlists.NewRepository(pair), controller, h.Publish)
	h.Bind(Bindings{Reconciler: reconciler})
	return h, controller
}

func TestPlayIDsReplacesThenAppends(t *testing.T) {
	h, controller := boundHub(t)
	controller.queue = []string{"stale"}

	require.NoError(t, h.PlayIDs(context.Background(), []string{"m1", "m2", "m3"}, 0))
	require.Equal(t, []string{"m1", "m2", "m3"}, controller.Queue().TrackMediaIDs())
}

func TestPlayIDsCapsAtMaxCount(t *testing.T) {
	h, controller := boundHub(t)

	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		ids = append(ids, string(rune('a'+i)))
	}
	require.NoError(t, h.PlayIDs(context.Background(), ids, 0))
	require.Len(t, controller.Queue().Items, defaultPlayIDsMax)

	require.NoError(t, h.PlayIDs(context.Background(), ids, 3))
	require.Equal(t, []string{"a", "b", "c"}, controller.Queue().TrackMediaIDs())
}

func TestPlayIDsRequiresAtLeastOne(t *testing.T) {
	h, _ := boundHub(t)
	require.Error(t, h.PlayIDs(context.Background(), nil, 0))
}
