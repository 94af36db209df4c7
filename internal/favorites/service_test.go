package favorites

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// fakeResolver resolves only the media ids it was seeded with.
type fakeResolver struct {
	albums map[string]model.Album
	tracks map[string]model.Track
}

func (f *fakeResolver) Album(_ context.Context, id string) (model.Album, error) {
	if album, ok := f.albums[id]; ok {
		return album, nil
	}
	return model.Album{}, apperrors.NewNotFoundResource("album", id)
}

func (f *fakeResolver) Track(_ context.Context, id string) (model.Track, error) {
	if track, ok := f.tracks[id]; ok {
		return track, nil
	}
	return model.Track{}, apperrors.NewNotFoundResource("track", id)
}

type publishRecorder struct {
	mu    sync.Mutex
	count int
}

func (p *publishRecorder) publish(messageType model.UpdateMessageType, _ any) {
	if messageType != model.UpdateFavorites {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
}

func (p *publishRecorder) emitted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func testFavorites(t *testing.T, resolver MediaResolver) (*Service, *Repository, *publishRecorder) {
	t.Helper()
	pair, err := db.Init(filepath.Join(t.TempDir(), "vibin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })

	repo := NewRepository(pair)
	recorder := &publishRecorder{}
	return NewService(repo, resolver, recorder.publish), repo, recorder
}

func seededResolver() *fakeResolver {
	return &fakeResolver{
		albums: map[string]model.Album{
			"a1": {ID: "a1", Title: "Kind of Blue", Artist: "Miles Davis"},
		},
		tracks: map[string]model.Track{
			"t1": {ID: "t1", Title: "So What", Artist: "Miles Davis"},
		},
	}
}

func TestAddAndListFavorites(t *testing.T) {
	service, _, recorder := testFavorites(t, seededResolver())
	ctx := context.Background()

	require.NoError(t, service.Add(ctx, TypeAlbum, "a1"))
	require.NoError(t, service.Add(ctx, TypeTrack, "t1"))

	favorites, err := service.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 2)

	albums, err := service.FavoriteAlbums(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 1)
	require.Equal(t, "a1", albums[0].MediaID)
	album, ok := albums[0].Media.(model.Album)
	require.True(t, ok)
	require.Equal(t, "Kind of Blue", album.Title)

	require.Equal(t, 2, recorder.emitted())
}

func TestAddRejectsUnknownType(t *testing.T) {
	service, _, _ := testFavorites(t, seededResolver())
	err := service.Add(context.Background(), "artist", "a1")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
}

func TestAddRejectsUnresolvableMedia(t *testing.T) {
	service, _, _ := testFavorites(t, seededResolver())
	err := service.Add(context.Background(), TypeAlbum, "missing")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeNotFound, appErr.Code)
}

func TestDuplicateAddKeepsOneRecord(t *testing.T) {
	service, repo, _ := testFavorites(t, seededResolver())
	ctx := context.Background()

	require.NoError(t, service.Add(ctx, TypeAlbum, "a1"))
	require.NoError(t, service.Add(ctx, TypeAlbum, "a1"))

	stored, err := repo.List()
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestUnresolvableFavoriteOmittedButKept(t *testing.T) {
	resolver := seededResolver()
	service, repo, _ := testFavorites(t, resolver)
	ctx := context.Background()

	require.NoError(t, service.Add(ctx, TypeAlbum, "a1"))

	// The album disappears from the media server.
	delete(resolver.albums, "a1")

	favorites, err := service.Favorites(ctx)
	require.NoError(t, err)
	require.Empty(t, favorites)

	// The stored record survives; the favorite reappears with the media.
	stored, err := repo.List()
	require.NoError(t, err)
	require.Len(t, stored, 1)

	resolver.albums["a1"] = model.Album{ID: "a1", Title: "Kind of Blue"}
	favorites, err = service.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
}

func TestRemoveFavorite(t *testing.T) {
	service, _, recorder := testFavorites(t, seededResolver())
	ctx := context.Background()

	require.NoError(t, service.Add(ctx, TypeTrack, "t1"))
	require.NoError(t, service.Remove(ctx, "t1"))
	require.Equal(t, 2, recorder.emitted())

	favorites, err := service.Favorites(ctx)
	require.NoError(t, err)
	require.Empty(t, favorites)

	err = service.Remove(ctx, "t1")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrorCodeNotFound, appErr.Code)
}
