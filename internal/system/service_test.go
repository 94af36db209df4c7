package system

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/hub"
)

func testSystem(t *testing.T) (*Service, *db.DBPair) {
	t.Helper()
	pair, err := db.Init(filepath.Join(t.TempDir(), "vibin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })
	return NewService(pair, hub.New(), nil), pair
}

func TestSettingsRoundTrip(t *testing.T) {
	service, _ := testSystem(t)

	require.Empty(t, service.Settings())

	settings := map[string]any{
		"theme":       "dark",
		"showLyrics":  true,
		"albumsLimit": float64(50),
	}
	require.NoError(t, service.UpdateSettings(settings))
	require.Equal(t, settings, service.Settings())

	// A replace overwrites the whole document.
	replacement := map[string]any{"theme": "light"}
	require.NoError(t, service.UpdateSettings(replacement))
	require.Equal(t, replacement, service.Settings())
}

func TestSettingsDegradeOnBadRow(t *testing.T) {
	service, pair := testSystem(t)

	_, err := pair.Writer().Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)`, settingsKey, "{not json")
	require.NoError(t, err)

	require.Empty(t, service.Settings())
}

func TestExportDBCoversAllTables(t *testing.T) {
	service, pair := testSystem(t)

	require.NoError(t, service.UpdateSettings(map[string]any{"theme": "dark"}))
	_, err := pair.Writer().Exec(
		`INSERT INTO favorites (media_id, type, when_favorited) VALUES (?, ?, ?)`,
		"a1", "album", "2026-01-02 03:04:05")
	require.NoError(t, err)

	export, err := service.ExportDB()
	require.NoError(t, err)
	for _, table := range []string{"settings", "playlists", "favorites", "lyrics", "links"} {
		require.Contains(t, export, table)
	}

	favorites := export["favorites"].([]map[string]any)
	require.Len(t, favorites, 1)
	require.Equal(t, "a1", favorites[0]["media_id"])

	// Empty tables export as empty lists, not null.
	require.Empty(t, export["lyrics"])
	require.NotNil(t, export["lyrics"])
}

func TestStatusReportsSubscriberCount(t *testing.T) {
	service, _ := testSystem(t)

	require.Zero(t, service.Status().Clients)
	require.Contains(t, service.Summary(), "status")
	require.Contains(t, service.Summary(), "system")
}
