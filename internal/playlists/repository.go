package playlists

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// timeFormat matches the datetime('now') default used by the schema.
const timeFormat = "2006-01-02 15:04:05"

// Repository persists stored playlists in the playlists table. Entry ids are
// stored as a JSON array column.
type Repository struct {
	pair *db.DBPair
}

// NewRepository creates a playlists repository.
func NewRepository(pair *db.DBPair) *Repository {
	return &Repository{pair: pair}
}

// List returns every stored playlist, most recently updated first.
func (r *Repository) List() ([]model.StoredPlaylist, error) {
	rows, err := r.pair.Reader().Query(
		`SELECT playlist_id, name, entry_ids, created_at, updated_at
		 FROM playlists ORDER BY updated_at DESC, playlist_id`)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []model.StoredPlaylist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	return playlists, rows.Err()
}

// Get returns one stored playlist by id.
func (r *Repository) Get(id string) (model.StoredPlaylist, error) {
	row := r.pair.Reader().QueryRow(
		`SELECT playlist_id, name, entry_ids, created_at, updated_at
		 FROM playlists WHERE playlist_id = ?`, id)

	playlist, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return model.StoredPlaylist{}, apperrors.NewNotFoundResource("playlist", id)
	}
	if err != nil {
		return model.StoredPlaylist{}, fmt.Errorf("get playlist: %w", err)
	}
	return playlist, nil
}

// Insert stores a new playlist.
func (r *Repository) Insert(playlist model.StoredPlaylist) error {
	entries, err := json.Marshal(playlist.EntryIDs)
	if err != nil {
		return fmt.Errorf("marshal entry ids: %w", err)
	}
	_, err = r.pair.Writer().Exec(
		`INSERT INTO playlists (playlist_id, name, entry_ids, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		playlist.ID, playlist.Name, string(entries),
		playlist.Created.UTC().Format(timeFormat),
		playlist.Updated.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}
	return nil
}

// UpdateEntries replaces a playlist's entry ids and bumps updated_at.
func (r *Repository) UpdateEntries(id string, entryIDs []string, updated time.Time) error {
	entries, err := json.Marshal(entryIDs)
	if err != nil {
		return fmt.Errorf("marshal entry ids: %w", err)
	}
	result, err := r.pair.Writer().Exec(
		`UPDATE playlists SET entry_ids = ?, updated_at = ? WHERE playlist_id = ?`,
		string(entries), updated.UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update playlist entries: %w", err)
	}
	return requireRow(result, id)
}

// UpdateName renames a playlist and bumps updated_at.
func (r *Repository) UpdateName(id, name string, updated time.Time) error {
	result, err := r.pair.Writer().Exec(
		`UPDATE playlists SET name = ?, updated_at = ? WHERE playlist_id = ?`,
		name, updated.UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update playlist name: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes a playlist.
func (r *Repository) Delete(id string) error {
	result, err := r.pair.Writer().Exec(
		`DELETE FROM playlists WHERE playlist_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NewNotFoundResource("playlist", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row rowScanner) (model.StoredPlaylist, error) {
	var playlist model.StoredPlaylist
	var entries, created, updated string

	if err := row.Scan(&playlist.ID, &playlist.Name, &entries, &created, &updated); err != nil {
		return model.StoredPlaylist{}, err
	}

	if err := json.Unmarshal([]byte(entries), &playlist.EntryIDs); err != nil {
		return model.StoredPlaylist{}, fmt.Errorf("parse entry ids for %s: %w", playlist.ID, err)
	}
	if t, err := time.Parse(timeFormat, created); err == nil {
		playlist.Created = t
	}
	if t, err := time.Parse(timeFormat, updated); err == nil {
		playlist.Updated = t
	}
	return playlist, nil
}
