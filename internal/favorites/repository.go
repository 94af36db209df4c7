package favorites

import (
	"fmt"
	"time"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/model"
)

const timeFormat = "2006-01-02 15:04:05"

// Repository persists favorites in the favorites table. media_id is the
// primary key, so favoriting the same media twice leaves one row.
type Repository struct {
	pair *db.DBPair
}

// NewRepository creates a favorites repository.
func NewRepository(pair *db.DBPair) *Repository {
	return &Repository{pair: pair}
}

// List returns every stored favorite, most recently favorited first.
// Returned records carry no hydrated media; the service layer resolves that.
func (r *Repository) List() ([]model.Favorite, error) {
	rows, err := r.pair.Reader().Query(
		`SELECT media_id, type, when_favorited FROM favorites
		 ORDER BY when_favorited DESC, media_id`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []model.Favorite
	for rows.Next() {
		var favorite model.Favorite
		var when string
		if err := rows.Scan(&favorite.MediaID, &favorite.Type, &when); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeFormat, when); err == nil {
			favorite.WhenFavorited = t
		}
		favorites = append(favorites, favorite)
	}
	return favorites, rows.Err()
}

// Upsert stores a favorite. Re-favoriting keeps the original timestamp.
func (r *Repository) Upsert(favoriteType, mediaID string) error {
	_, err := r.pair.Writer().Exec(
		`INSERT INTO favorites (media_id, type, when_favorited) VALUES (?, ?, ?)
		 ON CONFLICT(media_id) DO UPDATE SET type = excluded.type`,
		mediaID, favoriteType, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("store favorite: %w", err)
	}
	return nil
}

// Delete removes a favorite by media id.
func (r *Repository) Delete(mediaID string) error {
	result, err := r.pair.Writer().Exec(`DELETE FROM favorites WHERE media_id = ?`, mediaID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NewNotFoundResource("favorite", mediaID)
	}
	return nil
}
