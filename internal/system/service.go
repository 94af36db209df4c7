package system

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/hub"
	"github.com/vibin-audio/vibin-go/internal/mediaserver"
)

// settingsKey is the settings-table row holding the client settings document.
const settingsKey = "settings"

// Service answers the server-meta surface: status, summary, persisted client
// settings, cache clearing, and the store export.
type Service struct {
	pair  *db.DBPair
	hub   *hub.Hub
	media *mediaserver.Service // nil when no media server was resolved
}

// NewService creates the system service.
func NewService(pair *db.DBPair, h *hub.Hub, media *mediaserver.Service) *Service {
	return &Service{pair: pair, hub: h, media: media}
}

// Status returns the VibinStatus payload.
func (s *Service) Status() hub.StatusPayload {
	return s.hub.Status()
}

// Summary composes a one-shot overview of the system.
func (s *Service) Summary() map[string]any {
	return map[string]any{
		"status": s.hub.Status(),
		"system": s.hub.SystemState(),
	}
}

// Settings returns the persisted client settings document. A missing or
// unreadable row degrades to an empty document.
func (s *Service) Settings() map[string]any {
	row := s.pair.Reader().QueryRow(`SELECT value FROM settings WHERE key = ?`, settingsKey)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err != sql.ErrNoRows {
			log.Printf("SYSTEM: settings read failed: %v", err)
		}
		return map[string]any{}
	}

	var settings map[string]any
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		log.Printf("SYSTEM: settings parse failed: %v", err)
		return map[string]any{}
	}
	return settings
}

// UpdateSettings replaces the persisted client settings document.
func (s *Service) UpdateSettings(settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.pair.Writer().Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		settingsKey, string(raw))
	if err != nil {
		return fmt.Errorf("store settings: %w", err)
	}
	return nil
}

// ClearMediaCaches discards the media-server adapter's caches.
func (s *Service) ClearMediaCaches() {
	if s.media != nil {
		s.media.ClearCaches()
	}
}

// ExportDB dumps every store table as one JSON document.
func (s *Service) ExportDB() (map[string]any, error) {
	export := map[string]any{}
	for _, table := range []string{"settings", "playlists", "favorites", "lyrics", "links"} {
		rows, err := s.exportTable(table)
		if err != nil {
			return nil, err
		}
		export[table] = rows
	}
	return export, nil
}

func (s *Service) exportTable(table string) ([]map[string]any, error) {
	rows, err := s.pair.Reader().Query("SELECT * FROM " + table)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(columns))
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				record[column] = string(raw)
			} else {
				record[column] = values[i]
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
