package model

import "time"

// QueueAction names a queue mutation.
type QueueAction string

const (
	QueueActionReplace      QueueAction = "REPLACE"
	QueueActionAppend       QueueAction = "APPEND"
	QueueActionPlayNow      QueueAction = "PLAY_NOW"
	QueueActionPlayNext     QueueAction = "PLAY_NEXT"
	QueueActionPlayFromHere QueueAction = "PLAY_FROM_HERE"
)

// ParseQueueAction validates a wire-form queue action.
func ParseQueueAction(raw string) (QueueAction, bool) {
	switch QueueAction(raw) {
	case QueueActionReplace, QueueActionAppend, QueueActionPlayNow,
		QueueActionPlayNext, QueueActionPlayFromHere:
		return QueueAction(raw), true
	}
	return "", false
}

// StoredPlaylist is a named, persisted ordered list of MediaIds maintained
// independently of the streamer.
type StoredPlaylist struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	EntryIDs []string  `json:"entryIds"`
}

// StoredPlaylistStatus tracks which stored playlist, if any, is loaded in
// the streamer's active queue and whether the two are in sync.
type StoredPlaylistStatus struct {
	ActiveID                string `json:"activeId,omitempty"`
	IsActiveSyncedWithStore bool   `json:"isActiveSyncedWithStore"`
	IsActivatingPlaylist    bool   `json:"isActivatingPlaylist"`
}

// StoredPlaylistsPayload is the StoredPlaylists update-message payload.
type StoredPlaylistsPayload struct {
	Playlists []StoredPlaylist     `json:"playlists"`
	Status    StoredPlaylistStatus `json:"status"`
}

// Favorite is a persisted album or track favorite. Media carries the
// hydrated record when the id still resolves.
type Favorite struct {
	Type          string    `json:"type"`
	MediaID       string    `json:"mediaId"`
	WhenFavorited time.Time `json:"whenFavorited"`
	Media         any       `json:"media,omitempty"`
}
