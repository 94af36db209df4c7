package model

// ActiveTrack describes the track currently rendered by the streamer.
type ActiveTrack struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	ArtURL   string `json:"artUrl,omitempty"`
	Duration int    `json:"duration,omitempty"` // seconds
}

// MediaFormat describes the audio format of the active stream.
type MediaFormat struct {
	SampleFormat string `json:"sampleFormat,omitempty"`
	MQA          string `json:"mqa,omitempty"`
	Codec        string `json:"codec,omitempty"`
	Lossless     bool   `json:"lossless,omitempty"`
	SampleRate   int    `json:"sampleRate,omitempty"`
	BitDepth     int    `json:"bitDepth,omitempty"`
	Encoding     string `json:"encoding,omitempty"`
}

// MediaStream describes where the active audio is coming from.
type MediaStream struct {
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// QueueItemMetadata carries the display fields of one queue entry.
type QueueItemMetadata struct {
	Title       string `json:"title,omitempty"`
	Album       string `json:"album,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Duration    int    `json:"duration,omitempty"` // seconds
	TrackNumber int    `json:"trackNumber,omitempty"`
	ArtURL      string `json:"artUrl,omitempty"`
	ClassName   string `json:"class,omitempty"`
}

// QueueItem is one entry in the streamer's active queue. ID is minted by the
// streamer and unique within a session; Position is dense and 0-based.
type QueueItem struct {
	ID           int               `json:"id"`
	Position     int               `json:"position"`
	URI          string            `json:"uri,omitempty"`
	Metadata     QueueItemMetadata `json:"metadata"`
	AlbumMediaID string            `json:"albumMediaId,omitempty"`
	TrackMediaID string            `json:"trackMediaId,omitempty"`
}

// Queue is the streamer's active queue.
type Queue struct {
	PlayPosition *int        `json:"playPosition,omitempty"`
	Items        []QueueItem `json:"items"`
}

// TrackMediaIDs returns the ordered trackMediaId sequence of the queue.
func (q Queue) TrackMediaIDs() []string {
	ids := make([]string, 0, len(q.Items))
	for _, item := range q.Items {
		ids = append(ids, item.TrackMediaID)
	}
	return ids
}

// CurrentlyPlaying composes everything known about active playback.
type CurrentlyPlaying struct {
	AlbumMediaID string      `json:"albumMediaId,omitempty"`
	TrackMediaID string      `json:"trackMediaId,omitempty"`
	ActiveTrack  ActiveTrack `json:"activeTrack"`
	Format       MediaFormat `json:"format"`
	Stream       MediaStream `json:"stream"`
	Queue        Queue       `json:"queue"`
}

// Preset is one streamer preset slot.
type Preset struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	ClassName string `json:"class,omitempty"`
	State     string `json:"state,omitempty"`
	IsPlaying bool   `json:"isPlaying"`
	ArtURL    string `json:"artUrl,omitempty"`
}

// Presets is the streamer's preset list.
type Presets struct {
	Start      int      `json:"start,omitempty"`
	End        int      `json:"end,omitempty"`
	MaxPresets int      `json:"maxPresets,omitempty"`
	Presets    []Preset `json:"presets"`
}
