package model

// Album is a media-server album record.
type Album struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId,omitempty"`
	Title       string `json:"title"`
	Creator     string `json:"creator,omitempty"`
	Date        string `json:"date,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Genre       string `json:"genre,omitempty"`
	AlbumArtURI string `json:"albumArtUri,omitempty"`
}

// Artist is a media-server artist record.
type Artist struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId,omitempty"`
	Title       string `json:"title"`
	Genre       string `json:"genre,omitempty"`
	AlbumArtURI string `json:"albumArtUri,omitempty"`
}

// Track is a media-server track record. AlbumID names the owning album;
// OriginalTrackNumber is the on-disc track number.
type Track struct {
	ID                  string `json:"id"`
	AlbumID             string `json:"albumId,omitempty"`
	ParentID            string `json:"parentId,omitempty"`
	Title               string `json:"title"`
	Creator             string `json:"creator,omitempty"`
	Date                string `json:"date,omitempty"`
	Artist              string `json:"artist,omitempty"`
	Album               string `json:"album,omitempty"`
	Duration            int    `json:"duration,omitempty"` // seconds
	Genre               string `json:"genre,omitempty"`
	AlbumArtURI         string `json:"albumArtUri,omitempty"`
	OriginalTrackNumber int    `json:"originalTrackNumber,omitempty"`
	AudioURL            string `json:"audioUrl,omitempty"`
}

// MediaFolder is a browsable content-directory container.
type MediaFolder struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId,omitempty"`
	Title       string `json:"title"`
	AlbumArtURI string `json:"albumArtUri,omitempty"`
}

// BrowseEntry is the union returned by a children() browse: exactly one of
// the fields is set.
type BrowseEntry struct {
	Folder *MediaFolder `json:"folder,omitempty"`
	Album  *Album       `json:"album,omitempty"`
	Artist *Artist      `json:"artist,omitempty"`
	Track  *Track       `json:"track,omitempty"`
}
