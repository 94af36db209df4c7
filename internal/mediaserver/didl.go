package mediaserver

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// didlLite mirrors a DIDL-Lite document as returned by a ContentDirectory
// Browse result.
type didlLite struct {
	Containers []didlObject `xml:"container"`
	Items      []didlObject `xml:"item"`
}

type didlObject struct {
	ID                  string    `xml:"id,attr"`
	ParentID            string    `xml:"parentID,attr"`
	Title               string    `xml:"title"`
	Class               string    `xml:"class"`
	Creator             string    `xml:"creator"`
	Date                string    `xml:"date"`
	Artist              string    `xml:"artist"`
	Album               string    `xml:"album"`
	Genre               string    `xml:"genre"`
	AlbumArtURI         string    `xml:"albumArtURI"`
	OriginalTrackNumber string    `xml:"originalTrackNumber"`
	Resources           []didlRes `xml:"res"`
}

type didlRes struct {
	Duration string `xml:"duration,attr"`
	URL      string `xml:",chardata"`
}

// parseDIDL turns a DIDL-Lite payload into typed browse entries. Objects
// with classes we do not understand become folders so browsing never dead-
// ends on an exotic container.
func parseDIDL(payload []byte) ([]model.BrowseEntry, error) {
	var doc didlLite
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, apperrors.NewMediaServerError("unexpected DIDL-Lite payload: "+err.Error(), nil)
	}

	entries := make([]model.BrowseEntry, 0, len(doc.Containers)+len(doc.Items))
	for _, obj := range doc.Containers {
		entries = append(entries, classifyObject(obj, true))
	}
	for _, obj := range doc.Items {
		entries = append(entries, classifyObject(obj, false))
	}
	return entries, nil
}

func classifyObject(obj didlObject, container bool) model.BrowseEntry {
	class := obj.Class
	switch {
	case strings.Contains(class, "musicAlbum"):
		return model.BrowseEntry{Album: &model.Album{
			ID:          obj.ID,
			ParentID:    obj.ParentID,
			Title:       strings.TrimSpace(obj.Title),
			Creator:     strings.TrimSpace(obj.Creator),
			Date:        strings.TrimSpace(obj.Date),
			Artist:      strings.TrimSpace(obj.Artist),
			Genre:       strings.TrimSpace(obj.Genre),
			AlbumArtURI: strings.TrimSpace(obj.AlbumArtURI),
		}}
	case strings.Contains(class, "musicArtist"):
		return model.BrowseEntry{Artist: &model.Artist{
			ID:          obj.ID,
			ParentID:    obj.ParentID,
			Title:       strings.TrimSpace(obj.Title),
			Genre:       strings.TrimSpace(obj.Genre),
			AlbumArtURI: strings.TrimSpace(obj.AlbumArtURI),
		}}
	case !container && (strings.Contains(class, "musicTrack") || strings.Contains(class, "audioItem")):
		track := &model.Track{
			ID:          obj.ID,
			ParentID:    obj.ParentID,
			Title:       strings.TrimSpace(obj.Title),
			Creator:     strings.TrimSpace(obj.Creator),
			Date:        strings.TrimSpace(obj.Date),
			Artist:      strings.TrimSpace(obj.Artist),
			Album:       strings.TrimSpace(obj.Album),
			Genre:       strings.TrimSpace(obj.Genre),
			AlbumArtURI: strings.TrimSpace(obj.AlbumArtURI),
		}
		if n, err := strconv.Atoi(strings.TrimSpace(obj.OriginalTrackNumber)); err == nil {
			track.OriginalTrackNumber = n
		}
		if len(obj.Resources) > 0 {
			track.AudioURL = strings.TrimSpace(obj.Resources[0].URL)
			track.Duration = parseDIDLDuration(obj.Resources[0].Duration)
		}
		return model.BrowseEntry{Track: track}
	default:
		return model.BrowseEntry{Folder: &model.MediaFolder{
			ID:          obj.ID,
			ParentID:    obj.ParentID,
			Title:       strings.TrimSpace(obj.Title),
			AlbumArtURI: strings.TrimSpace(obj.AlbumArtURI),
		}}
	}
}

// parseDIDLDuration parses "H:MM:SS[.mmm]" to whole seconds.
func parseDIDLDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if dot := strings.IndexByte(raw, '.'); dot >= 0 {
		raw = raw[:dot]
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return hours*3600 + minutes*60 + seconds
}
