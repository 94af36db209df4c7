package streamer

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// playControl issues one zone/play_control command.
func (s *Service) playControl(ctx context.Context, key, value string) error {
	query := url.Values{}
	query.Set(key, value)
	return s.smoipGet(ctx, "zone/play_control", query, nil)
}

// Play resumes playback. No-op when already playing or when play is not an
// active control.
func (s *Service) Play(ctx context.Context) (model.TransportState, error) {
	transport := s.TransportState()
	if transport.PlayState == model.PlayStatePlay || !transport.SupportsAction(model.TransportActionPlay) {
		return transport, nil
	}
	if err := s.playControl(ctx, "action", "play"); err != nil {
		return transport, err
	}
	return s.TransportState(), nil
}

// Pause pauses playback. No-op when already paused or when pause is not an
// active control.
func (s *Service) Pause(ctx context.Context) (model.TransportState, error) {
	transport := s.TransportState()
	if transport.PlayState == model.PlayStatePause || !transport.SupportsAction(model.TransportActionPause) {
		return transport, nil
	}
	if err := s.playControl(ctx, "action", "pause"); err != nil {
		return transport, err
	}
	return s.TransportState(), nil
}

// StopPlayback halts playback; it requires stop among the active controls.
func (s *Service) StopPlayback(ctx context.Context) (model.TransportState, error) {
	transport := s.TransportState()
	if !transport.SupportsAction(model.TransportActionStop) {
		return transport, apperrors.NewInputError("stop is not currently available", nil)
	}
	if err := s.playControl(ctx, "action", "stop"); err != nil {
		return transport, err
	}
	return s.TransportState(), nil
}

// TogglePlayback flips between play and pause.
func (s *Service) TogglePlayback(ctx context.Context) (model.TransportState, error) {
	if err := s.playControl(ctx, "action", "toggle"); err != nil {
		return s.TransportState(), err
	}
	return s.TransportState(), nil
}

// Next skips to the next track.
func (s *Service) Next(ctx context.Context) (model.TransportState, error) {
	if err := s.playControl(ctx, "skip_track", "1"); err != nil {
		return s.TransportState(), err
	}
	return s.TransportState(), nil
}

// Previous skips to the previous track.
func (s *Service) Previous(ctx context.Context) (model.TransportState, error) {
	if err := s.playControl(ctx, "skip_track", "-1"); err != nil {
		return s.TransportState(), err
	}
	return s.TransportState(), nil
}

// ToggleRepeat cycles the repeat mode.
func (s *Service) ToggleRepeat(ctx context.Context) (model.TransportState, error) {
	if err := s.playControl(ctx, "mode_repeat", "toggle"); err != nil {
		return s.TransportState(), err
	}
	return s.TransportState(), nil
}

// ToggleShuffle cycles the shuffle mode.
func (s *Service) ToggleShuffle(ctx context.Context) (model.TransportState, error) {
	if err := s.playControl(ctx, "mode_shuffle", "toggle"); err != nil {
		return s.TransportState(), err
	}
	return s.TransportState(), nil
}

// Seek moves playback to the given target. target may be a float in [0,1]
// (fraction of the active track), an integer second count, or "h:mm:ss".
func (s *Service) Seek(ctx context.Context, target string) error {
	s.mu.Lock()
	duration := s.playing.ActiveTrack.Duration
	s.mu.Unlock()

	seconds, err := parseSeekTarget(target, duration)
	if err != nil {
		return err
	}
	return s.playControl(ctx, "position", strconv.Itoa(seconds))
}

// PlayQueueID starts playback of the queue item with the given streamer id.
func (s *Service) PlayQueueID(ctx context.Context, itemID int) error {
	return s.playControl(ctx, "queue_id", strconv.Itoa(itemID))
}

// PlayQueuePosition starts playback of the queue item at the given position.
func (s *Service) PlayQueuePosition(ctx context.Context, position int) error {
	queue := s.Queue()
	if position < 0 || position >= len(queue.Items) {
		return apperrors.NewNotFoundError("no queue item at position "+strconv.Itoa(position), nil)
	}
	return s.playControl(ctx, "queue_position", strconv.Itoa(position))
}

// PlayPreset recalls a preset slot.
func (s *Service) PlayPreset(ctx context.Context, presetID int) error {
	query := url.Values{}
	query.Set("preset", strconv.Itoa(presetID))
	return s.smoipGet(ctx, "zone/recall_preset", query, nil)
}

// SetSource switches the streamer's active source by id or name.
func (s *Service) SetSource(ctx context.Context, source string) error {
	state := s.State()
	resolved := ""
	for _, candidate := range state.Sources.Available {
		if candidate.ID == source || candidate.Name == source {
			resolved = candidate.ID
			break
		}
	}
	if resolved == "" {
		return apperrors.NewInputError("unknown source: "+source, nil)
	}

	query := url.Values{}
	query.Set("source", resolved)
	return s.smoipGet(ctx, "zone/state", query, nil)
}

// TogglePower flips the streamer's power state.
func (s *Service) TogglePower(ctx context.Context) error {
	query := url.Values{}
	query.Set("power", "toggle")
	return s.smoipGet(ctx, "system/power", query, nil)
}

// parseSeekTarget normalizes the three accepted seek forms into whole
// seconds. duration is the active track's length, 0 when unknown.
func parseSeekTarget(target string, duration int) (int, error) {
	if seconds, err := strconv.Atoi(target); err == nil {
		if seconds < 0 {
			return 0, apperrors.NewInputError("seek target must not be negative", nil)
		}
		return seconds, nil
	}

	if fraction, err := strconv.ParseFloat(target, 64); err == nil {
		if fraction < 0 || fraction > 1 {
			return 0, apperrors.NewInputError("fractional seek target must be within [0, 1]", nil)
		}
		// 1.0 is ambiguous with "one second"; it is read as one second, not
		// end-of-track.
		if fraction == 1.0 {
			return 1, nil
		}
		if fraction == 0 {
			return 0, nil
		}
		if duration <= 0 {
			log.Printf("STREAMER: refusing fractional seek %s, track duration unknown", target)
			return 0, apperrors.NewInputError("fractional seek requires a known track duration", nil)
		}
		return int(fraction * float64(duration)), nil
	}

	if seconds, ok := parseHMS(target); ok {
		return seconds, nil
	}

	return 0, apperrors.NewInputError("seek target must be a fraction, seconds, or h:mm:ss: "+target, nil)
}

// parseHMS parses "h:mm:ss" into whole seconds.
func parseHMS(raw string) (int, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}
