package amplifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/conn"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// StreamMagic drives a Cambridge StreamMagic device acting as the system's
// amplifier, in preamp or control-bus mode. Which actions it reports depends
// on the mode: preamp exposes volume/mute/volume_up_down, control-bus only
// volume_up_down.
type StreamMagic struct {
	host    string
	publish model.PublishFunc
	worker  *conn.WSWorker

	httpClient *http.Client

	mu            sync.Mutex
	state         model.AmplifierState
	maxVolumeStep int
	preAmpMode    bool
	controlBus    string
}

// NewStreamMagic creates the adapter for a StreamMagic amplifier at the given
// host.
func NewStreamMagic(host string, publish model.PublishFunc) *StreamMagic {
	s := &StreamMagic{
		host:       host,
		publish:    publish,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		state: model.AmplifierState{
			Name:  "StreamMagic " + host,
			Power: model.PowerUnknown,
			Mute:  model.MuteUnknown,
		},
	}

	s.worker = conn.NewWSWorker("AMPLIFIER", fmt.Sprintf("ws://%s:80/smoip", host), conn.WSCallbacks{
		OnConnect:    s.onConnect,
		OnData:       s.onFrame,
		OnDisconnect: s.onDisconnect,
	})
	return s
}

// Start launches the smoip worker.
func (s *StreamMagic) Start() {
	s.worker.Start()
}

// Stop tears the worker down and joins it.
func (s *StreamMagic) Stop() {
	s.worker.Stop()
}

// Name returns the amplifier's display name.
func (s *StreamMagic) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Name
}

// State returns a snapshot of the normalized amplifier state.
func (s *StreamMagic) State() model.AmplifierState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StreamMagic) onConnect(ws *websocket.Conn) error {
	subscribe := map[string]any{
		"path":   "/zone/state",
		"params": map[string]int{"update": 1},
	}
	if err := ws.WriteJSON(subscribe); err != nil {
		return err
	}

	// volume_step.maximum comes from the zone spec; volume is normalized
	// against it.
	go s.fetchVolumeSpec(context.Background())
	return nil
}

func (s *StreamMagic) onDisconnect(err error) {
	if err != nil {
		log.Printf("AMPLIFIER: connection lost: %v", err)
	}
}

// zoneSpecResponse mirrors /smoip/zone/state/spec.
type zoneSpecResponse struct {
	Data struct {
		VolumeStep struct {
			Maximum int `json:"maximum"`
		} `json:"volume_step"`
	} `json:"data"`
}

func (s *StreamMagic) fetchVolumeSpec(ctx context.Context) {
	var parsed zoneSpecResponse
	if err := s.smoipGet(ctx, "zone/state/spec", nil, &parsed); err != nil {
		log.Printf("AMPLIFIER: volume spec fetch failed: %v", err)
		return
	}

	s.mu.Lock()
	s.maxVolumeStep = parsed.Data.VolumeStep.Maximum
	s.mu.Unlock()
}

// zoneStateFrame mirrors the /zone/state subscription payload.
type zoneStateFrame struct {
	Path   string `json:"path"`
	Params struct {
		Data struct {
			Power      string `json:"power"`
			Volume     *int   `json:"volume_step"`
			VolumePct  *int   `json:"volume_percent"`
			Mute       *bool  `json:"mute"`
			PreAmpMode *bool  `json:"pre_amp_mode"`
			CBusMode   string `json:"cbus"`
		} `json:"data"`
	} `json:"params"`
}

func (s *StreamMagic) onFrame(frame []byte) {
	var parsed zoneStateFrame
	if err := json.Unmarshal(frame, &parsed); err != nil {
		log.Printf("AMPLIFIER: dropping unparseable frame: %v", err)
		return
	}
	if parsed.Path != "/zone/state" {
		return
	}
	data := parsed.Params.Data

	s.mu.Lock()
	changed := false

	if data.Power != "" {
		power := model.PowerOff
		if data.Power == "ON" {
			power = model.PowerOn
		}
		changed = changed || s.state.Power != power
		s.state.Power = power
	}

	if data.Mute != nil {
		mute := model.MuteOff
		if *data.Mute {
			mute = model.MuteOn
		}
		changed = changed || s.state.Mute != mute
		s.state.Mute = mute
	}

	switch {
	case data.VolumePct != nil:
		volume := float64(*data.VolumePct) / 100
		changed = changed || s.state.Volume == nil || *s.state.Volume != volume
		s.state.Volume = &volume
	case data.Volume != nil && s.maxVolumeStep > 0:
		volume := float64(*data.Volume) / float64(s.maxVolumeStep)
		changed = changed || s.state.Volume == nil || *s.state.Volume != volume
		s.state.Volume = &volume
	}

	if data.PreAmpMode != nil {
		s.preAmpMode = *data.PreAmpMode
	}
	if data.CBusMode != "" {
		s.controlBus = data.CBusMode
	}
	actions := s.supportedActionsLocked()
	changed = changed || !equalActions(s.state.SupportedActions, actions)
	s.state.SupportedActions = actions

	state := s.state
	s.mu.Unlock()

	if changed {
		s.publish(model.UpdateSystem, state)
	}
}

// supportedActionsLocked derives the action set from the device mode. Caller
// holds s.mu.
func (s *StreamMagic) supportedActionsLocked() []model.AmplifierAction {
	switch {
	case s.preAmpMode:
		return []model.AmplifierAction{
			model.AmplifierActionVolume,
			model.AmplifierActionMute,
			model.AmplifierActionVolumeUpDown,
		}
	case s.controlBus == "amplifier":
		return []model.AmplifierAction{model.AmplifierActionVolumeUpDown}
	default:
		return nil
	}
}

func equalActions(a, b []model.AmplifierAction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *StreamMagic) smoipGet(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := fmt.Sprintf("http://%s/smoip/%s", s.host, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.NewInternalError(err.Error())
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.NewDeviceError("amplifier unreachable: "+err.Error(), nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewDeviceError("amplifier response read failed: "+err.Error(), nil)
	}
	if resp.StatusCode >= 400 {
		return apperrors.NewDeviceError(fmt.Sprintf("amplifier rejected %s: http %d", path, resp.StatusCode), nil)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return apperrors.NewDeviceError("unexpected amplifier payload from "+path+": "+err.Error(), nil)
		}
	}
	return nil
}

func (s *StreamMagic) requireAction(action model.AmplifierAction) error {
	if !supportsAction(s.State(), action) {
		return apperrors.NewInputError("amplifier does not support "+string(action), nil)
	}
	return nil
}

func (s *StreamMagic) SetPower(context.Context, model.PowerState) error {
	return apperrors.NewInputError("amplifier does not support power", nil)
}

func (s *StreamMagic) TogglePower(context.Context) error {
	return apperrors.NewInputError("amplifier does not support power", nil)
}

func (s *StreamMagic) SetVolume(ctx context.Context, volume float64) error {
	if err := s.requireAction(model.AmplifierActionVolume); err != nil {
		return err
	}
	if volume < 0 || volume > 1 {
		return apperrors.NewInputError("volume must be within [0, 1]", nil)
	}
	query := url.Values{}
	query.Set("volume_percent", strconv.Itoa(int(volume*100)))
	return s.smoipGet(ctx, "zone/state", query, nil)
}

func (s *StreamMagic) VolumeUp(ctx context.Context) error {
	if err := s.requireAction(model.AmplifierActionVolumeUpDown); err != nil {
		return err
	}
	query := url.Values{}
	query.Set("volume_step_change", "1")
	return s.smoipGet(ctx, "zone/state", query, nil)
}

func (s *StreamMagic) VolumeDown(ctx context.Context) error {
	if err := s.requireAction(model.AmplifierActionVolumeUpDown); err != nil {
		return err
	}
	query := url.Values{}
	query.Set("volume_step_change", "-1")
	return s.smoipGet(ctx, "zone/state", query, nil)
}

func (s *StreamMagic) SetMute(ctx context.Context, mute model.MuteState) error {
	if err := s.requireAction(model.AmplifierActionMute); err != nil {
		return err
	}
	query := url.Values{}
	query.Set("mute", strconv.FormatBool(mute == model.MuteOn))
	return s.smoipGet(ctx, "zone/state", query, nil)
}

func (s *StreamMagic) ToggleMute(ctx context.Context) error {
	if s.State().Mute == model.MuteOn {
		return s.SetMute(ctx, model.MuteOff)
	}
	return s.SetMute(ctx, model.MuteOn)
}

func (s *StreamMagic) SetSource(context.Context, string) error {
	return apperrors.NewInputError("amplifier does not support source", nil)
}
