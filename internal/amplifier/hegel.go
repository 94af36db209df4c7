package amplifier

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/conn"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// hegelPort is the amplifier's fixed control port.
const hegelPort = 50001

// dropTimerInterval is how often the connection-drop timer is refreshed. The
// amplifier closes idle control connections unless the timer is re-armed at
// least every 2 minutes; r.3 schedules a 3-minute drop, so each refresh
// lands well inside the window.
const dropTimerInterval = 2 * time.Minute

// Hegel drives a Hegel amplifier over its line-oriented TCP protocol.
// Packets are "-<cmd>.<param>\r"; state pulls are "?" params.
type Hegel struct {
	host    string
	publish model.PublishFunc
	worker  *conn.TCPWorker

	mu      sync.Mutex
	state   model.AmplifierState
	started bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHegel creates the adapter for a Hegel amplifier at the given host.
func NewHegel(host string, publish model.PublishFunc) *Hegel {
	h := &Hegel{
		host:    host,
		publish: publish,
		state: model.AmplifierState{
			Name: "Hegel " + host,
			SupportedActions: []model.AmplifierAction{
				model.AmplifierActionVolume,
				model.AmplifierActionMute,
				model.AmplifierActionVolumeUpDown,
				model.AmplifierActionPower,
				model.AmplifierActionSource,
			},
			Power:   model.PowerUnknown,
			Mute:    model.MuteUnknown,
			Sources: hegelSources(),
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	h.worker = conn.NewTCPWorker("AMPLIFIER", fmt.Sprintf("%s:%d", host, hegelPort), '\r', conn.TCPCallbacks{
		OnConnect:    h.onConnect,
		OnData:       h.onLine,
		OnDisconnect: h.onDisconnect,
	})
	return h
}

// hegelSources enumerates the amplifier's nine fixed inputs.
func hegelSources() model.AudioSources {
	available := make([]model.AudioSource, 0, 9)
	for input := 1; input <= 9; input++ {
		available = append(available, model.AudioSource{
			ID:   strconv.Itoa(input),
			Name: "Input " + strconv.Itoa(input),
		})
	}
	return model.AudioSources{Available: available}
}

// Start launches the TCP worker and the drop-timer refresh loop.
func (h *Hegel) Start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	h.worker.Start()
	go h.refreshLoop()
}

// Stop halts the refresh loop, tears the worker down, and joins both.
func (h *Hegel) Stop() {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	if started {
		<-h.doneCh
	}
	h.worker.Stop()
}

// Name returns the amplifier's display name.
func (h *Hegel) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Name
}

// State returns a snapshot of the normalized amplifier state.
func (h *Hegel) State() model.AmplifierState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// onConnect pulls the full state so the snapshot is populated before any
// change events arrive.
func (h *Hegel) onConnect(send func(line []byte) error) error {
	for _, cmd := range []byte{'p', 'i', 'v', 'm'} {
		if err := send([]byte(fmt.Sprintf("-%c.?", cmd))); err != nil {
			return err
		}
	}
	return send([]byte("-r.3"))
}

func (h *Hegel) onDisconnect(err error) {
	if err != nil {
		log.Printf("AMPLIFIER: connection lost: %v", err)
	}
}

// refreshLoop re-arms the amplifier's connection-drop timer.
func (h *Hegel) refreshLoop() {
	defer close(h.doneCh)

	ticker := time.NewTicker(dropTimerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if err := h.worker.Send([]byte("-r.3")); err != nil && err != conn.ErrNotConnected {
				log.Printf("AMPLIFIER: drop-timer refresh failed: %v", err)
			}
		}
	}
}

// onLine parses one "-<cmd>.<value>" response and folds it into the state.
// Every observed change emits a System update.
func (h *Hegel) onLine(line []byte) {
	cmd, value, err := parseHegelLine(string(line))
	if err != nil {
		log.Printf("AMPLIFIER: %v", err)
		return
	}

	h.mu.Lock()
	changed := false
	switch cmd {
	case 'p':
		power := model.PowerOff
		if value == "1" {
			power = model.PowerOn
		}
		changed = h.state.Power != power
		h.state.Power = power
	case 'm':
		mute := model.MuteOff
		if value == "1" {
			mute = model.MuteOn
		}
		changed = h.state.Mute != mute
		h.state.Mute = mute
	case 'v':
		if raw, err := strconv.Atoi(value); err == nil && raw >= 0 && raw <= 100 {
			volume := float64(raw) / 100
			changed = h.state.Volume == nil || *h.state.Volume != volume
			h.state.Volume = &volume
		}
	case 'i':
		for index := range h.state.Sources.Available {
			if h.state.Sources.Available[index].ID == value {
				source := h.state.Sources.Available[index]
				changed = h.state.Sources.Active == nil || h.state.Sources.Active.ID != source.ID
				h.state.Sources.Active = &source
				break
			}
		}
	case 'e':
		h.mu.Unlock()
		log.Printf("AMPLIFIER: device reported error e.%s", value)
		return
	case 'r':
		// Drop-timer acknowledgement; nothing to fold in.
		h.mu.Unlock()
		return
	default:
		h.mu.Unlock()
		log.Printf("AMPLIFIER: ignoring response -%c.%s", cmd, value)
		return
	}
	state := h.state
	h.mu.Unlock()

	if changed {
		h.publish(model.UpdateSystem, state)
	}
}

// parseHegelLine splits a "-<cmd>.<value>" frame. The leading dash is
// optional in error responses.
func parseHegelLine(line string) (byte, string, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "-")
	if len(line) < 3 || line[1] != '.' {
		return 0, "", fmt.Errorf("unparseable amplifier response %q", line)
	}
	return line[0], line[2:], nil
}

// command sends one "-<cmd>.<param>" frame.
func (h *Hegel) command(cmd byte, param string) error {
	if err := h.worker.Send([]byte(fmt.Sprintf("-%c.%s", cmd, param))); err != nil {
		return apperrors.NewDeviceError("amplifier command failed: "+err.Error(), nil)
	}
	return nil
}

func (h *Hegel) SetPower(_ context.Context, power model.PowerState) error {
	param := "0"
	if power == model.PowerOn {
		param = "1"
	}
	return h.command('p', param)
}

func (h *Hegel) TogglePower(context.Context) error {
	return h.command('p', "t")
}

func (h *Hegel) SetVolume(_ context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return apperrors.NewInputError("volume must be within [0, 1]", nil)
	}
	return h.command('v', strconv.Itoa(int(volume*100)))
}

func (h *Hegel) VolumeUp(context.Context) error {
	return h.command('v', "u")
}

func (h *Hegel) VolumeDown(context.Context) error {
	return h.command('v', "d")
}

func (h *Hegel) SetMute(_ context.Context, mute model.MuteState) error {
	param := "0"
	if mute == model.MuteOn {
		param = "1"
	}
	return h.command('m', param)
}

func (h *Hegel) ToggleMute(context.Context) error {
	return h.command('m', "t")
}

func (h *Hegel) SetSource(_ context.Context, source string) error {
	input, err := strconv.Atoi(source)
	if err != nil || input < 1 || input > 9 {
		return apperrors.NewInputError("amplifier source must be an input number 1-9: "+source, nil)
	}
	return h.command('i', strconv.Itoa(input))
}
