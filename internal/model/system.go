package model

// PowerState reports device power as seen over the wire.
type PowerState string

const (
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
	PowerUnknown PowerState = "unknown"
)

// MuteState reports amplifier mute.
type MuteState string

const (
	MuteOn      MuteState = "on"
	MuteOff     MuteState = "off"
	MuteUnknown MuteState = "unknown"
)

// AudioSource is one selectable input on a device.
type AudioSource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DefaultName string `json:"defaultName,omitempty"`
	Class       string `json:"class,omitempty"`
	Nameable    bool   `json:"nameable,omitempty"`
}

// AudioSources is the ordered set of available inputs plus the active one.
type AudioSources struct {
	Available []AudioSource `json:"available"`
	Active    *AudioSource  `json:"active,omitempty"`
}

// StreamerDeviceDisplay mirrors the streamer's front-panel display.
type StreamerDeviceDisplay struct {
	Line1    string           `json:"line1,omitempty"`
	Line2    string           `json:"line2,omitempty"`
	Line3    string           `json:"line3,omitempty"`
	Format   string           `json:"format,omitempty"`
	MQA      string           `json:"mqa,omitempty"`
	Playlist string           `json:"playlist,omitempty"`
	ArtURL   string           `json:"artUrl,omitempty"`
	Progress *DisplayProgress `json:"progress,omitempty"`
}

// DisplayProgress is the position/duration pair shown on the display.
type DisplayProgress struct {
	Position int `json:"position"`
	Duration int `json:"duration"`
}

// StreamerState is the normalized streamer device state.
type StreamerState struct {
	Name    string                `json:"name"`
	Power   PowerState            `json:"power"`
	Sources AudioSources          `json:"sources"`
	Display StreamerDeviceDisplay `json:"display"`
}

// MediaServerState is the normalized media server device state.
type MediaServerState struct {
	Name string `json:"name"`
}

// AmplifierAction names one capability an amplifier variant supports.
type AmplifierAction string

const (
	AmplifierActionVolume       AmplifierAction = "volume"
	AmplifierActionMute         AmplifierAction = "mute"
	AmplifierActionVolumeUpDown AmplifierAction = "volume_up_down"
	AmplifierActionPower        AmplifierAction = "power"
	AmplifierActionSource       AmplifierAction = "source"
)

// AmplifierState is the normalized amplifier device state. Volume is 0.0-1.0
// or nil when unknown.
type AmplifierState struct {
	Name             string            `json:"name"`
	SupportedActions []AmplifierAction `json:"supportedActions"`
	Power            PowerState        `json:"power"`
	Mute             MuteState         `json:"mute"`
	Volume           *float64          `json:"volume,omitempty"`
	Sources          AudioSources      `json:"sources"`
}

// SystemState composes the per-device states into the full system view.
type SystemState struct {
	Power       PowerState        `json:"power"`
	Streamer    StreamerState     `json:"streamer"`
	MediaServer *MediaServerState `json:"media,omitempty"`
	Amplifier   *AmplifierState   `json:"amplifier,omitempty"`
}
