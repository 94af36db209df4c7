package model

// PlayState is the streamer's normalized playback state.
type PlayState string

const (
	PlayStateBuffering  PlayState = "buffering"
	PlayStateConnecting PlayState = "connecting"
	PlayStateNoSignal   PlayState = "no_signal"
	PlayStateNotReady   PlayState = "not_ready"
	PlayStatePause      PlayState = "pause"
	PlayStatePlay       PlayState = "play"
	PlayStateReady      PlayState = "ready"
	PlayStateStop       PlayState = "stop"
)

// TransportAction names one normalized transport control.
type TransportAction string

const (
	TransportActionNext           TransportAction = "next"
	TransportActionPause          TransportAction = "pause"
	TransportActionPlay           TransportAction = "play"
	TransportActionPrevious       TransportAction = "previous"
	TransportActionRepeat         TransportAction = "repeat"
	TransportActionSeek           TransportAction = "seek"
	TransportActionShuffle        TransportAction = "shuffle"
	TransportActionStop           TransportAction = "stop"
	TransportActionTogglePlayback TransportAction = "toggle_playback"
)

// RepeatState is off or all.
type RepeatState string

const (
	RepeatOff RepeatState = "off"
	RepeatAll RepeatState = "all"
)

// ShuffleState is off or all.
type ShuffleState string

const (
	ShuffleOff ShuffleState = "off"
	ShuffleAll ShuffleState = "all"
)

// TransportState is the normalized transport channel.
type TransportState struct {
	PlayState      PlayState         `json:"playState"`
	ActiveControls []TransportAction `json:"activeControls"`
	Repeat         RepeatState       `json:"repeat"`
	Shuffle        ShuffleState      `json:"shuffle"`
}

// SupportsAction reports whether the control is currently active.
func (t TransportState) SupportsAction(action TransportAction) bool {
	for _, a := range t.ActiveControls {
		if a == action {
			return true
		}
	}
	return false
}
