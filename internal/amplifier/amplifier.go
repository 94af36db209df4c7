package amplifier

import (
	"context"

	"github.com/vibin-audio/vibin-go/internal/model"
)

// Amplifier is the normalized control surface shared by both variants.
// Callers branch on State().SupportedActions, not on the concrete type.
type Amplifier interface {
	Start()
	Stop()

	Name() string
	State() model.AmplifierState

	SetPower(ctx context.Context, power model.PowerState) error
	TogglePower(ctx context.Context) error
	SetVolume(ctx context.Context, volume float64) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	SetMute(ctx context.Context, mute model.MuteState) error
	ToggleMute(ctx context.Context) error
	SetSource(ctx context.Context, source string) error
}

// supportsAction reports whether the amplifier declares the capability.
func supportsAction(state model.AmplifierState, action model.AmplifierAction) bool {
	for _, a := range state.SupportedActions {
		if a == action {
			return true
		}
	}
	return false
}
