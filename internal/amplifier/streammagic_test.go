package amplifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

func TestStreamMagicPreAmpModeActions(t *testing.T) {
	recorder := &publishRecorder{}
	s := NewStreamMagic("10.0.0.7", recorder.publish)

	s.onFrame([]byte(`{
		"path": "/zone/state",
		"params": {"data": {"power": "ON", "pre_amp_mode": true, "volume_percent": 35, "mute": false}}
	}`))

	state := s.State()
	require.Equal(t, model.PowerOn, state.Power)
	require.Equal(t, model.MuteOff, state.Mute)
	require.NotNil(t, state.Volume)
	require.InDelta(t, 0.35, *state.Volume, 0.001)
	require.Equal(t, []model.AmplifierAction{
		model.AmplifierActionVolume,
		model.AmplifierActionMute,
		model.AmplifierActionVolumeUpDown,
	}, state.SupportedActions)
	require.Equal(t, 1, recorder.count())
}

func TestStreamMagicControlBusActions(t *testing.T) {
	s := NewStreamMagic("10.0.0.7", (&publishRecorder{}).publish)

	s.onFrame([]byte(`{
		"path": "/zone/state",
		"params": {"data": {"power": "ON", "pre_amp_mode": false, "cbus": "amplifier"}}
	}`))

	state := s.State()
	require.Equal(t, []model.AmplifierAction{model.AmplifierActionVolumeUpDown}, state.SupportedActions)
	require.True(t, supportsAction(state, model.AmplifierActionVolumeUpDown))
	require.False(t, supportsAction(state, model.AmplifierActionVolume))
}

func TestStreamMagicVolumeStepNormalization(t *testing.T) {
	s := NewStreamMagic("10.0.0.7", (&publishRecorder{}).publish)
	s.mu.Lock()
	s.maxVolumeStep = 30
	s.mu.Unlock()

	s.onFrame([]byte(`{
		"path": "/zone/state",
		"params": {"data": {"volume_step": 15}}
	}`))

	state := s.State()
	require.NotNil(t, state.Volume)
	require.InDelta(t, 0.5, *state.Volume, 0.001)
}

func TestStreamMagicIgnoresOtherPaths(t *testing.T) {
	recorder := &publishRecorder{}
	s := NewStreamMagic("10.0.0.7", recorder.publish)

	s.onFrame([]byte(`{"path": "/zone/play_state", "params": {"data": {"power": "ON"}}}`))
	s.onFrame([]byte(`not json`))

	require.Zero(t, recorder.count())
	require.Equal(t, model.PowerUnknown, s.State().Power)
}

func TestStreamMagicRejectsUnsupportedCommands(t *testing.T) {
	s := NewStreamMagic("10.0.0.7", (&publishRecorder{}).publish)
	ctx := context.Background()

	var appErr *apperrors.AppError
	require.ErrorAs(t, s.SetPower(ctx, model.PowerOn), &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
	require.ErrorAs(t, s.SetSource(ctx, "1"), &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)

	// No mode reported yet means no volume or mute capability.
	require.ErrorAs(t, s.SetVolume(ctx, 0.5), &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
	require.ErrorAs(t, s.SetMute(ctx, model.MuteOn), &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
}
