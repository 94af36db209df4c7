package amplifier

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

type publishRecorder struct {
	mu     sync.Mutex
	states []model.AmplifierState
}

func (p *publishRecorder) publish(messageType model.UpdateMessageType, payload any) {
	if messageType != model.UpdateSystem {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, payload.(model.AmplifierState))
}

func (p *publishRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

func (p *publishRecorder) last(t *testing.T) model.AmplifierState {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.states)
	return p.states[len(p.states)-1]
}

func TestParseHegelLine(t *testing.T) {
	tests := []struct {
		line    string
		cmd     byte
		value   string
		wantErr bool
	}{
		{line: "-p.1", cmd: 'p', value: "1"},
		{line: "-v.42", cmd: 'v', value: "42"},
		{line: "-i.3\r", cmd: 'i', value: "3"},
		{line: "e.2", cmd: 'e', value: "2"}, // error frames may omit the dash
		{line: "-p", wantErr: true},
		{line: "garbage", wantErr: true},
		{line: "", wantErr: true},
	}
	for _, tc := range tests {
		cmd, value, err := parseHegelLine(tc.line)
		if tc.wantErr {
			require.Error(t, err, tc.line)
			continue
		}
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.cmd, cmd, tc.line)
		require.Equal(t, tc.value, value, tc.line)
	}
}

func TestHegelFoldsResponsesIntoState(t *testing.T) {
	recorder := &publishRecorder{}
	h := NewHegel("10.0.0.5", recorder.publish)

	h.onLine([]byte("-p.1"))
	h.onLine([]byte("-v.42"))
	h.onLine([]byte("-m.0"))
	h.onLine([]byte("-i.3"))

	state := h.State()
	require.Equal(t, model.PowerOn, state.Power)
	require.Equal(t, model.MuteOff, state.Mute)
	require.NotNil(t, state.Volume)
	require.InDelta(t, 0.42, *state.Volume, 0.001)
	require.NotNil(t, state.Sources.Active)
	require.Equal(t, "3", state.Sources.Active.ID)

	require.Equal(t, 4, recorder.count())
	require.Equal(t, state, recorder.last(t))
}

func TestHegelEmitsOnlyOnChange(t *testing.T) {
	recorder := &publishRecorder{}
	h := NewHegel("10.0.0.5", recorder.publish)

	h.onLine([]byte("-p.1"))
	require.Equal(t, 1, recorder.count())

	// Repeating the same value is not a change.
	h.onLine([]byte("-p.1"))
	require.Equal(t, 1, recorder.count())

	h.onLine([]byte("-p.0"))
	require.Equal(t, 2, recorder.count())
	require.Equal(t, model.PowerOff, recorder.last(t).Power)
}

func TestHegelIgnoresNoiseFrames(t *testing.T) {
	recorder := &publishRecorder{}
	h := NewHegel("10.0.0.5", recorder.publish)

	h.onLine([]byte("-r.3"))
	h.onLine([]byte("-e.2"))
	h.onLine([]byte("not a frame"))
	h.onLine([]byte("-v.250")) // out of range

	require.Zero(t, recorder.count())
	require.Equal(t, model.PowerUnknown, h.State().Power)
}

func TestHegelInputValidation(t *testing.T) {
	h := NewHegel("10.0.0.5", (&publishRecorder{}).publish)
	ctx := context.Background()

	var appErr *apperrors.AppError
	require.ErrorAs(t, h.SetVolume(ctx, 1.5), &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)

	require.ErrorAs(t, h.SetSource(ctx, "10"), &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
	require.ErrorAs(t, h.SetSource(ctx, "tuner"), &appErr)
	require.Equal(t, apperrors.ErrorCodeInputError, appErr.Code)
}

func TestHegelCommandsFailWhenDisconnected(t *testing.T) {
	h := NewHegel("10.0.0.5", (&publishRecorder{}).publish)

	var appErr *apperrors.AppError
	require.ErrorAs(t, h.TogglePower(context.Background()), &appErr)
	require.Equal(t, apperrors.ErrorCodeDeviceError, appErr.Code)
}

func TestHegelSupportsAllActions(t *testing.T) {
	h := NewHegel("10.0.0.5", (&publishRecorder{}).publish)
	state := h.State()

	for _, action := range []model.AmplifierAction{
		model.AmplifierActionVolume,
		model.AmplifierActionMute,
		model.AmplifierActionVolumeUpDown,
		model.AmplifierActionPower,
		model.AmplifierActionSource,
	} {
		require.True(t, supportsAction(state, action), string(action))
	}
	require.Len(t, state.Sources.Available, 9)
}
