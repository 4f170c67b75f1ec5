package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptureModeIsValid(t *testing.T) {
	require.True(t, CaptureModeStream.IsValid())
	require.True(t, CaptureModePoll.IsValid())
	require.False(t, CaptureMode("rtsp").IsValid())
}

func TestCameraStateIsTerminal(t *testing.T) {
	require.False(t, CameraStateOpening.IsTerminal())
	require.False(t, CameraStateStreaming.IsTerminal())
	require.False(t, CameraStateFinalizing.IsTerminal())
	require.True(t, CameraStateDone.IsTerminal())
	require.True(t, CameraStateErrored.IsTerminal())
}

func TestRecordedCount(t *testing.T) {
	s := &RecordingSession{Outcomes: []CameraOutcome{
		{Camera: "a", State: CameraStateDone, OutputPath: "/x/a.mp4"},
		{Camera: "b", State: CameraStateErrored},
		{Camera: "c", State: CameraStateDone, OutputPath: "/x/c.mp4"},
		{Camera: "d", State: CameraStateDone},
	}}
	require.Equal(t, 2, s.RecordedCount())
}
