package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAMERAS", "")
	t.Setenv("CAPTURE_MODE", "")

	cfg := Load()
	require.Equal(t, "http://api-yolo:3002", cfg.UpstreamURL)
	require.Equal(t, "stream", cfg.CaptureMode)
	require.Equal(t, time.Minute, cfg.RecordDuration)
	require.Equal(t, 8192, cfg.ReadChunkSize)
	require.Equal(t, 2*time.Second, cfg.SettleDelay)
	require.Empty(t, cfg.Cameras)
	require.False(t, cfg.AbortOnCameraError)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://inference:9000/")
	t.Setenv("CAMERAS", " cam1, cam2 ,,cam3 ")
	t.Setenv("TARGET_FPS", "12.5")
	t.Setenv("RECORD_DURATION", "90s")
	t.Setenv("ABORT_ON_CAMERA_ERROR", "true")
	t.Setenv("VIDEO_EXTENSION", ".avi")
	t.Setenv("READ_CHUNK_SIZE", "not-a-number")
	t.Setenv("LOOP", "1")
	t.Setenv("LOOP_PAUSE", "5s")

	cfg := Load()
	require.Equal(t, "http://inference:9000", cfg.UpstreamURL)
	require.Equal(t, []string{"cam1", "cam2", "cam3"}, cfg.Cameras)
	require.Equal(t, 12.5, cfg.TargetFPS)
	require.Equal(t, 90*time.Second, cfg.RecordDuration)
	require.True(t, cfg.AbortOnCameraError)
	require.Equal(t, "avi", cfg.VideoExtension)
	require.Equal(t, 8192, cfg.ReadChunkSize)
	require.True(t, cfg.Loop)
	require.Equal(t, 5*time.Second, cfg.LoopPause)
}

func TestFrameBudgetFor(t *testing.T) {
	cfg := &Config{TargetFPS: 20}
	require.Zero(t, cfg.FrameBudgetFor(time.Minute))

	cfg.FrameBudget = true
	require.Equal(t, int64(1200), cfg.FrameBudgetFor(time.Minute))

	cfg.TargetFPS = 0
	require.Zero(t, cfg.FrameBudgetFor(time.Minute))
}
