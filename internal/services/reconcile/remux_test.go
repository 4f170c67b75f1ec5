package reconcile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// TestFakeProcess stands in for ffmpeg. It writes the input rate into the
// last argument, or fails when FAIL=1.
func TestFakeProcess(t *testing.T) {
	if os.Getenv("GO_TEST_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	if os.Getenv("FAIL") == "1" {
		fmt.Fprint(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	}

	var rate string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-r" {
			rate = args[i+1]
		}
	}
	if err := os.WriteFile(args[len(args)-1], []byte("remuxed@"+rate), 0o644); err != nil {
		os.Exit(2)
	}
	os.Exit(0)
}

func fakeCommand(env ...string) CommandFunc {
	return func(ctx context.Context, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestFakeProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append([]string{"GO_TEST_PROCESS=1"}, env...)
		return cmd
	}
}

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cam1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))
	return path
}

func TestTempPath(t *testing.T) {
	require.Equal(t, "/out/cam1.remux.mp4", TempPath("/out/cam1.mp4"))
	require.Equal(t, "/out/cam1.remux", TempPath("/out/cam1"))
}

func TestRemux(t *testing.T) {
	t.Run("replacesFile", func(t *testing.T) {
		path := writeRecording(t)
		r := NewWithCommand(fakeCommand(), time.Minute, zerolog.Nop())

		require.NoError(t, r.Remux(context.Background(), path, 29.5))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "remuxed@29.500", string(data))
		require.NoFileExists(t, TempPath(path))
	})
	t.Run("failureKeepsOriginal", func(t *testing.T) {
		path := writeRecording(t)
		r := NewWithCommand(fakeCommand("FAIL=1"), time.Minute, zerolog.Nop())

		err := r.Remux(context.Background(), path, 30)
		require.Error(t, err)
		require.Contains(t, err.Error(), "Invalid data found")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "original", string(data))
		require.NoFileExists(t, TempPath(path))
	})
	t.Run("noRate", func(t *testing.T) {
		path := writeRecording(t)
		r := NewWithCommand(fakeCommand(), time.Minute, zerolog.Nop())

		require.ErrorIs(t, r.Remux(context.Background(), path, 0), ErrNoRate)
	})
	t.Run("missingBinary", func(t *testing.T) {
		path := writeRecording(t)
		r := New(filepath.Join(t.TempDir(), "no-ffmpeg"), time.Minute, zerolog.Nop())

		require.Error(t, r.Remux(context.Background(), path, 30))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "original", string(data))
	})
}
