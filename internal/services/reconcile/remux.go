// Package reconcile rewrites finished recordings so their container frame
// rate matches the rate frames were actually captured at.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoRate is returned when asked to remux to a non-positive rate.
var ErrNoRate = errors.New("no valid target frame rate")

// CommandFunc builds the ffmpeg command. Tests swap it for a fake process.
type CommandFunc func(ctx context.Context, args ...string) *exec.Cmd

// Remuxer runs ffmpeg with the measured rate as the input rate and copies
// the stream, so timestamps are rewritten without re-encoding.
type Remuxer struct {
	command CommandFunc
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a remuxer for the given ffmpeg binary.
func New(bin string, timeout time.Duration, logger zerolog.Logger) *Remuxer {
	return &Remuxer{
		command: func(ctx context.Context, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, bin, args...)
		},
		timeout: timeout,
		logger:  logger,
	}
}

// NewWithCommand creates a remuxer that starts processes through command.
func NewWithCommand(command CommandFunc, timeout time.Duration, logger zerolog.Logger) *Remuxer {
	return &Remuxer{command: command, timeout: timeout, logger: logger}
}

// TempPath is where the remuxed copy is written before it replaces path.
func TempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".remux" + ext
}

// Remux replaces path with a copy whose nominal rate is fps. On any failure
// the original file is left untouched.
func (r *Remuxer) Remux(ctx context.Context, path string, fps float64) error {
	if fps <= 0 {
		return ErrNoRate
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tmp := TempPath(path)
	rate := strconv.FormatFloat(fps, 'f', 3, 64)
	args := []string{
		"-y",
		"-loglevel", "error",
		"-r", rate,
		"-i", path,
		"-c", "copy",
		tmp,
	}

	cmd := r.command(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg remux %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	r.logger.Debug().
		Str("path", path).
		Str("rate", rate).
		Dur("took", time.Since(start)).
		Msg("Remuxed to measured frame rate")
	return nil
}
