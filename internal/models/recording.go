package models

import (
	"time"
)

// CaptureMode selects how a camera session acquires frames
type CaptureMode string

const (
	CaptureModeStream CaptureMode = "stream"
	CaptureModePoll   CaptureMode = "poll"
)

// String returns the string representation of CaptureMode
func (m CaptureMode) String() string {
	return string(m)
}

// IsValid checks if the capture mode is supported
func (m CaptureMode) IsValid() bool {
	switch m {
	case CaptureModeStream, CaptureModePoll:
		return true
	default:
		return false
	}
}

// CameraState is the state of one camera session
type CameraState string

const (
	CameraStateOpening    CameraState = "opening"
	CameraStateStreaming  CameraState = "streaming"
	CameraStateFinalizing CameraState = "finalizing"
	CameraStateDone       CameraState = "done"
	CameraStateErrored    CameraState = "errored"
)

// String returns the string representation of CameraState
func (s CameraState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions can happen
func (s CameraState) IsTerminal() bool {
	return s == CameraStateDone || s == CameraStateErrored
}

// CameraDescriptor identifies one camera for the duration of a run
type CameraDescriptor struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"` // Static properties reported by the upstream service
}

// CameraOutcome is what a camera session reports back when it ends
type CameraOutcome struct {
	Camera       string        `json:"camera"`
	State        CameraState   `json:"state"`
	OutputPath   string        `json:"output_path,omitempty"` // Empty when no file was produced
	FrameCount   int64         `json:"frame_count"`
	DecodeErrors int64         `json:"decode_errors"`
	Discarded    int64         `json:"discarded"` // Stream regions dropped for lack of a start marker
	Elapsed      time.Duration `json:"elapsed"`
	AverageFPS   float64       `json:"average_fps"`
	WriterFPS    float64       `json:"writer_fps"`
	Reconciled   bool          `json:"reconciled"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Recorded reports whether the session left a video file behind
func (o CameraOutcome) Recorded() bool {
	return o.State == CameraStateDone && o.OutputPath != ""
}

// RecordingSession is one bounded-duration run across all cameras
type RecordingSession struct {
	ID             string             `json:"id"`
	OutputDir      string             `json:"output_dir"`
	Mode           CaptureMode        `json:"mode"`
	TargetDuration time.Duration      `json:"target_duration"`
	TargetFPS      float64            `json:"target_fps"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	Cameras        []CameraDescriptor `json:"cameras"`
	Outcomes       []CameraOutcome    `json:"outcomes"`
	Error          string             `json:"error,omitempty"`
}

// RecordedCount returns how many cameras produced a file
func (s *RecordingSession) RecordedCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Recorded() {
			n++
		}
	}
	return n
}

// CameraProgress is a live view of a running camera session
type CameraProgress struct {
	Camera     string      `json:"camera"`
	State      CameraState `json:"state"`
	FrameCount int64       `json:"frame_count"`
}

// RecordingStatus describes what the recorder is doing right now
type RecordingStatus struct {
	Running   bool             `json:"running"`
	SessionID string           `json:"session_id,omitempty"`
	OutputDir string           `json:"output_dir,omitempty"`
	StartedAt *time.Time       `json:"started_at,omitempty"`
	Stopping  bool             `json:"stopping"`
	Cameras   []CameraProgress `json:"cameras,omitempty"`
}
