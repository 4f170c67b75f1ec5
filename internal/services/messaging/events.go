package messaging

import (
	"time"

	"kepler-recorder-go/internal/models"
)

// Event kinds, appended to the configured subject prefix.
const (
	SessionStarted  = "session.started"
	SessionFinished = "session.finished"
	CameraFinished  = "camera.finished"
)

// Subject joins the subject prefix and an event kind.
func Subject(prefix, kind string) string {
	if prefix == "" {
		return kind
	}
	return prefix + "." + kind
}

// SessionEvent is published when a recording session starts or finishes.
type SessionEvent struct {
	SessionID  string    `json:"session_id"`
	InstanceID string    `json:"instance_id"`
	OutputDir  string    `json:"output_dir"`
	Cameras    []string  `json:"cameras"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Recorded   int       `json:"recorded"`
	Error      string    `json:"error,omitempty"`
}

// CameraEvent is published once per camera when its session ends.
type CameraEvent struct {
	SessionID  string `json:"session_id"`
	InstanceID string `json:"instance_id"`
	FileSize   int64  `json:"file_size"`
	models.CameraOutcome
}
