package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kepler-recorder-go/internal/logging"
	"kepler-recorder-go/internal/models"
	"kepler-recorder-go/internal/services/recorder"
)

// Recorder is the recording control surface used by the API.
type Recorder interface {
	Start(ctx context.Context, opts recorder.Options) (*models.RecordingSession, error)
	Stop() bool
	Status() models.RecordingStatus
	Last() *models.RecordingSession
}

type RecordingHandler struct {
	recorder Recorder
	baseCtx  context.Context
}

// NewRecordingHandler creates the handler. Sessions started through it run
// under baseCtx, not under the request context.
func NewRecordingHandler(baseCtx context.Context, rec Recorder) *RecordingHandler {
	return &RecordingHandler{recorder: rec, baseCtx: baseCtx}
}

type StartRecordingRequest struct {
	Cameras  []string `json:"cameras,omitempty"`
	Duration string   `json:"duration,omitempty" example:"30s"`
	Mode     string   `json:"mode,omitempty" example:"stream"`
}

type RecordingStatusResponse struct {
	models.RecordingStatus
	Last *models.RecordingSession `json:"last,omitempty"`
}

// @Summary Start a recording session
// @Description Start one bounded-duration recording across cameras in the background
// @Tags recordings
// @Accept json
// @Produce json
// @Param request body StartRecordingRequest false "Overrides for this session"
// @Success 202 {object} models.RecordingSession
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /recordings [post]
func (h *RecordingHandler) StartRecording(c *gin.Context) {
	var req StartRecordingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	opts := recorder.Options{Cameras: req.Cameras}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a positive Go duration like 30s"})
			return
		}
		opts.Duration = d
	}
	if req.Mode != "" {
		mode := models.CaptureMode(req.Mode)
		if !mode.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be stream or poll"})
			return
		}
		opts.Mode = mode
	}

	sess, err := h.recorder.Start(h.baseCtx, opts)
	if errors.Is(err, recorder.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to start recording")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start recording"})
		return
	}

	c.Set(logging.KeySessionID, sess.ID)
	logging.Info(c).Msg("Recording started from API")
	c.JSON(http.StatusAccepted, sess)
}

// @Summary Stop the running session
// @Description Raise the stop signal; cameras finalize what they captured
// @Tags recordings
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Router /recordings/stop [post]
func (h *RecordingHandler) StopRecording(c *gin.Context) {
	if !h.recorder.Stop() {
		c.JSON(http.StatusConflict, gin.H{"error": "No recording session is running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopping": true})
}

// @Summary Recording status
// @Description Live per-camera state and frame counts, plus the last finished session
// @Tags recordings
// @Produce json
// @Success 200 {object} RecordingStatusResponse
// @Router /recordings/status [get]
func (h *RecordingHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, RecordingStatusResponse{
		RecordingStatus: h.recorder.Status(),
		Last:            h.recorder.Last(),
	})
}
