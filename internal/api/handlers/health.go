package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	InstanceID string
	Version    string
	started    time.Time
}

func NewHealthHandler(instanceID, version string) *HealthHandler {
	return &HealthHandler{InstanceID: instanceID, Version: version, started: time.Now()}
}

type HealthResponse struct {
	Status     string `json:"status" example:"healthy"`
	InstanceID string `json:"instance_id" example:"recorder-1"`
}

type InstanceInfoResponse struct {
	InstanceID   string    `json:"instance_id" example:"recorder-1"`
	Status       string    `json:"status" example:"running"`
	Version      string    `json:"version" example:"1.0.0"`
	StartedAt    time.Time `json:"started_at"`
	Capabilities []string  `json:"capabilities"`
}

// @Summary Health check
// @Description Check if the recorder is healthy and responsive
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		InstanceID: h.InstanceID,
	})
}

// @Summary Recorder information
// @Description Get basic recorder information and capabilities
// @Tags health
// @Produce json
// @Success 200 {object} InstanceInfoResponse
// @Router / [get]
func (h *HealthHandler) InstanceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, InstanceInfoResponse{
		InstanceID: h.InstanceID,
		Status:     "running",
		Version:    h.Version,
		StartedAt:  h.started,
		Capabilities: []string{
			"mjpeg_stream_recording",
			"snapshot_poll_recording",
			"frame_rate_reconciliation",
		},
	})
}
