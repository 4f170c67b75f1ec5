package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kepler-recorder-go/internal/logging"
	"kepler-recorder-go/internal/models"
	"kepler-recorder-go/internal/services/catalog"
)

// SessionStore reads the recording catalog.
type SessionStore interface {
	ListSessions(ctx context.Context, limit int) ([]models.RecordingSession, error)
	GetSession(ctx context.Context, id string) (*models.RecordingSession, error)
}

type SessionHandler struct {
	store        SessionStore
	defaultLimit int
}

func NewSessionHandler(store SessionStore, defaultLimit int) *SessionHandler {
	return &SessionHandler{store: store, defaultLimit: defaultLimit}
}

type SessionsResponse struct {
	Total    int                       `json:"total"`
	Sessions []models.RecordingSession `json:"sessions"`
}

// ListSessions godoc
// @Summary List recorded sessions
// @Description Newest sessions first, without per-camera outcomes
// @Tags sessions
// @Produce json
// @Param limit query int false "Maximum number of sessions (default from CATALOG_LIST_LIMIT)"
// @Success 200 {object} SessionsResponse
// @Failure 503 {object} map[string]string
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog disabled"})
		return
	}

	limit := h.defaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	sessions, err := h.store.ListSessions(c.Request.Context(), limit)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.RecordingSession{}
	}

	c.JSON(http.StatusOK, SessionsResponse{Total: len(sessions), Sessions: sessions})
}

// GetSession godoc
// @Summary Get one session
// @Description Session details with the outcome of every camera
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.RecordingSession
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog disabled"})
		return
	}

	id := c.Param("id")
	c.Set(logging.KeySessionID, id)

	sess, err := h.store.GetSession(c.Request.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to get session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get session"})
		return
	}

	c.JSON(http.StatusOK, sess)
}
