package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"physiotrack-backend/internal/syncer"
)

// GetSyncStatus handles GET /api/sync/status.
func (h *Handler) GetSyncStatus(c *gin.Context) {
	if h.sync == nil {
		c.JSON(http.StatusOK, gin.H{"status": syncer.StatusOffline})
		return
	}
	status, err := h.sync.Status()
	resp := gin.H{"status": status}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// GetSoundPreference handles GET /api/preferences/sound.
func (h *Handler) GetSoundPreference(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": h.prefs.SoundEnabled()})
}

type soundRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// PutSoundPreference handles PUT /api/preferences/sound.
func (h *Handler) PutSoundPreference(c *gin.Context) {
	var req soundRequest
	if !bindJSON(c, &req) {
		return
	}
	h.prefs.SetSoundEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}
