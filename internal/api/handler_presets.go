package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"physiotrack-backend/internal/catalog"
	"physiotrack-backend/internal/model"
)

// GetPresets handles GET /api/presets.
func (h *Handler) GetPresets(c *gin.Context) {
	presets, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presets)
}

// GetQuickTreatments handles GET /api/quick-treatments.
func (h *Handler) GetQuickTreatments(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.QuickTemplates())
}

type putPresetRequest struct {
	Name  string        `json:"name" binding:"required"`
	Steps []stepRequest `json:"steps" binding:"required,dive"`
	Rank  int           `json:"rank"`
}

// PutPreset handles PUT /api/presets/:id. Beds running the old version keep
// their own copy.
func (h *Handler) PutPreset(c *gin.Context) {
	var req putPresetRequest
	if !bindJSON(c, &req) {
		return
	}
	steps, err := toSteps(req.Steps)
	if err != nil || len(steps) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "a preset needs at least one valid step"})
		return
	}

	p := model.Preset{ID: c.Param("id"), Name: req.Name, Steps: steps}
	if err := h.beds.SavePreset(c.Request.Context(), p, req.Rank); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusOK, p)
}

// DeletePreset handles DELETE /api/presets/:id. Beds running the preset keep
// their own copy.
func (h *Handler) DeletePreset(c *gin.Context) {
	if err := h.beds.DeletePreset(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	c.Status(http.StatusNoContent)
}

// invalidate drops cached GET responses after a catalog change.
func (h *Handler) invalidate() {
	if h.responses != nil {
		h.responses.Flush()
	}
}
