package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"physiotrack-backend/internal/model"
)

// bedView is a bed plus its resolved current step.
type bedView struct {
	model.Bed
	CurrentStep *model.TreatmentStep `json:"currentStep,omitempty"`
}

type commandResponse struct {
	Applied bool    `json:"applied"`
	Bed     bedView `json:"bed"`
}

func (h *Handler) view(b model.Bed) bedView {
	v := bedView{Bed: b}
	if s, ok := h.beds.Step(b); ok {
		v.CurrentStep = &s
	}
	return v
}

func (h *Handler) reply(c *gin.Context, bed model.Bed, applied bool, err error) {
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, commandResponse{Applied: applied, Bed: h.view(bed)})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

// GetBeds handles GET /api/beds.
func (h *Handler) GetBeds(c *gin.Context) {
	beds := h.beds.Beds()
	views := make([]bedView, len(beds))
	for i, b := range beds {
		views[i] = h.view(b)
	}
	c.JSON(http.StatusOK, views)
}

// GetBed handles GET /api/beds/:id.
func (h *Handler) GetBed(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	bed, err := h.beds.Bed(id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(bed))
}

type stepRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Duration    int    `json:"duration"`
	EnableTimer bool   `json:"enableTimer"`
	Color       string `json:"color"`
}

// toSteps keeps client-supplied ids so edits can follow steps by identity.
func toSteps(reqs []stepRequest) ([]model.TreatmentStep, error) {
	steps := make([]model.TreatmentStep, 0, len(reqs))
	for _, r := range reqs {
		s, err := model.NewStep(r.Name, r.Duration, r.EnableTimer, r.Color)
		if err != nil {
			return nil, err
		}
		if r.ID != "" {
			s.ID = r.ID
		}
		steps = append(steps, s)
	}
	return steps, nil
}

type selectPresetRequest struct {
	PresetID   string           `json:"presetId" binding:"required"`
	Modalities model.Modalities `json:"modalities"`
}

// SelectPreset handles POST /api/beds/:id/preset.
func (h *Handler) SelectPreset(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req selectPresetRequest
	if !bindJSON(c, &req) {
		return
	}
	bed, applied, err := h.beds.SelectPreset(id, req.PresetID, req.Modalities)
	h.reply(c, bed, applied, err)
}

type customRequest struct {
	Name       string           `json:"name"`
	Steps      []stepRequest    `json:"steps" binding:"required,dive"`
	Modalities model.Modalities `json:"modalities"`
}

// StartCustom handles POST /api/beds/:id/custom.
func (h *Handler) StartCustom(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req customRequest
	if !bindJSON(c, &req) {
		return
	}
	steps, err := toSteps(req.Steps)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bed, applied, err := h.beds.StartCustom(id, req.Name, steps, req.Modalities)
	h.reply(c, bed, applied, err)
}

type quickRequest struct {
	Label      string           `json:"label" binding:"required"`
	Modalities model.Modalities `json:"modalities"`
}

// StartQuick handles POST /api/beds/:id/quick.
func (h *Handler) StartQuick(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req quickRequest
	if !bindJSON(c, &req) {
		return
	}
	bed, applied, err := h.beds.StartQuick(id, req.Label, req.Modalities)
	h.reply(c, bed, applied, err)
}

type tractionRequest struct {
	Minutes    int              `json:"minutes" binding:"required"`
	Modalities model.Modalities `json:"modalities"`
}

// StartTraction handles POST /api/beds/:id/traction.
func (h *Handler) StartTraction(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req tractionRequest
	if !bindJSON(c, &req) {
		return
	}
	bed, applied, err := h.beds.StartTraction(id, req.Minutes, req.Modalities)
	h.reply(c, bed, applied, err)
}

// bedCommand adapts a body-less bed command to a handler.
func (h *Handler) bedCommand(cmd func(id int) (model.Bed, bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bedID(c)
		if !ok {
			return
		}
		bed, applied, err := cmd(id)
		h.reply(c, bed, applied, err)
	}
}

type swapRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

// SwapSteps handles POST /api/beds/:id/swap.
func (h *Handler) SwapSteps(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req swapRequest
	if !bindJSON(c, &req) {
		return
	}
	bed, applied, err := h.beds.SwapSteps(id, *req.From, *req.To)
	h.reply(c, bed, applied, err)
}

type requeueRequest struct {
	Index *int `json:"index" binding:"required"`
}

// Requeue handles POST /api/beds/:id/requeue.
func (h *Handler) Requeue(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req requeueRequest
	if !bindJSON(c, &req) {
		return
	}
	bed, applied, err := h.beds.Requeue(id, *req.Index)
	h.reply(c, bed, applied, err)
}

type stepsRequest struct {
	Steps []stepRequest `json:"steps" binding:"required,dive"`
}

// UpdateSteps handles PUT /api/beds/:id/steps.
func (h *Handler) UpdateSteps(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req stepsRequest
	if !bindJSON(c, &req) {
		return
	}
	steps, err := toSteps(req.Steps)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bed, applied, err := h.beds.UpdateSteps(id, steps)
	h.reply(c, bed, applied, err)
}

type memoRequest struct {
	Text string `json:"text"`
}

// PutMemo handles PUT /api/beds/:id/memos/:index. An empty text removes the memo.
func (h *Handler) PutMemo(c *gin.Context) {
	var req memoRequest
	if !bindJSON(c, &req) {
		return
	}
	h.updateMemo(c, req.Text)
}

// DeleteMemo handles DELETE /api/beds/:id/memos/:index.
func (h *Handler) DeleteMemo(c *gin.Context) {
	h.updateMemo(c, "")
}

func (h *Handler) updateMemo(c *gin.Context, text string) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid step index"})
		return
	}
	bed, applied, err := h.beds.UpdateMemo(id, index, text)
	h.reply(c, bed, applied, err)
}

type durationRequest struct {
	Seconds *int `json:"seconds" binding:"required"`
}

// UpdateDuration handles PUT /api/beds/:id/duration.
func (h *Handler) UpdateDuration(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	var req durationRequest
	if !bindJSON(c, &req) {
		return
	}
	bed, applied, err := h.beds.UpdateDuration(id, *req.Seconds)
	h.reply(c, bed, applied, err)
}

// ToggleModality handles POST /api/beds/:id/modalities/:flag.
func (h *Handler) ToggleModality(c *gin.Context) {
	id, ok := bedID(c)
	if !ok {
		return
	}
	bed, applied, err := h.beds.ToggleModality(id, model.Modality(c.Param("flag")))
	h.reply(c, bed, applied, err)
}

// ResetAll handles POST /api/beds/reset.
func (h *Handler) ResetAll(c *gin.Context) {
	beds, err := h.beds.ResetAll()
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	views := make([]bedView, len(beds))
	for i, b := range beds {
		views[i] = h.view(b)
	}
	c.JSON(http.StatusOK, views)
}
