package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"physiotrack-backend/config"
	"physiotrack-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(logger))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	h.responses = cache.New(ttl, 2*ttl)
	caching := mw.Cache(h.responses, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/beds", h.GetBeds)
		api.POST("/beds/reset", h.ResetAll)
		api.GET("/beds/:id", h.GetBed)

		api.POST("/beds/:id/preset", h.SelectPreset)
		api.POST("/beds/:id/custom", h.StartCustom)
		api.POST("/beds/:id/quick", h.StartQuick)
		api.POST("/beds/:id/traction", h.StartTraction)
		api.POST("/beds/:id/advance", h.bedCommand(h.beds.AdvanceStep))
		api.POST("/beds/:id/retreat", h.bedCommand(h.beds.RetreatStep))
		api.POST("/beds/:id/pause", h.bedCommand(h.beds.TogglePause))
		api.POST("/beds/:id/clear", h.bedCommand(h.beds.ClearBed))
		api.POST("/beds/:id/swap", h.SwapSteps)
		api.POST("/beds/:id/requeue", h.Requeue)
		api.PUT("/beds/:id/steps", h.UpdateSteps)
		api.PUT("/beds/:id/memos/:index", h.PutMemo)
		api.DELETE("/beds/:id/memos/:index", h.DeleteMemo)
		api.PUT("/beds/:id/duration", h.UpdateDuration)
		api.POST("/beds/:id/modalities/:flag", h.ToggleModality)

		api.GET("/presets", caching, h.GetPresets)
		api.PUT("/presets/:id", h.PutPreset)
		api.DELETE("/presets/:id", h.DeletePreset)
		api.GET("/quick-treatments", caching, h.GetQuickTreatments)

		api.GET("/sync/status", h.GetSyncStatus)
		api.GET("/preferences/sound", h.GetSoundPreference)
		api.PUT("/preferences/sound", h.PutSoundPreference)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
