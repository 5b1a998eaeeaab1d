package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"physiotrack-backend/internal/catalog"
	"physiotrack-backend/internal/countdown"
	"physiotrack-backend/internal/manager"
	"physiotrack-backend/internal/store"
	"physiotrack-backend/internal/syncer"
)

// SyncStatus reports the reconciliation listener state.
type SyncStatus interface {
	Status() (syncer.Status, error)
}

// Deps are the collaborators the handlers need. DB and Webpush may be nil
// when push notifications are not configured.
type Deps struct {
	Beds    *manager.Manager
	Catalog catalog.Catalog
	Prefs   *countdown.Preferences
	Sync    SyncStatus
	DB      *gorm.DB
	Webpush *webpush.Options
	Logger  *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	beds      *manager.Manager
	catalog   catalog.Catalog
	prefs     *countdown.Preferences
	sync      SyncStatus
	db        *gorm.DB
	webpush   *webpush.Options
	logger    *zap.Logger
	responses *cache.Cache
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		beds:    d.Beds,
		catalog: d.Catalog,
		prefs:   d.Prefs,
		sync:    d.Sync,
		db:      d.DB,
		webpush: d.Webpush,
		logger:  logger,
	}
}

func bedID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid bed ID"})
		return 0, false
	}
	return id, true
}

// abortWithError maps domain errors to HTTP statuses.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, catalog.ErrPresetNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, manager.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
