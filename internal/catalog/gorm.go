package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"physiotrack-backend/internal/model"
)

const (
	listKey = "presets"
	lastKey = "presets:last"
)

// GormCatalog reads the presets table through a short-lived cache. When the
// database cannot be reached, lookups fall back to the last list read and
// then to the built-in defaults.
type GormCatalog struct {
	db     *gorm.DB
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewGormCatalog creates a catalog backed by db.
func NewGormCatalog(db *gorm.DB, ttl time.Duration, logger *zap.Logger) *GormCatalog {
	return &GormCatalog{
		db:     db,
		cache:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
		logger: logger,
	}
}

// List returns the presets ordered by rank.
func (c *GormCatalog) List(ctx context.Context) ([]model.Preset, error) {
	if v, found := c.cache.Get(listKey); found {
		return clonePresets(v.([]model.Preset)), nil
	}

	var records []model.PresetRecord
	if err := c.db.WithContext(ctx).Order("rank, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}

	presets := make([]model.Preset, len(records))
	for i, r := range records {
		presets[i] = r.Preset()
	}
	c.cache.Set(listKey, presets, c.ttl)
	c.cache.Set(lastKey, presets, cache.NoExpiration)
	return clonePresets(presets), nil
}

// Lookup resolves a preset id. Embedded custom presets never reach here.
func (c *GormCatalog) Lookup(id string) (model.Preset, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	presets, err := c.List(ctx)
	if err != nil {
		c.logger.Warn("preset lookup falling back to last known presets", zap.String("preset_id", id), zap.Error(err))
		if v, found := c.cache.Get(lastKey); found {
			return find(v.([]model.Preset), id)
		}
		return find(DefaultPresets(), id)
	}
	return find(presets, id)
}

// Save upserts a preset.
func (c *GormCatalog) Save(ctx context.Context, p model.Preset, rank int) error {
	if len(p.Steps) == 0 {
		return model.ErrNoSteps
	}
	rec := model.PresetRecord{
		ID:    p.ID,
		Name:  p.Name,
		Steps: model.StepList(model.CloneSteps(p.Steps)),
		Rank:  rank,
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "steps", "rank", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save preset %s: %w", p.ID, err)
	}
	c.cache.Delete(listKey)
	return nil
}

func (c *GormCatalog) Delete(ctx context.Context, id string) error {
	result := c.db.WithContext(ctx).Delete(&model.PresetRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete preset %s: %w", id, result.Error)
	}
	c.cache.Delete(listKey)
	if result.RowsAffected == 0 {
		return ErrPresetNotFound
	}
	return nil
}

// SeedDefaults inserts the built-in presets when the table is empty.
func SeedDefaults(ctx context.Context, db *gorm.DB) error {
	var n int64
	if err := db.WithContext(ctx).Model(&model.PresetRecord{}).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to count presets: %w", err)
	}
	if n > 0 {
		return nil
	}

	defaults := DefaultPresets()
	records := make([]model.PresetRecord, len(defaults))
	for i, p := range defaults {
		records[i] = model.PresetRecord{ID: p.ID, Name: p.Name, Steps: model.StepList(p.Steps), Rank: i}
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to seed presets: %w", err)
	}
	return nil
}
