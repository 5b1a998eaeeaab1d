package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"physiotrack-backend/internal/model"
)

// GormRemote implements RemoteStore on the "beds" table. Every successful
// write is announced on the change feed so other clients pick it up.
type GormRemote struct {
	db     *gorm.DB
	feed   ChangeFeed
	logger *zap.Logger
}

// NewGormRemote creates a GORM-backed remote store.
func NewGormRemote(db *gorm.DB, feed ChangeFeed, logger *zap.Logger) *GormRemote {
	return &GormRemote{db: db, feed: feed, logger: logger}
}

// FetchAll returns every bed row ordered by id.
func (s *GormRemote) FetchAll(ctx context.Context) ([]model.BedRow, error) {
	var rows []model.BedRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch beds: %w", err)
	}
	return rows, nil
}

// UpdateByID updates only the given columns plus updated_at.
func (s *GormRemote) UpdateByID(ctx context.Context, id int, columns map[string]any) error {
	values := make(map[string]any, len(columns)+1)
	for k, v := range columns {
		values[k] = v
	}
	values["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&model.BedRow{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update bed %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update bed %d: %w", id, ErrNotFound)
	}

	if s.feed == nil {
		return nil
	}
	var row model.BedRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return fmt.Errorf("failed to re-read bed %d: %w", id, err)
	}
	if err := s.feed.Publish(ctx, row); err != nil {
		// The write itself succeeded; other clients catch up on their next fetch.
		s.logger.Warn("failed to publish bed change", zap.Int("bed_id", id), zap.Error(err))
	}
	return nil
}

// EnsureBeds inserts Idle rows for any of beds 1..n that do not exist yet.
func (s *GormRemote) EnsureBeds(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	rows := make([]model.BedRow, n)
	for i := range rows {
		rows[i] = MapBedToRow(model.NewIdleBed(i + 1))
		rows[i].UpdatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to seed beds: %w", err)
	}
	return nil
}

// Subscribe delegates to the change feed.
func (s *GormRemote) Subscribe(ctx context.Context, fn func(model.BedRow)) (Subscription, error) {
	if s.feed == nil {
		return nil, fmt.Errorf("subscribe: no change feed configured: %w", ErrRemoteDisabled)
	}
	return s.feed.Subscribe(ctx, fn)
}
