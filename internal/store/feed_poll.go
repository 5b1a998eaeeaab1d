package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"physiotrack-backend/internal/model"
)

// PollFeed detects remote changes by periodically re-reading the beds table
// and comparing updated_at. It is used when no Redis channel is configured.
type PollFeed struct {
	db       *gorm.DB
	interval time.Duration
	logger   *zap.Logger
}

// NewPollFeed creates a polling change feed.
func NewPollFeed(db *gorm.DB, interval time.Duration, logger *zap.Logger) *PollFeed {
	return &PollFeed{db: db, interval: interval, logger: logger}
}

// Publish is a no-op; the next poll observes the write.
func (f *PollFeed) Publish(context.Context, model.BedRow) error {
	return nil
}

// Subscribe starts polling. The first poll establishes the baseline and is
// not reported. A failed poll ends the subscription with the error.
func (f *PollFeed) Subscribe(ctx context.Context, fn func(model.BedRow)) (Subscription, error) {
	seen, err := f.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := newFeedSubscription(cancel)
	go f.run(ctx, sub, seen, fn)
	return sub, nil
}

func (f *PollFeed) run(ctx context.Context, sub *feedSubscription, seen map[int64]time.Time, fn func(model.BedRow)) {
	timer := time.NewTimer(f.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := f.PollOnce(ctx, seen, fn); err != nil {
				if ctx.Err() == nil {
					sub.fail(err)
				}
				return
			}
			timer.Reset(f.interval)
		}
	}
}

// PollOnce reports every row whose updated_at moved since the last poll.
func (f *PollFeed) PollOnce(ctx context.Context, seen map[int64]time.Time, fn func(model.BedRow)) error {
	var rows []model.BedRow
	if err := f.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		f.logger.Error("failed to poll beds", zap.Error(err))
		return fmt.Errorf("failed to poll beds: %w", err)
	}
	for _, row := range rows {
		if last, ok := seen[row.ID]; ok && last.Equal(row.UpdatedAt) {
			continue
		}
		seen[row.ID] = row.UpdatedAt
		fn(row)
	}
	return nil
}

func (f *PollFeed) snapshot(ctx context.Context) (map[int64]time.Time, error) {
	var rows []model.BedRow
	if err := f.db.WithContext(ctx).Select("id", "updated_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read bed versions: %w", err)
	}
	seen := make(map[int64]time.Time, len(rows))
	for _, r := range rows {
		seen[r.ID] = r.UpdatedAt
	}
	return seen, nil
}
