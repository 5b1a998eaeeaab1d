package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"physiotrack-backend/internal/model"
	"physiotrack-backend/internal/store"
)

// Options configures a Synchronizer.
type Options struct {
	BedCount          int
	SuppressionWindow time.Duration
	ZombieMaxAge      time.Duration
	WriteQueueSize    int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type remoteWrite struct {
	id      int
	columns map[string]any
}

// Synchronizer owns the bed collection. Local writes are applied and
// persisted synchronously; the matching remote write is queued and sent in
// order by a single writer. Remote failures never roll local state back.
type Synchronizer struct {
	local     store.LocalStore
	remote    store.RemoteStore
	count     int
	window    time.Duration
	zombieAge time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu   sync.Mutex
	beds []model.Bed // beds[i].ID == i+1

	writes    chan remoteWrite
	writeErrs chan error
}

// New creates a Synchronizer holding opts.BedCount idle beds until Load.
func New(local store.LocalStore, remote store.RemoteStore, opts Options, logger *zap.Logger) *Synchronizer {
	if remote == nil {
		remote = store.Offline{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.WriteQueueSize <= 0 {
		opts.WriteQueueSize = 256
	}
	return &Synchronizer{
		local:     local,
		remote:    remote,
		count:     opts.BedCount,
		window:    opts.SuppressionWindow,
		zombieAge: opts.ZombieMaxAge,
		now:       opts.Clock,
		logger:    logger,
		beds:      model.NewBeds(opts.BedCount),
		writes:    make(chan remoteWrite, opts.WriteQueueSize),
		writeErrs: make(chan error, 1),
	}
}

// Load restores the beds saved on this device. Zombie sessions are reset and
// the collection is padded or trimmed to the configured bed count.
func (s *Synchronizer) Load() error {
	beds := model.NewBeds(s.count)

	saved, err := s.local.Load()
	if err != nil {
		s.mu.Lock()
		s.beds = beds
		s.mu.Unlock()
		return fmt.Errorf("load local beds: %w", err)
	}

	now := s.now()
	for _, b := range saved {
		if b.ID < 1 || b.ID > s.count {
			continue
		}
		if s.zombieAge > 0 && b.IsZombie(now, s.zombieAge) {
			s.logger.Warn("resetting stale session", zap.Int("bed_id", b.ID), zap.Timep("start_time", b.StartTime))
			b = model.IdleUpdate().Apply(b)
		}
		if b.Queue == nil {
			b.Queue = []int{}
		}
		if b.Memos == nil {
			b.Memos = map[int]string{}
		}
		beds[b.ID-1] = b
	}

	s.mu.Lock()
	s.beds = beds
	s.mu.Unlock()
	s.logger.Info("beds loaded", zap.Int("count", s.count), zap.Int("restored", len(saved)))
	return nil
}

// Run sends queued remote writes in order until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	s.logger.Info("remote writer started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("remote writer shutting down", zap.Int("pending", len(s.writes)))
			return
		case w := <-s.writes:
			s.send(ctx, w)
		}
	}
}

func (s *Synchronizer) send(ctx context.Context, w remoteWrite) {
	err := s.remote.UpdateByID(ctx, w.id, w.columns)
	switch {
	case err == nil:
		s.logger.Debug("remote write applied", zap.Int("bed_id", w.id), zap.Int("columns", len(w.columns)))
	case errors.Is(err, store.ErrRemoteDisabled):
	default:
		s.logger.Error("remote write failed", zap.Int("bed_id", w.id), zap.Error(err))
		select {
		case s.writeErrs <- err:
		default:
		}
	}
}

// WriteErrors delivers remote write failures. Only the oldest unread failure
// is kept.
func (s *Synchronizer) WriteErrors() <-chan error {
	return s.writeErrs
}

// Mutate applies the update computed by fn to one bed. It reports whether the
// bed changed; fn returning false leaves everything untouched.
func (s *Synchronizer) Mutate(id int, fn func(bed model.Bed, now time.Time) (model.BedUpdate, bool)) (model.Bed, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return model.Bed{}, false, fmt.Errorf("bed %d: %w", id, store.ErrNotFound)
	}

	now := s.now()
	current := s.beds[idx]
	u, ok := fn(current.Clone(), now)
	if !ok || u.IsEmpty() {
		return current.Clone(), false, nil
	}

	next := u.Apply(current)
	next.LastLocalWrite = now
	s.beds[idx] = next

	s.saveLocked()

	select {
	case s.writes <- remoteWrite{id: id, columns: store.UpdateColumns(u)}:
	default:
		s.logger.Warn("remote write queue full, dropping write", zap.Int("bed_id", id))
	}
	return next.Clone(), true, nil
}

// ApplyRemote merges rows from the remote store. A row for a bed written
// locally within the suppression window is dropped as an echo, and a row
// older than the version already merged is dropped as stale. It returns the
// number of beds replaced.
func (s *Synchronizer) ApplyRemote(rows []model.BedRow) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, row := range rows {
		incoming, reset := store.MapRowToBed(row, now, s.zombieAge)
		idx := s.index(incoming.ID)
		if idx < 0 {
			s.logger.Debug("ignoring remote row for unknown bed", zap.Int64("bed_id", row.ID))
			continue
		}
		if reset {
			s.logger.Warn("remote bed had a stale session, treating as idle", zap.Int("bed_id", incoming.ID))
		}

		local := s.beds[idx]
		if s.suppressed(local, now) {
			s.logger.Debug("suppressing remote update inside local write window",
				zap.Int("bed_id", incoming.ID),
				zap.Duration("since_local_write", now.Sub(local.LastLocalWrite)),
			)
			continue
		}
		if local.UpdatedAt != nil && incoming.UpdatedAt != nil && incoming.UpdatedAt.Before(*local.UpdatedAt) {
			s.logger.Debug("ignoring stale remote row", zap.Int("bed_id", incoming.ID), zap.Time("row_updated_at", *incoming.UpdatedAt))
			continue
		}

		if incoming.Status == model.BedStatusActive && !incoming.IsPaused {
			incoming.RemainingTime = local.RemainingTime
		}
		incoming.LastLocalWrite = local.LastLocalWrite
		s.beds[idx] = incoming
		applied++
	}

	if applied > 0 {
		s.saveLocked()
	}
	return applied
}

func (s *Synchronizer) suppressed(local model.Bed, now time.Time) bool {
	return !local.LastLocalWrite.IsZero() && now.Sub(local.LastLocalWrite) < s.window
}

// Snapshot returns a copy of every bed.
func (s *Synchronizer) Snapshot() []model.Bed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneBeds(s.beds)
}

// Bed returns a copy of one bed.
func (s *Synchronizer) Bed(id int) (model.Bed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.index(id)
	if idx < 0 {
		return model.Bed{}, false
	}
	return s.beds[idx].Clone(), true
}

// IDs lists the bed ids in order.
func (s *Synchronizer) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, len(s.beds))
	for i, b := range s.beds {
		ids[i] = b.ID
	}
	return ids
}

// Count is the configured number of beds.
func (s *Synchronizer) Count() int {
	return s.count
}

// Observe calls fn for every bed under the lock. fn may only change the
// derived RemainingTime.
func (s *Synchronizer) Observe(fn func(bed *model.Bed)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.beds {
		fn(&s.beds[i])
	}
}

// saveLocked persists the collection. Must hold s.mu.
func (s *Synchronizer) saveLocked() {
	if err := s.local.Save(cloneBeds(s.beds)); err != nil {
		s.logger.Error("failed to save beds locally", zap.Error(err))
	}
}

func (s *Synchronizer) index(id int) int {
	if id < 1 || id > len(s.beds) {
		return -1
	}
	return id - 1
}

func cloneBeds(beds []model.Bed) []model.Bed {
	out := make([]model.Bed, len(beds))
	for i, b := range beds {
		out[i] = b.Clone()
	}
	return out
}
