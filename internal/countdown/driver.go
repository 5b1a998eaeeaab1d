package countdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"physiotrack-backend/internal/model"
	"physiotrack-backend/internal/parse"
)

// BedSet gives the driver narrow access to the shared bed collection.
// Observe calls fn for every bed while holding the collection lock; fn may
// only change RemainingTime.
type BedSet interface {
	Observe(fn func(bed *model.Bed))
}

// crossing remembers the last remaining value seen for one step of a bed.
type crossing struct {
	index  int
	stepID string
	prev   int
	seen   bool
}

// Driver recomputes remaining time for all beds on a single ticker and emits
// an Expiration the first time a running timed step reaches zero.
type Driver struct {
	beds     BedSet
	lookup   model.PresetLookup
	sink     Sink
	prefs    *Preferences
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	tracked map[int]crossing
}

// NewDriver creates a countdown driver. It does not start ticking until Run.
func NewDriver(beds BedSet, lookup model.PresetLookup, sink Sink, prefs *Preferences, interval time.Duration, logger *zap.Logger) *Driver {
	if prefs == nil {
		prefs = NewPreferences(false)
	}
	if sink == nil {
		sink = Sinks{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Driver{
		beds:     beds,
		lookup:   lookup,
		sink:     sink,
		prefs:    prefs,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		tracked:  make(map[int]crossing),
	}
}

// Run ticks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	d.logger.Info("countdown driver starting", zap.Duration("interval", d.interval))

	d.Tick(d.now())

	timer := time.NewTimer(d.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("countdown driver shutting down")
			return
		case <-timer.C:
			d.Tick(d.now())
			timer.Reset(d.interval)
		}
	}
}

// Tick performs one recomputation pass at the given instant and returns the
// expirations it emitted.
func (d *Driver) Tick(now time.Time) []Expiration {
	d.mu.Lock()
	var fired []Expiration
	d.beds.Observe(func(bed *model.Bed) {
		var step *model.TreatmentStep
		if s, ok := bed.CurrentStep(d.lookup); ok {
			step = &s
		}

		remaining := Remaining(*bed, step, now)
		bed.RemainingTime = remaining

		if e, ok := d.cross(bed, step, remaining); ok {
			fired = append(fired, e)
		}
	})
	d.mu.Unlock()

	// Sinks run outside the bed lock.
	for _, e := range fired {
		d.sink.Expired(e)
	}
	return fired
}

// cross updates the zero-crossing tracker for one bed. Must hold d.mu.
func (d *Driver) cross(bed *model.Bed, step *model.TreatmentStep, remaining int) (Expiration, bool) {
	if bed.Status != model.BedStatusActive || step == nil || !step.EnableTimer {
		delete(d.tracked, bed.ID)
		return Expiration{}, false
	}

	c, ok := d.tracked[bed.ID]
	if !ok || c.index != bed.CurrentStepIndex || c.stepID != step.ID {
		c = crossing{index: bed.CurrentStepIndex, stepID: step.ID}
	}

	fire := !bed.IsPaused && remaining <= 0 && (!c.seen || c.prev > 0)
	c.prev = remaining
	c.seen = true
	d.tracked[bed.ID] = c

	if !fire {
		return Expiration{}, false
	}
	return Expiration{
		BedID:     bed.ID,
		StepLabel: parse.StepLabel(step.Name),
		Silent:    !d.prefs.SoundEnabled(),
	}, true
}
