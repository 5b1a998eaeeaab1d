package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"physiotrack-backend/internal/catalog"
	"physiotrack-backend/internal/model"
	"physiotrack-backend/internal/session"
	"physiotrack-backend/internal/store"
)

// ErrInvalidArgument marks input rejected before any command runs.
var ErrInvalidArgument = errors.New("invalid argument")

// BedStore is the state owner the manager mutates through.
type BedStore interface {
	Mutate(id int, fn func(bed model.Bed, now time.Time) (model.BedUpdate, bool)) (model.Bed, bool, error)
	Snapshot() []model.Bed
	Bed(id int) (model.Bed, bool)
	IDs() []int
}

// Manager is the single entry point transports use to read and change beds.
// Every mutating method returns the bed after the call and whether the
// command changed it.
type Manager struct {
	beds    BedStore
	cmds    *session.Commands
	catalog catalog.Catalog
	logger  *zap.Logger

	// presetMu orders catalog edits against sessions starting from the catalog.
	presetMu sync.RWMutex
}

// New creates a manager.
func New(beds BedStore, cmds *session.Commands, cat catalog.Catalog, logger *zap.Logger) *Manager {
	return &Manager{beds: beds, cmds: cmds, catalog: cat, logger: logger}
}

// Beds returns every bed.
func (m *Manager) Beds() []model.Bed {
	return m.beds.Snapshot()
}

// Bed returns one bed.
func (m *Manager) Bed(id int) (model.Bed, error) {
	b, ok := m.beds.Bed(id)
	if !ok {
		return model.Bed{}, fmt.Errorf("bed %d: %w", id, store.ErrNotFound)
	}
	return b, nil
}

// Step resolves the current step of a bed, if any.
func (m *Manager) Step(bed model.Bed) (model.TreatmentStep, bool) {
	return bed.CurrentStep(m.catalog)
}

// SelectPreset starts a session from a catalog preset.
func (m *Manager) SelectPreset(id int, presetID string, flags model.Modalities) (model.Bed, bool, error) {
	m.presetMu.RLock()
	defer m.presetMu.RUnlock()

	if _, ok := m.catalog.Lookup(presetID); !ok {
		return model.Bed{}, false, fmt.Errorf("preset %q: %w", presetID, ErrInvalidArgument)
	}
	return m.apply(id, "select_preset", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.SelectPreset(b, presetID, flags, now)
	})
}

// StartCustom starts a session from an ad-hoc step list. A blank name becomes "Custom".
func (m *Manager) StartCustom(id int, name string, steps []model.TreatmentStep, flags model.Modalities) (model.Bed, bool, error) {
	if len(steps) == 0 {
		return model.Bed{}, false, fmt.Errorf("%w: %w", ErrInvalidArgument, model.ErrNoSteps)
	}
	if strings.TrimSpace(name) == "" {
		name = "Custom"
	}
	return m.apply(id, "start_custom", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.StartCustom(b, name, steps, flags, now)
	})
}

// StartQuick starts a one-step session from the quick treatment with the given label.
func (m *Manager) StartQuick(id int, label string, flags model.Modalities) (model.Bed, bool, error) {
	tmpl, ok := catalog.QuickTemplate(label)
	if !ok {
		return model.Bed{}, false, fmt.Errorf("quick treatment %q: %w", label, ErrInvalidArgument)
	}
	return m.apply(id, "start_quick", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.StartQuick(b, tmpl, flags, now)
	})
}

// StartTraction starts a traction session of the given length.
func (m *Manager) StartTraction(id int, minutes int, flags model.Modalities) (model.Bed, bool, error) {
	if minutes <= 0 {
		return model.Bed{}, false, fmt.Errorf("traction minutes %d: %w", minutes, ErrInvalidArgument)
	}
	return m.apply(id, "start_traction", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.StartTraction(b, minutes, flags, now)
	})
}

// AdvanceStep moves a bed to its next scheduled step.
func (m *Manager) AdvanceStep(id int) (model.Bed, bool, error) {
	return m.apply(id, "advance", m.cmds.Advance)
}

// RetreatStep moves a bed back one step.
func (m *Manager) RetreatStep(id int) (model.Bed, bool, error) {
	return m.apply(id, "retreat", m.cmds.Retreat)
}

// TogglePause pauses or resumes the running step.
func (m *Manager) TogglePause(id int) (model.Bed, bool, error) {
	return m.apply(id, "toggle_pause", m.cmds.TogglePause)
}

// SwapSteps exchanges two step positions of the active preset.
func (m *Manager) SwapSteps(id, i, j int) (model.Bed, bool, error) {
	return m.apply(id, "swap", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.Swap(b, i, j, now)
	})
}

// Requeue sends a step to the back of the schedule.
func (m *Manager) Requeue(id, index int) (model.Bed, bool, error) {
	return m.apply(id, "requeue", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.Requeue(b, index, now)
	})
}

// UpdateSteps replaces the active step list.
func (m *Manager) UpdateSteps(id int, steps []model.TreatmentStep) (model.Bed, bool, error) {
	if len(steps) == 0 {
		return model.Bed{}, false, fmt.Errorf("%w: %w", ErrInvalidArgument, model.ErrNoSteps)
	}
	return m.apply(id, "update_steps", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.UpdateSteps(b, steps, now)
	})
}

// UpdateMemo sets a step note. Empty text removes it.
func (m *Manager) UpdateMemo(id, index int, text string) (model.Bed, bool, error) {
	return m.apply(id, "update_memo", func(b model.Bed, _ time.Time) (model.BedUpdate, bool) {
		return m.cmds.UpdateMemo(b, index, text)
	})
}

// UpdateDuration restarts the current step with a new length in seconds.
func (m *Manager) UpdateDuration(id, seconds int) (model.Bed, bool, error) {
	if seconds < 0 {
		return model.Bed{}, false, fmt.Errorf("duration %d: %w", seconds, ErrInvalidArgument)
	}
	return m.apply(id, "update_duration", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
		return m.cmds.UpdateDuration(b, seconds, now)
	})
}

// ToggleModality flips one modality flag.
func (m *Manager) ToggleModality(id int, flag model.Modality) (model.Bed, bool, error) {
	if _, err := model.ParseModality(string(flag)); err != nil {
		return model.Bed{}, false, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return m.apply(id, "toggle_modality", func(b model.Bed, _ time.Time) (model.BedUpdate, bool) {
		return m.cmds.ToggleModality(b, flag)
	})
}

// ClearBed returns a bed to idle.
func (m *Manager) ClearBed(id int) (model.Bed, bool, error) {
	return m.apply(id, "clear", func(b model.Bed, _ time.Time) (model.BedUpdate, bool) {
		return m.cmds.Clear(b)
	})
}

// ResetAll clears every bed and returns the resulting collection.
func (m *Manager) ResetAll() ([]model.Bed, error) {
	var errs []error
	for _, id := range m.beds.IDs() {
		if _, _, err := m.ClearBed(id); err != nil {
			errs = append(errs, err)
		}
	}
	return m.beds.Snapshot(), errors.Join(errs...)
}

// SavePreset creates or replaces a catalog preset. Beds running the
// previous version keep it as a session-owned copy.
func (m *Manager) SavePreset(ctx context.Context, p model.Preset, rank int) error {
	if len(p.Steps) == 0 {
		return model.ErrNoSteps
	}
	m.presetMu.Lock()
	defer m.presetMu.Unlock()

	m.detach(p.ID)
	return m.catalog.Save(ctx, p, rank)
}

// DeletePreset removes a catalog preset. Beds running it keep a
// session-owned copy so they can finish their session.
func (m *Manager) DeletePreset(ctx context.Context, presetID string) error {
	m.presetMu.Lock()
	defer m.presetMu.Unlock()

	m.detach(presetID)
	return m.catalog.Delete(ctx, presetID)
}

// detach copies the catalog preset into every bed that references it.
func (m *Manager) detach(presetID string) {
	p, ok := m.catalog.Lookup(presetID)
	if !ok {
		return
	}
	for _, id := range m.beds.IDs() {
		bed, applied, err := m.apply(id, "detach_preset", func(b model.Bed, now time.Time) (model.BedUpdate, bool) {
			if b.Status == model.BedStatusIdle || b.Preset.Custom != nil || b.Preset.CatalogID != presetID {
				return model.BedUpdate{}, false
			}
			custom, err := model.NewCustomPreset(p.Name, p.Steps, now)
			if err != nil {
				return model.BedUpdate{}, false
			}
			return model.BedUpdate{Preset: model.Some(model.Embedded(custom))}, true
		})
		if err != nil {
			m.logger.Warn("failed to detach preset", zap.Int("bed_id", id), zap.String("preset_id", presetID), zap.Error(err))
			continue
		}
		if applied {
			m.logger.Info("bed keeps a copy of an edited preset", zap.Int("bed_id", id), zap.String("preset_id", presetID), zap.String("copy_id", bed.Preset.ID()))
		}
	}
}

func (m *Manager) apply(id int, op string, fn func(model.Bed, time.Time) (model.BedUpdate, bool)) (model.Bed, bool, error) {
	bed, applied, err := m.beds.Mutate(id, fn)
	if err != nil {
		return model.Bed{}, false, err
	}
	m.logger.Debug("bed command",
		zap.String("op", op),
		zap.Int("bed_id", id),
		zap.Bool("applied", applied),
		zap.String("status", string(bed.Status)),
	)
	return bed, applied, nil
}
