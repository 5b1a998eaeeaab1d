package catalog

import (
	"context"
	"errors"
	"sync"

	"physiotrack-backend/internal/model"
)

// ErrPresetNotFound is returned when deleting an unknown preset.
var ErrPresetNotFound = errors.New("preset not found")

// Catalog resolves presets by id and lists them in display order.
type Catalog interface {
	Lookup(id string) (model.Preset, bool)
	List(ctx context.Context) ([]model.Preset, error)
	Save(ctx context.Context, p model.Preset, rank int) error
	Delete(ctx context.Context, id string) error
}

// DefaultPresets returns the built-in presets.
func DefaultPresets() []model.Preset {
	return []model.Preset{
		{
			ID:   "preset-basic",
			Name: "기본 (Basic)",
			Steps: []model.TreatmentStep{
				{ID: "step-hp-basic", Name: "핫팩 (Hot Pack)", Duration: 600, EnableTimer: true, Color: "bg-red-500"},
				{ID: "step-ict-basic", Name: "ICT", Duration: 600, EnableTimer: false, Color: "bg-blue-500"},
				{ID: "step-mg-basic", Name: "자기장 (Magnetic)", Duration: 600, EnableTimer: false, Color: "bg-purple-500"},
			},
		},
		{
			ID:   "preset-neck",
			Name: "목 치료 (Neck)",
			Steps: []model.TreatmentStep{
				{ID: "step-hp-neck", Name: "핫팩 (Hot Pack)", Duration: 600, EnableTimer: true, Color: "bg-red-500"},
				{ID: "step-tr-neck", Name: "견인 (Traction)", Duration: 900, EnableTimer: true, Color: "bg-orange-500"},
				{ID: "step-ict-neck", Name: "ICT", Duration: 600, EnableTimer: false, Color: "bg-blue-500"},
			},
		},
		{
			ID:   "preset-simple",
			Name: "단순 물리치료",
			Steps: []model.TreatmentStep{
				{ID: "step-ir-simple", Name: "적외선 (IR)", Duration: 900, EnableTimer: true, Color: "bg-red-600"},
				{ID: "step-tens-simple", Name: "TENS", Duration: 900, EnableTimer: false, Color: "bg-indigo-500"},
			},
		},
	}
}

// Static is an in-memory catalog used when no database is configured.
type Static struct {
	mu      sync.RWMutex
	presets []model.Preset
}

// NewStatic creates a catalog holding the given presets in order.
func NewStatic(presets ...model.Preset) *Static {
	s := &Static{}
	for _, p := range presets {
		s.presets = append(s.presets, p.Clone())
	}
	return s
}

func (s *Static) Lookup(id string) (model.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.presets, id)
}

func (s *Static) List(context.Context) ([]model.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePresets(s.presets), nil
}

// Save replaces a preset with the same id, otherwise inserts it at rank.
func (s *Static) Save(_ context.Context, p model.Preset, rank int) error {
	if len(p.Steps) == 0 {
		return model.ErrNoSteps
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.presets {
		if s.presets[i].ID == p.ID {
			s.presets = append(s.presets[:i], s.presets[i+1:]...)
			break
		}
	}
	if rank < 0 || rank > len(s.presets) {
		rank = len(s.presets)
	}
	s.presets = append(s.presets, model.Preset{})
	copy(s.presets[rank+1:], s.presets[rank:])
	s.presets[rank] = p.Clone()
	return nil
}

func (s *Static) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.presets {
		if s.presets[i].ID == id {
			s.presets = append(s.presets[:i], s.presets[i+1:]...)
			return nil
		}
	}
	return ErrPresetNotFound
}

func find(presets []model.Preset, id string) (model.Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return model.Preset{}, false
}

func clonePresets(presets []model.Preset) []model.Preset {
	out := make([]model.Preset, len(presets))
	for i, p := range presets {
		out[i] = p.Clone()
	}
	return out
}
