package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoSteps is returned when a session would start from an empty step list.
var ErrNoSteps = errors.New("preset has no steps")

// TreatmentStep is one phase of a treatment. Steps are replaced wholesale,
// never mutated in place.
type TreatmentStep struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Duration    int    `json:"duration"` // seconds
	EnableTimer bool   `json:"enableTimer"`
	Color       string `json:"color"`
}

// Preset is a named ordered list of treatment steps.
type Preset struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Steps []TreatmentStep `json:"steps"`
}

// QuickTemplate describes a single-step treatment that can be started in one tap.
type QuickTemplate struct {
	Name        string `json:"name" yaml:"name"`
	Label       string `json:"label" yaml:"label"`
	Minutes     int    `json:"minutes" yaml:"minutes"`
	EnableTimer bool   `json:"enableTimer" yaml:"enable_timer"`
	Color       string `json:"color" yaml:"color"`
}

// PresetLookup resolves catalog presets by id.
type PresetLookup interface {
	Lookup(id string) (Preset, bool)
}

const (
	TractionStepID    = "tr"
	TractionStepName  = "Traction"
	TractionPreset    = "Traction Therapy"
	TractionStepColor = "bg-orange-500"
)

// NewStep builds a step with a fresh identity.
func NewStep(name string, durationSeconds int, timed bool, color string) (TreatmentStep, error) {
	if strings.TrimSpace(name) == "" {
		return TreatmentStep{}, errors.New("step name is required")
	}
	if durationSeconds < 0 {
		return TreatmentStep{}, fmt.Errorf("step %q: duration must not be negative", name)
	}
	return TreatmentStep{
		ID:          uuid.NewString(),
		Name:        name,
		Duration:    durationSeconds,
		EnableTimer: timed,
		Color:       color,
	}, nil
}

// NewQuickStep builds the single step of a quick treatment.
func NewQuickStep(tmpl QuickTemplate) (TreatmentStep, error) {
	return NewStep(tmpl.Name, tmpl.Minutes*60, tmpl.EnableTimer, tmpl.Color)
}

// NewCustomPreset synthesizes an ad-hoc preset whose id is derived from now.
func NewCustomPreset(name string, steps []TreatmentStep, now time.Time) (Preset, error) {
	if len(steps) == 0 {
		return Preset{}, ErrNoSteps
	}
	return Preset{
		ID:    fmt.Sprintf("custom-%d", now.UnixMilli()),
		Name:  name,
		Steps: CloneSteps(steps),
	}, nil
}

// NewTractionPreset builds the dedicated one-step traction preset.
func NewTractionPreset(durationMinutes int, now time.Time) (Preset, error) {
	if durationMinutes <= 0 {
		return Preset{}, fmt.Errorf("traction duration must be positive, got %d", durationMinutes)
	}
	return Preset{
		ID:   fmt.Sprintf("traction-%d", now.UnixMilli()),
		Name: TractionPreset,
		Steps: []TreatmentStep{{
			ID:          TractionStepID,
			Name:        TractionStepName,
			Duration:    durationMinutes * 60,
			EnableTimer: true,
			Color:       TractionStepColor,
		}},
	}, nil
}

// Clone returns a deep copy of the preset.
func (p Preset) Clone() Preset {
	p.Steps = CloneSteps(p.Steps)
	return p
}

// StepIndex returns the position of the step with the given id.
func (p Preset) StepIndex(id string) int {
	for i, s := range p.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// CloneSteps copies a step slice.
func CloneSteps(steps []TreatmentStep) []TreatmentStep {
	if steps == nil {
		return nil
	}
	out := make([]TreatmentStep, len(steps))
	copy(out, steps)
	return out
}
