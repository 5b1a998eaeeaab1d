package model

import (
	"fmt"
	"time"
)

// BedStatus is the lifecycle state of a bed.
type BedStatus string

const (
	BedStatusIdle      BedStatus = "IDLE"
	BedStatusActive    BedStatus = "ACTIVE"
	BedStatusCompleted BedStatus = "COMPLETED"
)

// Modality names one of the treatment modalities layered onto a bed.
type Modality string

const (
	ModalityInjection Modality = "injection"
	ModalityManual    Modality = "manual"
	ModalityESWT      Modality = "eswt"
	ModalityTraction  Modality = "traction"
	ModalityFluid     Modality = "fluid"
)

// Modalities are independent flags, orthogonal to the step sequence.
type Modalities struct {
	Injection bool `json:"injection"`
	Manual    bool `json:"manual"`
	ESWT      bool `json:"eswt"`
	Traction  bool `json:"traction"`
	Fluid     bool `json:"fluid"`
}

// ParseModality validates a modality name.
func ParseModality(s string) (Modality, error) {
	switch m := Modality(s); m {
	case ModalityInjection, ModalityManual, ModalityESWT, ModalityTraction, ModalityFluid:
		return m, nil
	}
	return "", fmt.Errorf("unknown modality %q", s)
}

// Get reports the flag for m.
func (m Modalities) Get(flag Modality) bool {
	switch flag {
	case ModalityInjection:
		return m.Injection
	case ModalityManual:
		return m.Manual
	case ModalityESWT:
		return m.ESWT
	case ModalityTraction:
		return m.Traction
	case ModalityFluid:
		return m.Fluid
	}
	return false
}

// Toggle returns m with the given flag flipped.
func (m Modalities) Toggle(flag Modality) Modalities {
	switch flag {
	case ModalityInjection:
		m.Injection = !m.Injection
	case ModalityManual:
		m.Manual = !m.Manual
	case ModalityESWT:
		m.ESWT = !m.ESWT
	case ModalityTraction:
		m.Traction = !m.Traction
	case ModalityFluid:
		m.Fluid = !m.Fluid
	}
	return m
}

// ActivePreset is either a catalog reference or an embedded custom preset.
// The embedded preset takes precedence when both are present.
type ActivePreset struct {
	CatalogID string  `json:"catalogId,omitempty"`
	Custom    *Preset `json:"custom,omitempty"`
}

// CatalogRef references a catalog preset by id.
func CatalogRef(id string) ActivePreset {
	return ActivePreset{CatalogID: id}
}

// Embedded carries a session-owned copy of p.
func Embedded(p Preset) ActivePreset {
	c := p.Clone()
	return ActivePreset{Custom: &c}
}

// IsZero reports whether no preset is active.
func (a ActivePreset) IsZero() bool {
	return a.Custom == nil && a.CatalogID == ""
}

// ID is the identifier of whichever preset is in effect.
func (a ActivePreset) ID() string {
	if a.Custom != nil {
		return a.Custom.ID
	}
	return a.CatalogID
}

// Resolve returns the step sequence in effect.
func (a ActivePreset) Resolve(lookup PresetLookup) (Preset, bool) {
	if a.Custom != nil {
		return *a.Custom, true
	}
	if a.CatalogID == "" || lookup == nil {
		return Preset{}, false
	}
	return lookup.Lookup(a.CatalogID)
}

// Clone deep-copies the embedded preset.
func (a ActivePreset) Clone() ActivePreset {
	if a.Custom != nil {
		c := a.Custom.Clone()
		a.Custom = &c
	}
	return a
}

// Bed is a treatment station and its session state.
type Bed struct {
	ID               int            `json:"id"`
	Status           BedStatus      `json:"status"`
	Preset           ActivePreset   `json:"preset"`
	CurrentStepIndex int            `json:"currentStepIndex"`
	Queue            []int          `json:"queue"`
	StartTime        *time.Time     `json:"startTime,omitempty"`
	OriginalDuration *int           `json:"originalDuration,omitempty"`
	IsPaused         bool           `json:"isPaused"`
	RemainingTime    int            `json:"remainingTime"`
	Modalities       Modalities     `json:"modalities"`
	Memos            map[int]string `json:"memos"`
	UpdatedAt        *time.Time     `json:"updatedAt,omitempty"`

	// LastLocalWrite is the instant of the last locally originated write.
	// It is used for echo suppression only and never sent to the remote store.
	LastLocalWrite time.Time `json:"lastLocalWrite"`
}

// NewIdleBed creates a bed in the Idle state.
func NewIdleBed(id int) Bed {
	return Bed{
		ID:     id,
		Status: BedStatusIdle,
		Queue:  []int{},
		Memos:  map[int]string{},
	}
}

// NewBeds creates beds 1..n.
func NewBeds(n int) []Bed {
	beds := make([]Bed, n)
	for i := range beds {
		beds[i] = NewIdleBed(i + 1)
	}
	return beds
}

// CurrentStep resolves the step at CurrentStepIndex.
func (b Bed) CurrentStep(lookup PresetLookup) (TreatmentStep, bool) {
	if b.Status == BedStatusIdle {
		return TreatmentStep{}, false
	}
	p, ok := b.Preset.Resolve(lookup)
	if !ok || b.CurrentStepIndex < 0 || b.CurrentStepIndex >= len(p.Steps) {
		return TreatmentStep{}, false
	}
	return p.Steps[b.CurrentStepIndex], true
}

// IsZombie reports an Active bed whose step started implausibly long ago.
func (b Bed) IsZombie(now time.Time, maxAge time.Duration) bool {
	return b.Status == BedStatusActive && b.StartTime != nil && now.Sub(*b.StartTime) > maxAge
}

// Clone returns a deep copy of the bed.
func (b Bed) Clone() Bed {
	b.Preset = b.Preset.Clone()
	if b.Queue != nil {
		q := make([]int, len(b.Queue))
		copy(q, b.Queue)
		b.Queue = q
	}
	b.Memos = CloneMemos(b.Memos)
	if b.StartTime != nil {
		t := *b.StartTime
		b.StartTime = &t
	}
	if b.OriginalDuration != nil {
		d := *b.OriginalDuration
		b.OriginalDuration = &d
	}
	if b.UpdatedAt != nil {
		t := *b.UpdatedAt
		b.UpdatedAt = &t
	}
	return b
}

// CloneMemos copies a memo map, never returning nil.
func CloneMemos(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
