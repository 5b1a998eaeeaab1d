package model

import "time"

// Opt is an optional field of a partial update.
type Opt[T any] struct {
	value T
	ok    bool
}

// Some wraps v as a present value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, ok: true}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSet reports whether the value is present.
func (o Opt[T]) IsSet() bool {
	return o.ok
}

// BedUpdate is a typed partial bed state. Only the fields that are set are
// applied locally and sent to the remote store.
type BedUpdate struct {
	Status           Opt[BedStatus]
	Preset           Opt[ActivePreset]
	CurrentStepIndex Opt[int]
	Queue            Opt[[]int]
	StartTime        Opt[*time.Time] // Some(nil) clears
	OriginalDuration Opt[*int]       // Some(nil) clears
	IsPaused         Opt[bool]
	RemainingTime    Opt[int]
	Injection        Opt[bool]
	Manual           Opt[bool]
	ESWT             Opt[bool]
	Traction         Opt[bool]
	Fluid            Opt[bool]
	Memos            Opt[map[int]string]
}

// SetModalities sets all five modality flags.
func (u *BedUpdate) SetModalities(m Modalities) {
	u.Injection = Some(m.Injection)
	u.Manual = Some(m.Manual)
	u.ESWT = Some(m.ESWT)
	u.Traction = Some(m.Traction)
	u.Fluid = Some(m.Fluid)
}

// SetModality sets a single modality flag.
func (u *BedUpdate) SetModality(flag Modality, v bool) {
	switch flag {
	case ModalityInjection:
		u.Injection = Some(v)
	case ModalityManual:
		u.Manual = Some(v)
	case ModalityESWT:
		u.ESWT = Some(v)
	case ModalityTraction:
		u.Traction = Some(v)
	case ModalityFluid:
		u.Fluid = Some(v)
	}
}

// IsEmpty reports whether no field is set.
func (u BedUpdate) IsEmpty() bool {
	return !u.Status.ok && !u.Preset.ok && !u.CurrentStepIndex.ok && !u.Queue.ok &&
		!u.StartTime.ok && !u.OriginalDuration.ok && !u.IsPaused.ok && !u.RemainingTime.ok &&
		!u.Injection.ok && !u.Manual.ok && !u.ESWT.ok && !u.Traction.ok && !u.Fluid.ok &&
		!u.Memos.ok
}

// Apply returns a copy of b with the set fields replaced.
func (u BedUpdate) Apply(b Bed) Bed {
	b = b.Clone()
	if v, ok := u.Status.Get(); ok {
		b.Status = v
	}
	if v, ok := u.Preset.Get(); ok {
		b.Preset = v.Clone()
	}
	if v, ok := u.CurrentStepIndex.Get(); ok {
		b.CurrentStepIndex = v
	}
	if v, ok := u.Queue.Get(); ok {
		q := make([]int, len(v))
		copy(q, v)
		b.Queue = q
	}
	if v, ok := u.StartTime.Get(); ok {
		if v == nil {
			b.StartTime = nil
		} else {
			t := *v
			b.StartTime = &t
		}
	}
	if v, ok := u.OriginalDuration.Get(); ok {
		if v == nil {
			b.OriginalDuration = nil
		} else {
			d := *v
			b.OriginalDuration = &d
		}
	}
	if v, ok := u.IsPaused.Get(); ok {
		b.IsPaused = v
	}
	if v, ok := u.RemainingTime.Get(); ok {
		b.RemainingTime = v
	}
	if v, ok := u.Injection.Get(); ok {
		b.Modalities.Injection = v
	}
	if v, ok := u.Manual.Get(); ok {
		b.Modalities.Manual = v
	}
	if v, ok := u.ESWT.Get(); ok {
		b.Modalities.ESWT = v
	}
	if v, ok := u.Traction.Get(); ok {
		b.Modalities.Traction = v
	}
	if v, ok := u.Fluid.Get(); ok {
		b.Modalities.Fluid = v
	}
	if v, ok := u.Memos.Get(); ok {
		b.Memos = CloneMemos(v)
	}
	return b
}

// IdleUpdate returns the update that puts a bed back into the Idle invariant.
func IdleUpdate() BedUpdate {
	u := BedUpdate{
		Status:           Some(BedStatusIdle),
		Preset:           Some(ActivePreset{}),
		CurrentStepIndex: Some(0),
		Queue:            Some([]int{}),
		StartTime:        Some[*time.Time](nil),
		OriginalDuration: Some[*int](nil),
		IsPaused:         Some(false),
		RemainingTime:    Some(0),
		Memos:            Some(map[int]string{}),
	}
	u.SetModalities(Modalities{})
	return u
}
