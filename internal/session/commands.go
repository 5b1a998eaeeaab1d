package session

import (
	"time"

	"physiotrack-backend/internal/countdown"
	"physiotrack-backend/internal/model"
)

// Resolver resolves catalog presets by id.
type Resolver interface {
	Lookup(id string) (model.Preset, bool)
}

// Commands computes bed state transitions. Every method is pure: it reads
// the given bed and returns the partial update to apply, or false when the
// command does not apply and the bed must stay unchanged.
type Commands struct {
	catalog Resolver
	policy  Scheduler
}

// NewCommands creates the command layer. A nil policy selects the queue policy.
func NewCommands(catalog Resolver, policy Scheduler) *Commands {
	if policy == nil {
		policy = QueueScheduler{}
	}
	return &Commands{catalog: catalog, policy: policy}
}

// Policy returns the scheduling policy in use.
func (c *Commands) Policy() Scheduler {
	return c.policy
}

// SelectPreset starts a session from a catalog preset.
func (c *Commands) SelectPreset(bed model.Bed, presetID string, flags model.Modalities, now time.Time) (model.BedUpdate, bool) {
	if c.catalog == nil {
		return model.BedUpdate{}, false
	}
	p, ok := c.catalog.Lookup(presetID)
	if !ok {
		return model.BedUpdate{}, false
	}
	return c.start(model.CatalogRef(p.ID), p.Steps, flags, now)
}

// StartCustom starts a session from an ad-hoc step list.
func (c *Commands) StartCustom(bed model.Bed, name string, steps []model.TreatmentStep, flags model.Modalities, now time.Time) (model.BedUpdate, bool) {
	p, err := model.NewCustomPreset(name, steps, now)
	if err != nil {
		return model.BedUpdate{}, false
	}
	return c.start(model.Embedded(p), p.Steps, flags, now)
}

// StartQuick starts a single-step session from a quick treatment template.
func (c *Commands) StartQuick(bed model.Bed, tmpl model.QuickTemplate, flags model.Modalities, now time.Time) (model.BedUpdate, bool) {
	step, err := model.NewQuickStep(tmpl)
	if err != nil {
		return model.BedUpdate{}, false
	}
	return c.StartCustom(bed, tmpl.Name, []model.TreatmentStep{step}, flags, now)
}

// StartTraction starts the dedicated one-step traction session.
func (c *Commands) StartTraction(bed model.Bed, minutes int, flags model.Modalities, now time.Time) (model.BedUpdate, bool) {
	p, err := model.NewTractionPreset(minutes, now)
	if err != nil {
		return model.BedUpdate{}, false
	}
	return c.start(model.Embedded(p), p.Steps, flags, now)
}

func (c *Commands) start(preset model.ActivePreset, steps []model.TreatmentStep, flags model.Modalities, now time.Time) (model.BedUpdate, bool) {
	if len(steps) == 0 {
		return model.BedUpdate{}, false
	}
	u := restart(0, steps[0], now)
	u.Status = model.Some(model.BedStatusActive)
	u.Preset = model.Some(preset)
	u.Queue = model.Some(c.policy.Start(len(steps)))
	u.Memos = model.Some(map[int]string{})
	u.SetModalities(flags)
	return u, true
}

// Advance moves to the next scheduled step, completing the session when
// nothing remains. Idle and Completed beds are left alone.
func (c *Commands) Advance(bed model.Bed, now time.Time) (model.BedUpdate, bool) {
	if bed.Status != model.BedStatusActive {
		return model.BedUpdate{}, false
	}
	p, ok := c.resolve(bed)
	if !ok {
		return model.BedUpdate{}, false
	}

	next, rest, ok := c.policy.Next(bed.CurrentStepIndex, bed.Queue, len(p.Steps))
	if !ok {
		return model.BedUpdate{
			Status:        model.Some(model.BedStatusCompleted),
			Queue:         model.Some([]int{}),
			RemainingTime: model.Some(0),
			IsPaused:      model.Some(false),
		}, true
	}
	u := restart(next, p.Steps[next], now)
	u.Queue = model.Some(rest)
	return u, true
}

// Retreat returns to the previous step and restarts its timer.
func (c *Commands) Retreat(bed model.Bed, now time.Time) (model.BedUpdate, bool) {
	if bed.Status != model.BedStatusActive {
		return model.BedUpdate{}, false
	}
	p, ok := c.resolve(bed)
	if !ok {
		return model.BedUpdate{}, false
	}
	prev, rest, ok := c.policy.Previous(bed.CurrentStepIndex, bed.Queue, len(p.Steps))
	if !ok {
		return model.BedUpdate{}, false
	}
	u := restart(prev, p.Steps[prev], now)
	u.Queue = model.Some(rest)
	return u, true
}

// Swap exchanges two step positions together with their memos and keeps the
// execution queue pointing at the same unvisited steps. A catalog preset is
// copied into a session-owned preset first.
func (c *Commands) Swap(bed model.Bed, i, j int, now time.Time) (model.BedUpdate, bool) {
	if bed.Status == model.BedStatusIdle || i == j {
		return model.BedUpdate{}, false
	}
	p, ok := c.resolve(bed)
	if !ok || !validIndex(i, len(p.Steps)) || !validIndex(j, len(p.Steps)) {
		return model.BedUpdate{}, false
	}

	steps := model.CloneSteps(p.Steps)
	steps[i], steps[j] = steps[j], steps[i]

	memos := model.CloneMemos(bed.Memos)
	mi, hasI := memos[i]
	mj, hasJ := memos[j]
	delete(memos, i)
	delete(memos, j)
	if hasI {
		memos[j] = mi
	}
	if hasJ {
		memos[i] = mj
	}

	var u model.BedUpdate
	cur := bed.CurrentStepIndex
	if bed.Status == model.BedStatusActive && (cur == i || cur == j) {
		u = restart(cur, steps[cur], now)
	}
	if bed.Status == model.BedStatusActive {
		u.Queue = model.Some(c.policy.Swap(bed.Queue, i, j, cur))
	}
	u.Preset = model.Some(c.sessionOwned(bed, p, steps, now))
	u.Memos = model.Some(memos)
	return u, true
}

// TogglePause freezes or resumes the running step.
func (c *Commands) TogglePause(bed model.Bed, now time.Time) (model.BedUpdate, bool) {
	if bed.Status != model.BedStatusActive {
		return model.BedUpdate{}, false
	}
	if !bed.IsPaused {
		var step *model.TreatmentStep
		if s, ok := bed.CurrentStep(c.catalog); ok {
			step = &s
		}
		return model.BedUpdate{
			IsPaused:      model.Some(true),
			RemainingTime: model.Some(countdown.Remaining(bed, step, now)),
		}, true
	}

	// Resuming restarts the clock from the frozen value.
	frozen := bed.RemainingTime
	return model.BedUpdate{
		IsPaused:         model.Some(false),
		StartTime:        model.Some(timePtr(now)),
		OriginalDuration: model.Some(&frozen),
	}, true
}

// Requeue moves a step to the end of the schedule. Requeueing the current
// step sends it to the back and advances.
func (c *Commands) Requeue(bed model.Bed, index int, now time.Time) (model.BedUpdate, bool) {
	if bed.Status != model.BedStatusActive {
		return model.BedUpdate{}, false
	}
	p, ok := c.resolve(bed)
	if !ok || !validIndex(index, len(p.Steps)) {
		return model.BedUpdate{}, false
	}
	queue, ok := c.policy.Requeue(bed.Queue, index)
	if !ok {
		return model.BedUpdate{}, false
	}
	if index != bed.CurrentStepIndex {
		return model.BedUpdate{Queue: model.Some(queue)}, true
	}

	next, rest, ok := c.policy.Next(bed.CurrentStepIndex, queue, len(p.Steps))
	if !ok {
		return model.BedUpdate{}, false
	}
	u := restart(next, p.Steps[next], now)
	u.Queue = model.Some(rest)
	return u, true
}

// UpdateSteps replaces the step list, staying on the same logical step when
// it still exists. Memos follow their steps by id.
func (c *Commands) UpdateSteps(bed model.Bed, steps []model.TreatmentStep, now time.Time) (model.BedUpdate, bool) {
	if bed.Status == model.BedStatusIdle || len(steps) == 0 {
		return model.BedUpdate{}, false
	}
	p, ok := c.resolve(bed)
	if !ok {
		return model.BedUpdate{}, false
	}
	steps = model.CloneSteps(steps)

	cur := bed.CurrentStepIndex
	var curID string
	if validIndex(cur, len(p.Steps)) {
		curID = p.Steps[cur].ID
	}
	newCur := indexOf(steps, curID)
	if newCur < 0 {
		newCur = clamp(cur, 0, len(steps)-1)
	}

	var u model.BedUpdate
	if bed.Status == model.BedStatusActive && steps[newCur].ID != curID {
		u = restart(newCur, steps[newCur], now)
	} else {
		u.CurrentStepIndex = model.Some(newCur)
	}
	u.Preset = model.Some(c.sessionOwned(bed, p, steps, now))
	u.Queue = model.Some(c.policy.Remap(p.Steps, steps, bed.Queue, newCur))
	u.Memos = model.Some(remapMemos(bed.Memos, p.Steps, steps))
	return u, true
}

// UpdateMemo sets the note for a step, or removes it when text is empty.
func (c *Commands) UpdateMemo(bed model.Bed, index int, text string) (model.BedUpdate, bool) {
	if bed.Status == model.BedStatusIdle {
		return model.BedUpdate{}, false
	}
	p, ok := c.resolve(bed)
	if !ok || !validIndex(index, len(p.Steps)) {
		return model.BedUpdate{}, false
	}
	memos := model.CloneMemos(bed.Memos)
	if text == "" {
		delete(memos, index)
	} else {
		memos[index] = text
	}
	return model.BedUpdate{Memos: model.Some(memos)}, true
}

// UpdateDuration overrides the current step's duration and restarts it.
// The step definition is unchanged.
func (c *Commands) UpdateDuration(bed model.Bed, seconds int, now time.Time) (model.BedUpdate, bool) {
	if bed.Status != model.BedStatusActive || seconds < 0 {
		return model.BedUpdate{}, false
	}
	return model.BedUpdate{
		StartTime:        model.Some(timePtr(now)),
		RemainingTime:    model.Some(seconds),
		OriginalDuration: model.Some(&seconds),
		IsPaused:         model.Some(false),
	}, true
}

// ToggleModality flips one modality flag. Idle beds carry no flags.
func (c *Commands) ToggleModality(bed model.Bed, flag model.Modality) (model.BedUpdate, bool) {
	if bed.Status == model.BedStatusIdle {
		return model.BedUpdate{}, false
	}
	if _, err := model.ParseModality(string(flag)); err != nil {
		return model.BedUpdate{}, false
	}
	var u model.BedUpdate
	u.SetModality(flag, !bed.Modalities.Get(flag))
	return u, true
}

// Clear returns the bed to Idle.
func (c *Commands) Clear(model.Bed) (model.BedUpdate, bool) {
	return model.IdleUpdate(), true
}

func (c *Commands) resolve(bed model.Bed) (model.Preset, bool) {
	p, ok := bed.Preset.Resolve(c.catalog)
	if !ok || len(p.Steps) == 0 {
		return model.Preset{}, false
	}
	return p, true
}

// sessionOwned returns the embedded preset carrying steps. An existing
// embedded preset keeps its identity; a catalog preset gets a fresh one.
func (c *Commands) sessionOwned(bed model.Bed, p model.Preset, steps []model.TreatmentStep, now time.Time) model.ActivePreset {
	if bed.Preset.Custom != nil {
		return model.Embedded(model.Preset{ID: p.ID, Name: p.Name, Steps: steps})
	}
	custom, err := model.NewCustomPreset(p.Name, steps, now)
	if err != nil {
		return bed.Preset
	}
	return model.Embedded(custom)
}

// restart makes step at index current with a fresh, unpaused timer.
func restart(index int, step model.TreatmentStep, now time.Time) model.BedUpdate {
	duration := step.Duration
	return model.BedUpdate{
		CurrentStepIndex: model.Some(index),
		StartTime:        model.Some(timePtr(now)),
		RemainingTime:    model.Some(duration),
		OriginalDuration: model.Some(&duration),
		IsPaused:         model.Some(false),
	}
}

func remapMemos(memos map[int]string, oldSteps, newSteps []model.TreatmentStep) map[int]string {
	out := make(map[int]string, len(memos))
	for i, text := range memos {
		if !validIndex(i, len(oldSteps)) {
			continue
		}
		if ni := indexOf(newSteps, oldSteps[i].ID); ni >= 0 {
			out[ni] = text
		}
	}
	return out
}

func indexOf(steps []model.TreatmentStep, id string) int {
	if id == "" {
		return -1
	}
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func validIndex(i, n int) bool {
	return i >= 0 && i < n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
