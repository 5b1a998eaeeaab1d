package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physiotrack-backend/internal/countdown"
	"physiotrack-backend/internal/model"
)

type mapCatalog map[string]model.Preset

func (m mapCatalog) Lookup(id string) (model.Preset, bool) {
	p, ok := m[id]
	return p, ok
}

var (
	t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	basic = model.Preset{
		ID:   "preset-basic",
		Name: "Basic",
		Steps: []model.TreatmentStep{
			{ID: "hp", Name: "Hot Pack", Duration: 600, EnableTimer: true, Color: "bg-red-500"},
			{ID: "ict", Name: "ICT", Duration: 600, Color: "bg-blue-500"},
			{ID: "mg", Name: "Magnetic", Duration: 300, Color: "bg-purple-500"},
		},
	}
	catalog = mapCatalog{basic.ID: basic}
)

func newCommands() *Commands {
	return NewCommands(catalog, QueueScheduler{})
}

// apply runs a command result against bed, failing the test on a no-op.
func apply(t *testing.T, bed model.Bed, u model.BedUpdate, ok bool) model.Bed {
	t.Helper()
	require.True(t, ok, "command was a no-op")
	return u.Apply(bed)
}

func started(t *testing.T, c *Commands) model.Bed {
	t.Helper()
	bed := model.NewIdleBed(1)
	u, ok := c.SelectPreset(bed, basic.ID, model.Modalities{Injection: true}, t0)
	return apply(t, bed, u, ok)
}

func assertIdle(t *testing.T, bed model.Bed) {
	t.Helper()
	assert.Equal(t, model.BedStatusIdle, bed.Status)
	assert.True(t, bed.Preset.IsZero())
	assert.Zero(t, bed.CurrentStepIndex)
	assert.Empty(t, bed.Queue)
	assert.Nil(t, bed.StartTime)
	assert.Equal(t, model.Modalities{}, bed.Modalities)
	assert.Empty(t, bed.Memos)
}

func TestSelectPreset(t *testing.T) {
	c := newCommands()
	bed := started(t, c)

	assert.Equal(t, model.BedStatusActive, bed.Status)
	assert.Equal(t, "preset-basic", bed.Preset.CatalogID)
	assert.Nil(t, bed.Preset.Custom)
	assert.Equal(t, 0, bed.CurrentStepIndex)
	assert.Equal(t, []int{1, 2}, bed.Queue)
	require.NotNil(t, bed.StartTime)
	assert.True(t, bed.StartTime.Equal(t0))
	assert.Equal(t, 600, bed.RemainingTime)
	require.NotNil(t, bed.OriginalDuration)
	assert.Equal(t, 600, *bed.OriginalDuration)
	assert.False(t, bed.IsPaused)
	assert.True(t, bed.Modalities.Injection)
	assert.Empty(t, bed.Memos)

	_, ok := c.SelectPreset(model.NewIdleBed(2), "missing", model.Modalities{}, t0)
	assert.False(t, ok)
}

func TestStartCustomAndQuick(t *testing.T) {
	c := newCommands()
	bed := model.NewIdleBed(2)

	_, ok := c.StartCustom(bed, "Empty", nil, model.Modalities{}, t0)
	assert.False(t, ok)

	u, ok := c.StartCustom(bed, "Mine", basic.Steps[:2], model.Modalities{Fluid: true}, t0)
	custom := apply(t, bed, u, ok)
	require.NotNil(t, custom.Preset.Custom)
	assert.Equal(t, "custom-1740819600000", custom.Preset.ID())
	assert.Equal(t, []int{1}, custom.Queue)
	assert.True(t, custom.Modalities.Fluid)

	tmpl := model.QuickTemplate{Name: "Laser", Minutes: 10, EnableTimer: true, Color: "bg-pink-500"}
	u, ok = c.StartQuick(bed, tmpl, model.Modalities{}, t0)
	quick := apply(t, bed, u, ok)
	p, ok := quick.Preset.Resolve(nil)
	require.True(t, ok)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "Laser", p.Steps[0].Name)
	assert.Equal(t, 600, quick.RemainingTime)
	assert.Empty(t, quick.Queue)
}

func TestStartTraction(t *testing.T) {
	c := newCommands()
	bed := model.NewIdleBed(11)

	u, ok := c.StartTraction(bed, 15, model.Modalities{Traction: true}, t0)
	bed = apply(t, bed, u, ok)
	require.NotNil(t, bed.Preset.Custom)
	assert.Equal(t, model.TractionPreset, bed.Preset.Custom.Name)
	assert.Equal(t, 900, bed.RemainingTime)
	assert.True(t, bed.Modalities.Traction)

	_, ok = c.StartTraction(bed, 0, model.Modalities{}, t0)
	assert.False(t, ok)
}

func TestAdvance_CompletesAfterLastStep(t *testing.T) {
	c := newCommands()
	bed := started(t, c)

	now := t0.Add(time.Minute)
	u, ok := c.Advance(bed, now)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, 1, bed.CurrentStepIndex)
	assert.Equal(t, []int{2}, bed.Queue)
	assert.True(t, bed.StartTime.Equal(now))

	u, ok = c.Advance(bed, now)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, 2, bed.CurrentStepIndex)
	assert.Equal(t, 300, bed.RemainingTime)
	assert.Empty(t, bed.Queue)

	u, ok = c.Advance(bed, now)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, model.BedStatusCompleted, bed.Status)
	assert.Equal(t, 0, bed.RemainingTime)
	assert.False(t, bed.IsPaused)

	_, ok = c.Advance(bed, now)
	assert.False(t, ok, "completed bed must not advance")

	_, ok = c.Advance(model.NewIdleBed(3), now)
	assert.False(t, ok, "idle bed must not advance")
}

func TestAdvance_Linear(t *testing.T) {
	c := NewCommands(catalog, LinearScheduler{})
	bed := model.NewIdleBed(1)
	u, ok := c.SelectPreset(bed, basic.ID, model.Modalities{}, t0)
	bed = apply(t, bed, u, ok)
	assert.Empty(t, bed.Queue)

	for want := 1; want <= 2; want++ {
		u, ok = c.Advance(bed, t0)
		bed = apply(t, bed, u, ok)
		assert.Equal(t, want, bed.CurrentStepIndex)
	}
	u, ok = c.Advance(bed, t0)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, model.BedStatusCompleted, bed.Status)

	_, ok = c.Requeue(started(t, c), 1, t0)
	assert.False(t, ok, "linear policy cannot reorder")
}

func TestClear_RestoresIdleInvariant(t *testing.T) {
	c := newCommands()

	active := started(t, c)
	u, ok := c.UpdateMemo(active, 1, "watch BP")
	active = apply(t, active, u, ok)

	paused := apply(t, active, model.BedUpdate{IsPaused: model.Some(true)}, true)

	completed := started(t, c)
	for i := 0; i < 3; i++ {
		u, ok = c.Advance(completed, t0)
		completed = apply(t, completed, u, ok)
	}
	require.Equal(t, model.BedStatusCompleted, completed.Status)

	for name, bed := range map[string]model.Bed{
		"idle":      model.NewIdleBed(5),
		"active":    active,
		"paused":    paused,
		"completed": completed,
	} {
		t.Run(name, func(t *testing.T) {
			u, ok := c.Clear(bed)
			assertIdle(t, apply(t, bed, u, ok))
		})
	}
}

func TestTogglePause_Continuity(t *testing.T) {
	c := newCommands()
	bed := started(t, c)

	pauseAt := t0.Add(100*time.Second + 400*time.Millisecond)
	before := countdown.Remaining(bed, &basic.Steps[0], pauseAt)

	u, ok := c.TogglePause(bed, pauseAt)
	bed = apply(t, bed, u, ok)
	assert.True(t, bed.IsPaused)
	assert.Equal(t, 500, bed.RemainingTime)

	// Time does not pass while paused.
	assert.Equal(t, 500, countdown.Remaining(bed, &basic.Steps[0], pauseAt.Add(time.Hour)))

	resumeAt := pauseAt.Add(300 * time.Millisecond)
	u, ok = c.TogglePause(bed, resumeAt)
	bed = apply(t, bed, u, ok)
	assert.False(t, bed.IsPaused)
	assert.True(t, bed.StartTime.Equal(resumeAt))

	after := countdown.Remaining(bed, &basic.Steps[0], resumeAt)
	assert.InDelta(t, before, after, 1)

	_, ok = c.TogglePause(model.NewIdleBed(2), t0)
	assert.False(t, ok)
}

func TestSwap(t *testing.T) {
	c := newCommands()
	steps := []model.TreatmentStep{
		{ID: "a", Name: "A", Duration: 100, EnableTimer: true, Color: "red"},
		{ID: "b", Name: "B", Duration: 200, EnableTimer: true, Color: "blue"},
	}
	bed := model.NewIdleBed(1)
	u, ok := c.StartCustom(bed, "AB", steps, model.Modalities{}, t0)
	bed = apply(t, bed, u, ok)
	u, ok = c.UpdateMemo(bed, 0, "memo A")
	bed = apply(t, bed, u, ok)
	u, ok = c.UpdateMemo(bed, 1, "memo B")
	bed = apply(t, bed, u, ok)
	presetID := bed.Preset.ID()

	now := t0.Add(30 * time.Second)
	u, ok = c.Swap(bed, 0, 1, now)
	bed = apply(t, bed, u, ok)

	p, ok := bed.Preset.Resolve(nil)
	require.True(t, ok)
	assert.Equal(t, "B", p.Steps[0].Name)
	assert.Equal(t, "blue", p.Steps[0].Color)
	assert.Equal(t, "A", p.Steps[1].Name)
	assert.Equal(t, presetID, p.ID)
	assert.Equal(t, map[int]string{0: "memo B", 1: "memo A"}, bed.Memos)

	// The current index now holds B, so its timer restarts from B and A
	// takes B's place in the queue.
	assert.Equal(t, []int{1}, bed.Queue)
	assert.Equal(t, 200, bed.RemainingTime)
	assert.Equal(t, 200, *bed.OriginalDuration)
	assert.True(t, bed.StartTime.Equal(now))

	_, ok = c.Swap(bed, 0, 5, now)
	assert.False(t, ok)
	_, ok = c.Swap(bed, 1, 1, now)
	assert.False(t, ok)
}

// visit advances bed to completion and returns the step ids it ran, starting
// with the current one.
func visit(t *testing.T, c *Commands, bed model.Bed) []string {
	t.Helper()
	var ids []string
	for i := 0; bed.Status == model.BedStatusActive; i++ {
		require.Less(t, i, 10, "session never completed")
		p, ok := bed.Preset.Resolve(catalog)
		require.True(t, ok)
		ids = append(ids, p.Steps[bed.CurrentStepIndex].ID)
		u, ok := c.Advance(bed, t0)
		bed = apply(t, bed, u, ok)
	}
	return ids
}

func TestSwap_KeepsUnvisitedSteps(t *testing.T) {
	testCases := []struct {
		name     string
		advances int
		i, j     int
		queue    []int
		order    []string
	}{
		{
			name:     "swap with a visited position",
			advances: 1,
			i:        0,
			j:        2,
			queue:    []int{0},
			order:    []string{"ict", "mg"},
		},
		{
			name:     "swap current with a visited position",
			advances: 1,
			i:        0,
			j:        1,
			queue:    []int{0, 2},
			order:    []string{"hp", "ict", "mg"},
		},
		{
			name:     "swap current with a queued position",
			advances: 0,
			i:        0,
			j:        2,
			queue:    []int{1, 2},
			order:    []string{"mg", "ict", "hp"},
		},
		{
			name:     "swap two queued positions",
			advances: 0,
			i:        1,
			j:        2,
			queue:    []int{2, 1},
			order:    []string{"hp", "ict", "mg"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCommands()
			bed := started(t, c)
			for n := 0; n < tc.advances; n++ {
				u, ok := c.Advance(bed, t0)
				bed = apply(t, bed, u, ok)
			}

			u, ok := c.Swap(bed, tc.i, tc.j, t0)
			bed = apply(t, bed, u, ok)
			assert.Equal(t, tc.queue, bed.Queue)
			assert.Equal(t, tc.order, visit(t, c, bed))
		})
	}
}

func TestSwap_MaterializesCatalogPreset(t *testing.T) {
	c := newCommands()
	bed := started(t, c)

	u, ok := c.Swap(bed, 1, 2, t0.Add(time.Second))
	bed = apply(t, bed, u, ok)

	require.NotNil(t, bed.Preset.Custom)
	assert.Equal(t, []string{"hp", "mg", "ict"}, stepIDs(bed.Preset.Custom.Steps))
	// The catalog entry itself is untouched.
	assert.Equal(t, "ict", catalog[basic.ID].Steps[1].ID)
	// The current step was not swapped, so the timer keeps running.
	assert.True(t, bed.StartTime.Equal(t0))
}

func TestRetreat_Queue(t *testing.T) {
	c := newCommands()
	bed := started(t, c)
	u, ok := c.Advance(bed, t0)
	bed = apply(t, bed, u, ok)
	require.Equal(t, 1, bed.CurrentStepIndex)

	now := t0.Add(time.Minute)
	u, ok = c.Retreat(bed, now)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, 0, bed.CurrentStepIndex)
	assert.Equal(t, []int{1, 2}, bed.Queue)
	assert.Equal(t, 600, bed.RemainingTime)
	assert.True(t, bed.StartTime.Equal(now))

	_, ok = c.Retreat(bed, now)
	assert.False(t, ok, "cannot retreat past the first step")
}

func TestRequeue(t *testing.T) {
	c := newCommands()
	bed := started(t, c)

	u, ok := c.Requeue(bed, 1, t0)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, 0, bed.CurrentStepIndex)
	assert.Equal(t, []int{2, 1}, bed.Queue)
	assert.True(t, bed.StartTime.Equal(t0), "moving another step must not restart the timer")

	now := t0.Add(time.Minute)
	u, ok = c.Requeue(bed, 0, now)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, 2, bed.CurrentStepIndex)
	assert.Equal(t, []int{1, 0}, bed.Queue)
	assert.True(t, bed.StartTime.Equal(now))

	_, ok = c.Requeue(bed, 9, now)
	assert.False(t, ok)
}

func TestUpdateSteps(t *testing.T) {
	c := newCommands()
	bed := started(t, c)
	u, ok := c.Advance(bed, t0)
	bed = apply(t, bed, u, ok) // on "ict", queue [2]
	u, ok = c.UpdateMemo(bed, 2, "low intensity")
	bed = apply(t, bed, u, ok)
	startedAt := *bed.StartTime

	t.Run("reorder keeps current step", func(t *testing.T) {
		steps := []model.TreatmentStep{basic.Steps[2], basic.Steps[0], basic.Steps[1]}
		u, ok := c.UpdateSteps(bed, steps, t0.Add(time.Minute))
		got := apply(t, bed, u, ok)

		assert.Equal(t, 2, got.CurrentStepIndex)
		assert.True(t, got.StartTime.Equal(startedAt))
		assert.Equal(t, []int{0}, got.Queue)
		assert.Equal(t, map[int]string{0: "low intensity"}, got.Memos)
		require.NotNil(t, got.Preset.Custom)
	})

	t.Run("new step is queued", func(t *testing.T) {
		extra := model.TreatmentStep{ID: "la", Name: "Laser", Duration: 300, EnableTimer: true}
		steps := append(model.CloneSteps(basic.Steps), extra)
		u, ok := c.UpdateSteps(bed, steps, t0.Add(time.Minute))
		got := apply(t, bed, u, ok)

		assert.Equal(t, 1, got.CurrentStepIndex)
		assert.Equal(t, []int{2, 3}, got.Queue)
	})

	t.Run("removed current step clamps and restarts", func(t *testing.T) {
		now := t0.Add(2 * time.Minute)
		steps := []model.TreatmentStep{basic.Steps[0], basic.Steps[2]}
		u, ok := c.UpdateSteps(bed, steps, now)
		got := apply(t, bed, u, ok)

		assert.Equal(t, 1, got.CurrentStepIndex)
		assert.True(t, got.StartTime.Equal(now))
		assert.Equal(t, 300, got.RemainingTime)
		assert.Empty(t, got.Queue)
	})

	_, ok = c.UpdateSteps(bed, nil, t0)
	assert.False(t, ok)
	_, ok = c.UpdateSteps(model.NewIdleBed(2), basic.Steps, t0)
	assert.False(t, ok)
}

func TestUpdateMemo(t *testing.T) {
	c := newCommands()
	bed := started(t, c)

	u, ok := c.UpdateMemo(bed, 0, "left knee")
	bed = apply(t, bed, u, ok)
	assert.Equal(t, "left knee", bed.Memos[0])

	u, ok = c.UpdateMemo(bed, 0, "")
	bed = apply(t, bed, u, ok)
	assert.NotContains(t, bed.Memos, 0)

	_, ok = c.UpdateMemo(bed, 7, "x")
	assert.False(t, ok)
	_, ok = c.UpdateMemo(model.NewIdleBed(2), 0, "x")
	assert.False(t, ok)
}

func TestUpdateDuration(t *testing.T) {
	c := newCommands()
	bed := started(t, c)
	bed = apply(t, bed, model.BedUpdate{IsPaused: model.Some(true)}, true)

	now := t0.Add(time.Minute)
	u, ok := c.UpdateDuration(bed, 120, now)
	bed = apply(t, bed, u, ok)
	assert.Equal(t, 120, bed.RemainingTime)
	assert.Equal(t, 120, *bed.OriginalDuration)
	assert.False(t, bed.IsPaused)
	assert.True(t, bed.StartTime.Equal(now))
	// The step definition is unchanged.
	assert.Equal(t, 600, catalog[basic.ID].Steps[0].Duration)

	_, ok = c.UpdateDuration(bed, -1, now)
	assert.False(t, ok)
}

func TestToggleModality(t *testing.T) {
	c := newCommands()
	bed := started(t, c)

	u, ok := c.ToggleModality(bed, model.ModalityESWT)
	bed = apply(t, bed, u, ok)
	assert.True(t, bed.Modalities.ESWT)
	assert.True(t, bed.Modalities.Injection, "other flags are untouched")

	u, ok = c.ToggleModality(bed, model.ModalityESWT)
	bed = apply(t, bed, u, ok)
	assert.False(t, bed.Modalities.ESWT)

	_, ok = c.ToggleModality(bed, model.Modality("bogus"))
	assert.False(t, ok)
	_, ok = c.ToggleModality(model.NewIdleBed(2), model.ModalityFluid)
	assert.False(t, ok)
}

func stepIDs(steps []model.TreatmentStep) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}
