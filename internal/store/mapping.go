package store

import (
	"time"

	"physiotrack-backend/internal/model"
)

// MapRowToBed converts a remote row to a bed. An Active row whose step
// started more than zombieAge before now is reset to Idle; reset reports it.
func MapRowToBed(row model.BedRow, now time.Time, zombieAge time.Duration) (bed model.Bed, reset bool) {
	bed = model.Bed{
		ID:               int(row.ID),
		Status:           parseStatus(row.Status),
		CurrentStepIndex: row.CurrentStepIndex,
		Queue:            append([]int{}, row.Queue...),
		IsPaused:         row.IsPaused,
		RemainingTime:    row.RemainingTime,
		Modalities: model.Modalities{
			Injection: row.IsInjection,
			Manual:    row.IsManual,
			ESWT:      row.IsESWT,
			Traction:  row.IsTraction,
			Fluid:     row.IsFluid,
		},
		Memos: model.CloneMemos(row.Memos),
	}

	switch {
	case row.CustomPreset.Preset != nil:
		bed.Preset = model.Embedded(*row.CustomPreset.Preset)
	case row.CurrentPresetID != nil && *row.CurrentPresetID != "":
		bed.Preset = model.CatalogRef(*row.CurrentPresetID)
	}
	if row.StartTime != nil {
		t := time.UnixMilli(*row.StartTime)
		bed.StartTime = &t
	}
	if row.OriginalDuration != nil {
		d := *row.OriginalDuration
		bed.OriginalDuration = &d
	}
	if !row.UpdatedAt.IsZero() {
		t := row.UpdatedAt
		bed.UpdatedAt = &t
	}

	if zombieAge > 0 && bed.IsZombie(now, zombieAge) {
		updatedAt := bed.UpdatedAt
		bed = model.IdleUpdate().Apply(bed)
		bed.UpdatedAt = updatedAt
		return bed, true
	}
	return bed, false
}

// MapBedToRow converts a bed to its full remote row.
func MapBedToRow(bed model.Bed) model.BedRow {
	row := model.BedRow{
		ID:               int64(bed.ID),
		Status:           string(bed.Status),
		CurrentPresetID:  presetID(bed.Preset),
		CustomPreset:     model.PresetColumn{Preset: bed.Preset.Clone().Custom},
		CurrentStepIndex: bed.CurrentStepIndex,
		Queue:            model.IntList(append([]int{}, bed.Queue...)),
		StartTime:        unixMillis(bed.StartTime),
		IsPaused:         bed.IsPaused,
		RemainingTime:    bed.RemainingTime,
		IsInjection:      bed.Modalities.Injection,
		IsManual:         bed.Modalities.Manual,
		IsESWT:           bed.Modalities.ESWT,
		IsTraction:       bed.Modalities.Traction,
		IsFluid:          bed.Modalities.Fluid,
		Memos:            model.MemoMap(model.CloneMemos(bed.Memos)),
	}
	if bed.OriginalDuration != nil {
		d := *bed.OriginalDuration
		row.OriginalDuration = &d
	}
	if bed.UpdatedAt != nil {
		row.UpdatedAt = *bed.UpdatedAt
	}
	return row
}

// UpdateColumns converts a partial update to the remote columns it touches.
// Fields that are not set are left out so older schemas keep working.
func UpdateColumns(u model.BedUpdate) map[string]any {
	cols := make(map[string]any)
	if v, ok := u.Status.Get(); ok {
		cols["status"] = string(v)
	}
	if v, ok := u.Preset.Get(); ok {
		cols["current_preset_id"] = presetID(v)
		cols["custom_preset_json"] = model.PresetColumn{Preset: v.Clone().Custom}
	}
	if v, ok := u.CurrentStepIndex.Get(); ok {
		cols["current_step_index"] = v
	}
	if v, ok := u.Queue.Get(); ok {
		cols["queue"] = model.IntList(append([]int{}, v...))
	}
	if v, ok := u.StartTime.Get(); ok {
		cols["start_time"] = unixMillis(v)
	}
	if v, ok := u.OriginalDuration.Get(); ok {
		if v == nil {
			cols["original_duration"] = (*int)(nil)
		} else {
			d := *v
			cols["original_duration"] = &d
		}
	}
	if v, ok := u.IsPaused.Get(); ok {
		cols["is_paused"] = v
	}
	if v, ok := u.RemainingTime.Get(); ok {
		cols["remaining_time"] = v
	}
	if v, ok := u.Injection.Get(); ok {
		cols["is_injection"] = v
	}
	if v, ok := u.Manual.Get(); ok {
		cols["is_manual"] = v
	}
	if v, ok := u.ESWT.Get(); ok {
		cols["is_eswt"] = v
	}
	if v, ok := u.Traction.Get(); ok {
		cols["is_traction"] = v
	}
	if v, ok := u.Fluid.Get(); ok {
		cols["is_fluid"] = v
	}
	if v, ok := u.Memos.Get(); ok {
		cols["memos"] = model.MemoMap(model.CloneMemos(v))
	}
	return cols
}

func parseStatus(s string) model.BedStatus {
	switch st := model.BedStatus(s); st {
	case model.BedStatusActive, model.BedStatusCompleted:
		return st
	}
	return model.BedStatusIdle
}

func presetID(p model.ActivePreset) *string {
	if p.IsZero() {
		return nil
	}
	id := p.ID()
	return &id
}

func unixMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
