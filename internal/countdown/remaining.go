package countdown

import (
	"time"

	"physiotrack-backend/internal/model"
)

// Remaining derives the signed seconds left on the bed's current step.
//
// Frozen beds (not Active, paused, or never started) report their stored
// value. Untimed or unresolvable steps report 0. Otherwise the value is
// recomputed from the step start so missed ticks never drift it.
func Remaining(bed model.Bed, step *model.TreatmentStep, now time.Time) int {
	if bed.Status != model.BedStatusActive || bed.IsPaused || bed.StartTime == nil {
		return bed.RemainingTime
	}
	if step == nil || !step.EnableTimer {
		return 0
	}

	duration := step.Duration
	if bed.OriginalDuration != nil {
		duration = *bed.OriginalDuration
	}
	return duration - floorSeconds(now.Sub(*bed.StartTime))
}

// floorSeconds rounds toward negative infinity, so a start time slightly in
// the future still counts as a whole second not yet elapsed.
func floorSeconds(d time.Duration) int {
	ns := d.Nanoseconds()
	s := ns / int64(time.Second)
	if ns%int64(time.Second) != 0 && ns < 0 {
		s--
	}
	return int(s)
}
