package session

import (
	"fmt"

	"physiotrack-backend/internal/model"
)

// Config names of the scheduling policies.
const (
	SchedulingQueue  = "queue"
	SchedulingLinear = "linear"
)

// Scheduler decides the order in which a session visits its steps.
type Scheduler interface {
	// Name is the config value selecting this policy.
	Name() string
	// Start returns the execution queue for a fresh session of n steps
	// beginning at index 0.
	Start(n int) []int
	// Next picks the step after current. ok is false once nothing remains.
	Next(current int, queue []int, n int) (next int, rest []int, ok bool)
	// Previous picks the step before current.
	Previous(current int, queue []int, n int) (prev int, rest []int, ok bool)
	// Requeue moves index to the end of the schedule. ok is false when the
	// policy cannot reorder.
	Requeue(queue []int, index int) (rest []int, ok bool)
	// Remap rebuilds the queue after the step list was edited.
	Remap(oldSteps, newSteps []model.TreatmentStep, queue []int, current int) []int
	// Swap rebuilds the queue after the steps at positions i and j traded
	// places.
	Swap(queue []int, i, j, current int) []int
}

// SchedulerFor returns the policy with the given config name.
func SchedulerFor(name string) (Scheduler, error) {
	switch name {
	case "", SchedulingQueue:
		return QueueScheduler{}, nil
	case SchedulingLinear:
		return LinearScheduler{}, nil
	}
	return nil, fmt.Errorf("unknown scheduling policy %q", name)
}

// QueueScheduler consumes an explicit queue of step indices, which lets staff
// push a step to the back or revisit one out of order.
type QueueScheduler struct{}

// Name implements Scheduler.
func (QueueScheduler) Name() string { return SchedulingQueue }

// Start queues every step after the first in array order.
func (QueueScheduler) Start(n int) []int {
	q := make([]int, 0, n)
	for i := 1; i < n; i++ {
		q = append(q, i)
	}
	return q
}

// Next pops the first valid index off the queue.
func (QueueScheduler) Next(_ int, queue []int, n int) (int, []int, bool) {
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		if head >= 0 && head < n {
			return head, copyInts(queue), true
		}
	}
	return 0, []int{}, false
}

// Previous steps back one array position. The step being left goes back to
// the head of the queue so advancing again returns to it.
func (QueueScheduler) Previous(current int, queue []int, n int) (int, []int, bool) {
	if current <= 0 || current >= n {
		return 0, nil, false
	}
	prev := current - 1
	rest := make([]int, 0, len(queue)+1)
	rest = append(rest, current)
	for _, q := range queue {
		if q != prev && q != current {
			rest = append(rest, q)
		}
	}
	return prev, rest, true
}

// Requeue moves index to the back of the queue, adding it if absent.
func (QueueScheduler) Requeue(queue []int, index int) ([]int, bool) {
	rest := make([]int, 0, len(queue)+1)
	for _, q := range queue {
		if q != index {
			rest = append(rest, q)
		}
	}
	return append(rest, index), true
}

// Remap follows queued steps to their new positions by step id, drops steps
// that were removed, and appends steps that did not exist before.
func (QueueScheduler) Remap(oldSteps, newSteps []model.TreatmentStep, queue []int, current int) []int {
	newIndex := make(map[string]int, len(newSteps))
	for i, s := range newSteps {
		if _, dup := newIndex[s.ID]; !dup {
			newIndex[s.ID] = i
		}
	}
	oldIDs := make(map[string]bool, len(oldSteps))
	for _, s := range oldSteps {
		oldIDs[s.ID] = true
	}

	used := map[int]bool{current: true}
	rest := make([]int, 0, len(newSteps))
	for _, q := range queue {
		if q < 0 || q >= len(oldSteps) {
			continue
		}
		ni, ok := newIndex[oldSteps[q].ID]
		if !ok || used[ni] {
			continue
		}
		used[ni] = true
		rest = append(rest, ni)
	}
	for i, s := range newSteps {
		if !oldIDs[s.ID] && !used[i] {
			used[i] = true
			rest = append(rest, i)
		}
	}
	return rest
}

// Swap keeps every queued step queued at its new position. When the current
// position takes part, the step moved onto it becomes current and the step
// moved off it takes over its queue slot, or goes to the head of the queue if
// the incoming step had already run.
func (QueueScheduler) Swap(queue []int, i, j, current int) []int {
	moved := func(q int) int {
		switch q {
		case i:
			return j
		case j:
			return i
		}
		return q
	}

	displaced := -1
	switch current {
	case i:
		displaced = j
	case j:
		displaced = i
	}

	rest := make([]int, 0, len(queue)+1)
	taken := false
	for _, q := range queue {
		nq := moved(q)
		if nq == current && displaced >= 0 {
			nq = displaced
			taken = true
		}
		rest = append(rest, nq)
	}
	if displaced >= 0 && !taken {
		rest = append([]int{displaced}, rest...)
	}
	return rest
}

// LinearScheduler walks the steps strictly in array order and keeps no queue.
type LinearScheduler struct{}

// Name implements Scheduler.
func (LinearScheduler) Name() string { return SchedulingLinear }

// Start returns an empty queue.
func (LinearScheduler) Start(int) []int { return []int{} }

// Next moves to the following array position.
func (LinearScheduler) Next(current int, _ []int, n int) (int, []int, bool) {
	if current+1 >= n {
		return 0, []int{}, false
	}
	return current + 1, []int{}, true
}

// Previous moves to the preceding array position.
func (LinearScheduler) Previous(current int, _ []int, n int) (int, []int, bool) {
	if current <= 0 || current >= n {
		return 0, nil, false
	}
	return current - 1, []int{}, true
}

// Requeue is not supported.
func (LinearScheduler) Requeue([]int, int) ([]int, bool) { return nil, false }

// Remap returns an empty queue.
func (LinearScheduler) Remap([]model.TreatmentStep, []model.TreatmentStep, []int, int) []int {
	return []int{}
}

// Swap returns an empty queue.
func (LinearScheduler) Swap([]int, int, int, int) []int { return []int{} }

func copyInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}
