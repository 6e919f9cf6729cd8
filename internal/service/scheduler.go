package service

import (
	"time"

	"opsflow/internal/domain"
)

// ScheduleDueDates projects a due date for every step template in one forward
// pass over the templates, which must already be ordered by sort order.
//
// For the step at index i:
//   - DaysFromStart set: due = startDate + DaysFromStart (absolute, ignores
//     prior steps)
//   - DaysFromPrevious set and i > 0: due = due[i-1] + DaysFromPrevious
//     (chains off the scheduled date of the previous step, not any actual
//     completion - re-anchoring to real completion times happens later, at
//     activation)
//   - neither: due = startDate
//
// Pure function of its inputs; the instantiator calls it once per workflow.
func ScheduleDueDates(startDate time.Time, steps []domain.StepTemplate) []time.Time {
	dueDates := make([]time.Time, len(steps))

	for i, step := range steps {
		switch {
		case step.DaysFromStart != nil:
			dueDates[i] = startDate.AddDate(0, 0, *step.DaysFromStart)
		case step.DaysFromPrevious != nil && i > 0:
			dueDates[i] = dueDates[i-1].AddDate(0, 0, *step.DaysFromPrevious)
		default:
			dueDates[i] = startDate
		}
	}

	return dueDates
}
