package usecase

import (
	"sort"
	"time"

	"branch-queue-engine/internal/domain/entity"
)

type timeInterval struct {
	start time.Time
	end   time.Time
}

// mergeScheduleIntervals anchors the weekly windows on the given date and
// merges overlapping or adjacent ones into a union of disjoint open
// intervals, ordered by start.
func mergeScheduleIntervals(schedules []entity.Schedule, date time.Time) ([]timeInterval, error) {
	intervals := make([]timeInterval, 0, len(schedules))
	for i := range schedules {
		start, end, err := schedules[i].IntervalOn(date)
		if err != nil {
			return nil, err
		}
		if !start.Before(end) {
			continue
		}
		intervals = append(intervals, timeInterval{start: start, end: end})
	}
	if len(intervals) == 0 {
		return nil, nil
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].start.Before(intervals[j].start)
	})

	merged := []timeInterval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !iv.start.After(last.end) {
			if iv.end.After(last.end) {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged, nil
}

// generateSlots steps through each interval in whole service durations,
// discarding the final partial slot and any slot overlapping an existing
// appointment of the service point. Existing appointments occupy their own
// service's duration; rows loaded without the Service relation fall back
// to the requested duration.
func generateSlots(intervals []timeInterval, duration time.Duration, existing []entity.Appointment) []time.Time {
	if duration <= 0 {
		return nil
	}

	slots := []time.Time{}
	for _, iv := range intervals {
		for t := iv.start; !t.Add(duration).After(iv.end); t = t.Add(duration) {
			if slotConflicts(t, duration, existing) {
				continue
			}
			slots = append(slots, t)
		}
	}
	return slots
}

func slotConflicts(start time.Time, duration time.Duration, existing []entity.Appointment) bool {
	for i := range existing {
		other := &existing[i]
		otherDur := other.Service.Duration()
		if otherDur <= 0 {
			otherDur = duration
		}
		if other.Overlaps(otherDur, start, duration) {
			return true
		}
	}
	return false
}

// applyBookingWindow drops slots that violate the branch booking policy:
// the minimum advance, the maximum advance horizon, and the same-day rule.
func applyBookingWindow(slots []time.Time, policy *entity.BranchPolicy, now time.Time) []time.Time {
	earliest := now.Add(time.Duration(policy.MinAdvanceBookingHours) * time.Hour)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	horizon := today.AddDate(0, 0, policy.MaxAdvanceBookingDays+1)

	kept := slots[:0]
	for _, slot := range slots {
		if slot.Before(earliest) {
			continue
		}
		if !slot.Before(horizon) {
			continue
		}
		if !policy.AllowSameDayBooking && sameDay(slot, now) {
			continue
		}
		kept = append(kept, slot)
	}
	return kept
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
