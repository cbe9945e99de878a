package schedule

import (
	"sort"
	"time"
)

// CompileDay turns one clinic-local calendar date and a doctor's schedule
// configuration into the ordered candidate slots for that date. It is a pure
// function of its inputs: no clock reads, no I/O, identical inputs always
// produce identical output.
//
// A template window that does not divide evenly by the appointment duration
// drops the trailing remainder; that is policy, not an error.
func CompileDay(cfg ScheduleConfig, loc *time.Location, date time.Time) []Slot {
	if cfg.DurationMin <= 0 {
		return nil
	}
	if cfg.OnTimeOff(date) {
		return nil
	}

	year, month, day := date.Date()
	// Weekday must come from the clinic-local calendar date, not from the
	// instant's UTC rendering.
	weekday := time.Date(year, month, day, 0, 0, 0, 0, loc).Weekday()
	localDate := time.Date(year, month, day, 0, 0, 0, 0, loc)

	var slots []Slot
	for _, shift := range shiftTypes {
		tmpl, ok := cfg.Templates[shift]
		if !ok {
			continue
		}
		if !cfg.ShiftEnabled(weekday, shift) {
			continue
		}

		for m := tmpl.StartMin; m+cfg.DurationMin <= tmpl.EndMin; m += cfg.DurationMin {
			startsAt, ok := localInstant(year, month, day, m, loc)
			if !ok {
				// Wall clock swallowed by a DST spring-forward gap.
				continue
			}
			slots = append(slots, Slot{
				DoctorID: cfg.DoctorID,
				ClinicID: cfg.ClinicID,
				Date:     localDate,
				StartsAt: startsAt,
				EndsAt:   startsAt.Add(time.Duration(cfg.DurationMin) * time.Minute),
				Shift:    shift,
				Status:   SlotAvailable,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartsAt.Before(slots[j].StartsAt)
	})

	return slots
}

// localInstant converts a minute-of-day on a calendar date to an absolute
// instant in loc. ok is false when that wall clock does not exist on that
// date (spring-forward gap). A wall clock that occurs twice (fall-back fold)
// resolves to the earliest of the two instants.
func localInstant(year int, month time.Month, day, minuteOfDay int, loc *time.Location) (time.Time, bool) {
	t := time.Date(year, month, day, minuteOfDay/60, minuteOfDay%60, 0, 0, loc)
	if t.Day() != day || t.Hour()*60+t.Minute() != minuteOfDay {
		return time.Time{}, false
	}
	// If one hour earlier shows the same wall clock we are in a fold and t is
	// the later occurrence; take the earlier one.
	if earlier := t.Add(-time.Hour); earlier.Day() == day && earlier.Hour()*60+earlier.Minute() == minuteOfDay {
		t = earlier
	}
	return t, true
}
