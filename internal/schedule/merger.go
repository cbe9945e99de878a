package schedule

import (
	"time"
)

const localKeyLayout = "2006-01-02 15:04"

// MergeAvailability annotates candidate slots with booking state derived from
// the appointment records. Pure: no clock reads, no I/O. Booked state is a
// projection of the appointments passed in, never trusted from the slot rows
// themselves.
//
// The primary match is exact instant equality between slot start and a booked
// appointment's start. A clinic-local wall-clock string match is kept as a
// fallback for legacy rows whose instants drifted across timezone fixes.
//
// More than one booked appointment mapping to a single slot instant is a data
// integrity violation and is returned as an error, never resolved silently.
func MergeAvailability(candidates []Slot, appointments []Appointment, loc *time.Location, clinicNow time.Time) ([]AnnotatedSlot, error) {
	byInstant := make(map[int64][]Appointment)
	byLocal := make(map[string][]Appointment)
	for _, a := range appointments {
		if a.Status != AppointmentBooked {
			continue
		}
		byInstant[a.StartsAt.UnixNano()] = append(byInstant[a.StartsAt.UnixNano()], a)
		key := a.StartsAt.In(loc).Format(localKeyLayout)
		byLocal[key] = append(byLocal[key], a)
	}

	merged := make([]AnnotatedSlot, 0, len(candidates))
	for _, slot := range candidates {
		matches := byInstant[slot.StartsAt.UnixNano()]
		if len(matches) == 0 {
			matches = byLocal[slot.StartsAt.In(loc).Format(localKeyLayout)]
		}
		if len(matches) > 1 {
			return nil, &DataIntegrityError{
				DoctorID: slot.DoctorID,
				StartsAt: slot.StartsAt,
				Matches:  len(matches),
			}
		}

		out := AnnotatedSlot{
			Slot:   slot,
			IsPast: !slot.StartsAt.After(clinicNow),
		}
		if len(matches) == 1 {
			out.Status = SlotBooked
			id := matches[0].ID
			out.AppointmentID = &id
		}
		merged = append(merged, out)
	}

	return merged, nil
}

// Summarize aggregates merged slots for one or more days. workingDays counts
// days that produced at least one slot; availableSlots counts slots still
// bookable, which excludes past ones.
func Summarize(days int, workingDays int, slots []AnnotatedSlot) AvailabilitySummary {
	sum := AvailabilitySummary{
		TotalDays:   days,
		WorkingDays: workingDays,
		TotalSlots:  len(slots),
	}
	for _, s := range slots {
		switch {
		case s.Status == SlotBooked:
			sum.BookedSlots++
		case s.Status == SlotAvailable && !s.IsPast:
			sum.AvailableSlots++
		}
	}
	return sum
}
