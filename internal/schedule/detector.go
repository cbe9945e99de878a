package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DetectConflicts classifies which future booked appointments would become
// invalid under the proposed configuration. Pure read, no mutation; having
// conflicts is a normal result. The window is [clinic-local today, windowEnd];
// past appointments are never inspected.
func (s *Service) DetectConflicts(ctx context.Context, doctorID uuid.UUID, proposed ScheduleConfig, windowEnd time.Time) (*ConflictReport, error) {
	if err := proposed.Validate(); err != nil {
		return nil, fmt.Errorf("proposed config: %w", err)
	}
	loc, err := proposed.Location()
	if err != nil {
		return nil, err
	}

	from := s.clinicToday(loc)
	booked, err := s.repo.BookedAppointments(ctx, doctorID, from, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("load booked appointments: %w", err)
	}

	return classifyAll(proposed, loc, booked), nil
}

func classifyAll(cfg ScheduleConfig, loc *time.Location, booked []Appointment) *ConflictReport {
	report := &ConflictReport{Conflicts: []ConflictingAppointment{}}
	for _, appt := range booked {
		reason, conflicting := classify(cfg, loc, appt)
		if !conflicting {
			continue
		}
		report.Conflicts = append(report.Conflicts, ConflictingAppointment{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			PatientName:   appt.PatientName,
			StartsAt:      appt.StartsAt,
			EndsAt:        appt.EndsAt,
			Reason:        reason,
		})
	}
	report.Total = len(report.Conflicts)
	report.HasConflicts = report.Total > 0
	return report
}

// classify recomputes what the proposed config implies for one booked
// appointment. Time off and disabled/untemplated weekdays both mean no shift
// covers the day at all, so they share shift_disabled.
func classify(cfg ScheduleConfig, loc *time.Location, appt Appointment) (ConflictReason, bool) {
	local := appt.StartsAt.In(loc)

	if cfg.OnTimeOff(local) {
		return ReasonShiftDisabled, true
	}

	var enabled []ShiftTemplate
	for _, shift := range shiftTypes {
		tmpl, ok := cfg.Templates[shift]
		if !ok {
			continue
		}
		if cfg.ShiftEnabled(local.Weekday(), shift) {
			enabled = append(enabled, tmpl)
		}
	}
	if len(enabled) == 0 {
		return ReasonShiftDisabled, true
	}

	if int(appt.EndsAt.Sub(appt.StartsAt)/time.Minute) != cfg.DurationMin {
		return ReasonDurationMismatch, true
	}

	startMin := local.Hour()*60 + local.Minute()
	for _, tmpl := range enabled {
		if startMin >= tmpl.StartMin && startMin+cfg.DurationMin <= tmpl.EndMin {
			return "", false
		}
	}
	return ReasonTimeOutsideShift, true
}
