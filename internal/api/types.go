package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/schedule-engine/internal/schedule"
)

// ShiftTemplateRequest carries a shift window as "HH:MM" wall-clock strings.
type ShiftTemplateRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type WeeklyShiftRequest struct {
	DayOfWeek int    `json:"day_of_week"` // 0 = Sunday .. 6 = Saturday
	Shift     string `json:"shift"`
	Enabled   bool   `json:"enabled"`
}

type TimeOffRequest struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD, inclusive
	EndDate   string `json:"end_date"`   // YYYY-MM-DD, inclusive
	Type      string `json:"type"`
	Reason    string `json:"reason,omitempty"`
}

// ScheduleRequest is the wire form of a doctor's schedule configuration.
type ScheduleRequest struct {
	DurationMin  int                             `json:"appointment_duration_min"`
	Timezone     string                          `json:"timezone"`
	Templates    map[string]ShiftTemplateRequest `json:"shift_templates"`
	WeeklyShifts []WeeklyShiftRequest            `json:"weekly_shifts"`
	TimeOff      []TimeOffRequest                `json:"time_off"`
}

func (r ScheduleRequest) toConfig(doctorID uuid.UUID) (schedule.ScheduleConfig, error) {
	cfg := schedule.ScheduleConfig{
		DoctorID:    doctorID,
		DurationMin: r.DurationMin,
		Timezone:    r.Timezone,
		Templates:   make(map[schedule.ShiftType]schedule.ShiftTemplate, len(r.Templates)),
	}

	for rawShift, tmpl := range r.Templates {
		shift, err := schedule.ParseShiftType(rawShift)
		if err != nil {
			return schedule.ScheduleConfig{}, err
		}
		startMin, err := parseClock(tmpl.Start)
		if err != nil {
			return schedule.ScheduleConfig{}, fmt.Errorf("%s start: %w", rawShift, err)
		}
		endMin, err := parseClock(tmpl.End)
		if err != nil {
			return schedule.ScheduleConfig{}, fmt.Errorf("%s end: %w", rawShift, err)
		}
		cfg.Templates[shift] = schedule.ShiftTemplate{StartMin: startMin, EndMin: endMin}
	}

	for _, w := range r.WeeklyShifts {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return schedule.ScheduleConfig{}, fmt.Errorf("day_of_week must be 0-6, got %d", w.DayOfWeek)
		}
		shift, err := schedule.ParseShiftType(w.Shift)
		if err != nil {
			return schedule.ScheduleConfig{}, err
		}
		cfg.WeeklyShifts = append(cfg.WeeklyShifts, schedule.WeeklyShift{
			Weekday: time.Weekday(w.DayOfWeek),
			Shift:   shift,
			Enabled: w.Enabled,
		})
	}

	for _, t := range r.TimeOff {
		start, err := time.Parse("2006-01-02", t.StartDate)
		if err != nil {
			return schedule.ScheduleConfig{}, fmt.Errorf("time off start_date: %w", err)
		}
		end, err := time.Parse("2006-01-02", t.EndDate)
		if err != nil {
			return schedule.ScheduleConfig{}, fmt.Errorf("time off end_date: %w", err)
		}
		cfg.TimeOff = append(cfg.TimeOff, schedule.TimeOff{
			StartDate: start,
			EndDate:   end,
			Type:      t.Type,
			Reason:    t.Reason,
		})
	}

	return cfg, nil
}

// parseClock converts "HH:MM" to a minute of day.
func parseClock(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h*60 + m, nil
}

type ConflictCheckRequest struct {
	Schedule  ScheduleRequest `json:"schedule"`
	WindowEnd string          `json:"window_end,omitempty"` // YYYY-MM-DD, inclusive
}

type ApplyScheduleRequest struct {
	Schedule          ScheduleRequest `json:"schedule"`
	WindowEnd         string          `json:"window_end,omitempty"`
	CancelConflicting bool            `json:"cancel_conflicting"`
	CancelIDs         []string        `json:"cancel_appointment_ids,omitempty"`
}

type ConflictCheckResponse struct {
	HasConflicts bool                              `json:"has_conflicts"`
	Total        int                               `json:"total"`
	Conflicts    []schedule.ConflictingAppointment `json:"conflicts"`
}

type ApplyScheduleResponse struct {
	DoctorID     uuid.UUID   `json:"doctor_id"`
	CancelledIDs []uuid.UUID `json:"cancelled_appointment_ids"`
}

type RegenerateRequest struct {
	Scope     string `json:"scope"` // clinic or doctor
	ClinicID  string `json:"clinic_id,omitempty"`
	DoctorID  string `json:"doctor_id,omitempty"`
	StartDate string `json:"start_date"` // YYYY-MM-DD, inclusive
	EndDate   string `json:"end_date"`   // YYYY-MM-DD, inclusive
}

type SlotResponse struct {
	StartsAt      time.Time          `json:"starts_at"`
	EndsAt        time.Time          `json:"ends_at"`
	Shift         schedule.ShiftType `json:"shift"`
	Status        string             `json:"status"`
	IsPast        bool               `json:"is_past"`
	AppointmentID *uuid.UUID         `json:"appointment_id,omitempty"`
}

type DayAvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID                    `json:"doctor_id"`
	Days     []DayAvailabilityResponse    `json:"days"`
	Summary  schedule.AvailabilitySummary `json:"summary"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
