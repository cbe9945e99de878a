package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ShiftType is the closed set of working windows within a day.
type ShiftType uint8

const (
	ShiftMorning ShiftType = iota
	ShiftEvening
)

// shiftTypes lists every shift in generation order.
var shiftTypes = [...]ShiftType{ShiftMorning, ShiftEvening}

func (s ShiftType) String() string {
	switch s {
	case ShiftMorning:
		return "morning"
	case ShiftEvening:
		return "evening"
	}
	return fmt.Sprintf("shift(%d)", uint8(s))
}

func ParseShiftType(v string) (ShiftType, error) {
	switch v {
	case "morning":
		return ShiftMorning, nil
	case "evening":
		return ShiftEvening, nil
	}
	return 0, fmt.Errorf("unknown shift type %q", v)
}

func (s ShiftType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ShiftType) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseShiftType(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
)

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type ConflictReason string

const (
	ReasonDurationMismatch ConflictReason = "duration_mismatch"
	ReasonShiftDisabled    ConflictReason = "shift_disabled"
	ReasonTimeOutsideShift ConflictReason = "time_outside_shift"
)

// ShiftTemplate is a working window expressed as minutes of the clinic-local
// day, e.g. 09:00-12:00 is {540, 720}. Minute integers keep the interval
// arithmetic exact.
type ShiftTemplate struct {
	StartMin int
	EndMin   int
}

// WeeklyShift enables or disables one shift type on one weekday.
type WeeklyShift struct {
	Weekday time.Weekday
	Shift   ShiftType
	Enabled bool
}

// TimeOff is a date-range exception; both bounds are inclusive calendar days.
type TimeOff struct {
	StartDate time.Time
	EndDate   time.Time
	Type      string
	Reason    string
}

// Covers reports whether the given calendar date falls inside the range.
// Only year/month/day are compared; locations on the inputs are ignored.
func (t TimeOff) Covers(date time.Time) bool {
	d := dateKey(date)
	return d >= dateKey(t.StartDate) && d <= dateKey(t.EndDate)
}

// ScheduleConfig is a doctor's full recurring-schedule configuration: shift
// templates, weekly enablement, time off, appointment duration and the clinic
// timezone everything is interpreted in.
type ScheduleConfig struct {
	DoctorID     uuid.UUID
	ClinicID     uuid.UUID
	DurationMin  int
	Templates    map[ShiftType]ShiftTemplate
	WeeklyShifts []WeeklyShift
	TimeOff      []TimeOff
	Timezone     string
}

// Location resolves the clinic IANA timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load clinic timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ShiftEnabled reports whether the shift type is enabled on the weekday.
func (c ScheduleConfig) ShiftEnabled(day time.Weekday, shift ShiftType) bool {
	for _, w := range c.WeeklyShifts {
		if w.Weekday == day && w.Shift == shift {
			return w.Enabled
		}
	}
	return false
}

// OnTimeOff reports whether the calendar date falls inside any time-off range.
func (c ScheduleConfig) OnTimeOff(date time.Time) bool {
	for _, t := range c.TimeOff {
		if t.Covers(date) {
			return true
		}
	}
	return false
}

// IsConfigured reports whether slot generation is possible at all: at least
// one shift template and at least one enabled weekly shift. Doctors failing
// this are skipped, not errored.
func (c ScheduleConfig) IsConfigured() bool {
	if len(c.Templates) == 0 {
		return false
	}
	for _, w := range c.WeeklyShifts {
		if w.Enabled {
			return true
		}
	}
	return false
}

// Validate checks the parts of a proposed config that would make generation
// meaningless rather than merely empty.
func (c ScheduleConfig) Validate() error {
	if c.DurationMin <= 0 {
		return fmt.Errorf("appointment duration must be positive, got %d", c.DurationMin)
	}
	for shift, tmpl := range c.Templates {
		if tmpl.StartMin < 0 || tmpl.EndMin > 24*60 || tmpl.StartMin >= tmpl.EndMin {
			return fmt.Errorf("invalid %s template window %d-%d", shift, tmpl.StartMin, tmpl.EndMin)
		}
	}
	for _, t := range c.TimeOff {
		if dateKey(t.EndDate) < dateKey(t.StartDate) {
			return fmt.Errorf("time off ends before it starts (%s > %s)",
				t.StartDate.Format("2006-01-02"), t.EndDate.Format("2006-01-02"))
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Slot is one bookable interval for one doctor. Candidates coming out of the
// compiler carry a nil ID; persisted rows are unique on (doctor_id, starts_at).
type Slot struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	ClinicID uuid.UUID
	Date     time.Time // clinic-local calendar date
	StartsAt time.Time
	EndsAt   time.Time
	Shift    ShiftType
	Status   SlotStatus
}

// AnnotatedSlot is a candidate slot merged with booking state. IsPast is
// computed against the clinic clock, never the caller's.
type AnnotatedSlot struct {
	Slot
	AppointmentID *uuid.UUID
	IsPast        bool
}

// Appointment mirrors the booking subsystem's record; it is the source of
// truth for booked state, slots only project it.
type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	StartsAt    time.Time
	EndsAt      time.Time
	Status      AppointmentStatus
}

// ConflictingAppointment is a booked appointment that a proposed schedule
// change would invalidate.
type ConflictingAppointment struct {
	AppointmentID uuid.UUID      `json:"appointment_id"`
	PatientID     uuid.UUID      `json:"patient_id"`
	PatientName   string         `json:"patient_name"`
	StartsAt      time.Time      `json:"starts_at"`
	EndsAt        time.Time      `json:"ends_at"`
	Reason        ConflictReason `json:"reason"`
}

// ConflictReport is the detector's result. Having conflicts is a normal
// outcome, not an error.
type ConflictReport struct {
	HasConflicts bool
	Conflicts    []ConflictingAppointment
	Total        int
}

// Doctor carries the fields the scheduling engine needs; full doctor CRUD
// lives elsewhere.
type Doctor struct {
	ID                  uuid.UUID
	ClinicID            uuid.UUID
	FullName            string
	Specialty           *string
	Active              bool
	Licensed            bool
	ScheduleActivatedAt *time.Time
}

type Clinic struct {
	ID       uuid.UUID
	Name     string
	Timezone string
	Active   bool
}

// AvailabilitySummary aggregates a slot listing for display.
type AvailabilitySummary struct {
	TotalDays      int `json:"total_days"`
	WorkingDays    int `json:"working_days"`
	TotalSlots     int `json:"total_slots"`
	AvailableSlots int `json:"available_slots"`
	BookedSlots    int `json:"booked_slots"`
}

// dateKey collapses a time to a comparable yyyymmdd int so calendar-day
// comparisons never depend on location or clock.
func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
