package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecheckFunc re-validates booked appointments inside the schedule-change
// transaction, after they have been locked. It returns the appointment IDs to
// cancel; returning an error aborts the whole transaction.
type RecheckFunc func(booked []Appointment) ([]uuid.UUID, error)

// Repository contains all DB interactions needed by the scheduling engine.
type Repository interface {
	DoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// ListActiveDoctors returns active, licensed doctors; clinicID narrows to
	// one clinic, uuid.Nil means all.
	ListActiveDoctors(ctx context.Context, clinicID uuid.UUID) ([]Doctor, error)
	ListActiveClinics(ctx context.Context) ([]Clinic, error)

	ScheduleConfig(ctx context.Context, doctorID uuid.UUID) (*ScheduleConfig, error)

	// BookedAppointments returns booked appointments starting within
	// [from, to), ordered by start time.
	BookedAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// ApplyScheduleChange replaces the doctor's schedule configuration and
	// cancels the appointments chosen by recheck, atomically. The booked
	// appointments in [from, to] are row-locked and handed to recheck before
	// anything is written, closing the race between detection and resolution.
	ApplyScheduleChange(ctx context.Context, cfg ScheduleConfig, from, to time.Time, recheck RecheckFunc) ([]uuid.UUID, error)

	// DeleteSlotsInRange removes slot rows with starts_at in [from, to).
	DeleteSlotsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error)
	// InsertSlots persists candidates, silently skipping rows colliding on
	// (doctor_id, starts_at); returns how many were actually inserted.
	InsertSlots(ctx context.Context, slots []Slot) (int, error)
	// MarkScheduleActivated stamps the activation timestamp if unset; returns
	// whether this call set it.
	MarkScheduleActivated(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
}
