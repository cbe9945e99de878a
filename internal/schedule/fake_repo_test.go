package schedule

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeRepo is an in-memory Repository used across the service tests.
type fakeRepo struct {
	doctors map[uuid.UUID]*Doctor
	clinics []Clinic
	configs map[uuid.UUID]*ScheduleConfig
	appts   map[uuid.UUID][]Appointment
	slots   map[uuid.UUID]map[int64]Slot

	batches    []int
	stamps     int
	failDoctor uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		doctors: make(map[uuid.UUID]*Doctor),
		configs: make(map[uuid.UUID]*ScheduleConfig),
		appts:   make(map[uuid.UUID][]Appointment),
		slots:   make(map[uuid.UUID]map[int64]Slot),
	}
}

func (r *fakeRepo) addDoctor(clinicID uuid.UUID) uuid.UUID {
	id := uuid.New()
	r.doctors[id] = &Doctor{
		ID:       id,
		ClinicID: clinicID,
		FullName: "Dr. " + id.String()[:8],
		Active:   true,
		Licensed: true,
	}
	return id
}

func (r *fakeRepo) slotCount(doctorID uuid.UUID) int {
	return len(r.slots[doctorID])
}

func (r *fakeRepo) appointment(doctorID, apptID uuid.UUID) *Appointment {
	for i := range r.appts[doctorID] {
		if r.appts[doctorID][i].ID == apptID {
			return &r.appts[doctorID][i]
		}
	}
	return nil
}

func (r *fakeRepo) DoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *fakeRepo) ListActiveDoctors(ctx context.Context, clinicID uuid.UUID) ([]Doctor, error) {
	var out []Doctor
	for _, d := range r.doctors {
		if !d.Active || !d.Licensed {
			continue
		}
		if clinicID != uuid.Nil && d.ClinicID != clinicID {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *fakeRepo) ListActiveClinics(ctx context.Context) ([]Clinic, error) {
	return r.clinics, nil
}

func (r *fakeRepo) ScheduleConfig(ctx context.Context, doctorID uuid.UUID) (*ScheduleConfig, error) {
	cfg, ok := r.configs[doctorID]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (r *fakeRepo) BookedAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	var out []Appointment
	for _, a := range r.appts[doctorID] {
		if a.Status != AppointmentBooked {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *fakeRepo) ApplyScheduleChange(ctx context.Context, cfg ScheduleConfig, from, to time.Time, recheck RecheckFunc) ([]uuid.UUID, error) {
	booked, err := r.BookedAppointments(ctx, cfg.DoctorID, from, to)
	if err != nil {
		return nil, err
	}
	cancelIDs, err := recheck(booked)
	if err != nil {
		return nil, err
	}
	for _, id := range cancelIDs {
		if a := r.appointment(cfg.DoctorID, id); a != nil && a.Status == AppointmentBooked {
			a.Status = AppointmentCancelled
		}
	}
	copied := cfg
	r.configs[cfg.DoctorID] = &copied
	return cancelIDs, nil
}

func (r *fakeRepo) DeleteSlotsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error) {
	var deleted int64
	for key, s := range r.slots[doctorID] {
		if !s.StartsAt.Before(from) && s.StartsAt.Before(to) {
			delete(r.slots[doctorID], key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeRepo) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	if len(slots) > 0 && slots[0].DoctorID == r.failDoctor {
		return 0, errors.New("insert failed")
	}
	r.batches = append(r.batches, len(slots))
	inserted := 0
	for _, s := range slots {
		if r.slots[s.DoctorID] == nil {
			r.slots[s.DoctorID] = make(map[int64]Slot)
		}
		key := s.StartsAt.UnixNano()
		if _, exists := r.slots[s.DoctorID][key]; exists {
			continue
		}
		r.slots[s.DoctorID][key] = s
		inserted++
	}
	return inserted, nil
}

func (r *fakeRepo) MarkScheduleActivated(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	r.stamps++
	d, ok := r.doctors[doctorID]
	if !ok {
		return false, ErrDoctorNotFound
	}
	if d.ScheduleActivatedAt != nil {
		return false, nil
	}
	stamped := at
	d.ScheduleActivatedAt = &stamped
	return true, nil
}

// testNow is the frozen clock every service test runs against.
var testNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	svc := NewService(repo, nil, zerolog.Nop(), 0)
	svc.now = func() time.Time { return testNow }
	return svc
}
