package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

var apptColumns = []string{"id", "doctor_id", "patient_id", "full_name", "starts_at", "ends_at", "status"}

func TestPgBookedAppointments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	patientID := uuid.New()
	apptID := uuid.New()
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	startsAt := time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT a.id, a.doctor_id").
		WithArgs(doctorID, from, to).
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(apptID, doctorID, patientID, "Asha Rao", startsAt, startsAt.Add(30*time.Minute), AppointmentBooked))

	appts, err := repo.BookedAppointments(context.Background(), doctorID, from, to)
	if err != nil {
		t.Fatalf("booked appointments: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(appts))
	}
	if appts[0].ID != apptID || appts[0].PatientName != "Asha Rao" {
		t.Fatalf("unexpected appointment: %+v", appts[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgScheduleConfigNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	mock.ExpectQuery("SELECT d.clinic_id").
		WithArgs(doctorID).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.ScheduleConfig(context.Background(), doctorID)
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgDoctorByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	mock.ExpectQuery("SELECT id, clinic_id, full_name").
		WithArgs(doctorID).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.DoctorByID(context.Background(), doctorID)
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestPgApplyScheduleChangeCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	cfg := weekMorningConfig(doctorID, 45)
	cfg.TimeOff = []TimeOff{{
		StartDate: time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 22, 0, 0, 0, 0, time.UTC),
		Type:      "vacation",
		Reason:    "annual leave",
	}}

	apptID := uuid.New()
	patientID := uuid.New()
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	startsAt := time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT a.id, a.doctor_id").
		WithArgs(doctorID, from, to).
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(apptID, doctorID, patientID, "Asha Rao", startsAt, startsAt.Add(30*time.Minute), AppointmentBooked))
	mock.ExpectExec("UPDATE appointments").
		WithArgs([]uuid.UUID{apptID}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO schedule_configs").
		WithArgs(doctorID, 45).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM shift_templates").
		WithArgs(doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO shift_templates").
		WithArgs(doctorID, "morning", 540, 720).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM weekly_shifts").
		WithArgs(doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 14))
	mock.ExpectExec("INSERT INTO weekly_shifts").
		WithArgs(doctorID, 1, "morning", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO weekly_shifts").
		WithArgs(doctorID, 2, "morning", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM time_off").
		WithArgs(doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO time_off").
		WithArgs(pgxmock.AnyArg(), doctorID, cfg.TimeOff[0].StartDate, cfg.TimeOff[0].EndDate, "vacation", "annual leave").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	recheck := func(booked []Appointment) ([]uuid.UUID, error) {
		if len(booked) != 1 || booked[0].ID != apptID {
			t.Fatalf("recheck got wrong appointments: %+v", booked)
		}
		return []uuid.UUID{apptID}, nil
	}

	cancelled, err := repo.ApplyScheduleChange(context.Background(), cfg, from, to, recheck)
	if err != nil {
		t.Fatalf("apply schedule change: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0] != apptID {
		t.Fatalf("expected [%s] cancelled, got %v", apptID, cancelled)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgApplyScheduleChangeRollsBackWhenRecheckRejects(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	cfg := weekMorningConfig(doctorID, 45)
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	startsAt := time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC)
	apptID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT a.id, a.doctor_id").
		WithArgs(doctorID, from, to).
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(apptID, doctorID, uuid.New(), "Asha Rao", startsAt, startsAt.Add(30*time.Minute), AppointmentBooked))
	mock.ExpectRollback()

	recheck := func(booked []Appointment) ([]uuid.UUID, error) {
		return nil, &ConflictBlockedError{Conflicts: []ConflictingAppointment{{AppointmentID: apptID}}}
	}

	_, err = repo.ApplyScheduleChange(context.Background(), cfg, from, to, recheck)
	var blocked *ConflictBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected ConflictBlockedError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgInsertSlotsSkipsDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	clinicID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	slots := []Slot{
		{
			ID: uuid.New(), DoctorID: doctorID, ClinicID: clinicID, Date: date,
			StartsAt: date.Add(9 * time.Hour), EndsAt: date.Add(9*time.Hour + 30*time.Minute),
			Shift: ShiftMorning, Status: SlotAvailable,
		},
		{
			ID: uuid.New(), DoctorID: doctorID, ClinicID: clinicID, Date: date,
			StartsAt: date.Add(9*time.Hour + 30*time.Minute), EndsAt: date.Add(10 * time.Hour),
			Shift: ShiftMorning, Status: SlotAvailable,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO slots").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Second row collides on (doctor_id, starts_at) and is skipped.
	mock.ExpectExec("INSERT INTO slots").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	inserted, err := repo.InsertSlots(context.Background(), slots)
	if err != nil {
		t.Fatalf("insert slots: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted %d, want 1", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgInsertSlotsEmptyBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	inserted, err := repo.InsertSlots(context.Background(), nil)
	if err != nil || inserted != 0 {
		t.Fatalf("empty batch: inserted=%d err=%v", inserted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgDeleteSlotsInRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM slots").
		WithArgs(doctorID, from, to).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	deleted, err := repo.DeleteSlotsInRange(context.Background(), doctorID, from, to)
	if err != nil {
		t.Fatalf("delete slots: %v", err)
	}
	if deleted != 12 {
		t.Fatalf("deleted %d, want 12", deleted)
	}
}

func TestPgMarkScheduleActivated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPgRepository(mock)

	doctorID := uuid.New()
	at := time.Date(2026, 9, 7, 6, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE doctors").
		WithArgs(doctorID, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	stamped, err := repo.MarkScheduleActivated(context.Background(), doctorID, at)
	if err != nil {
		t.Fatalf("mark activated: %v", err)
	}
	if !stamped {
		t.Fatal("expected first stamp to report true")
	}

	// Already stamped: the guarded update touches no rows.
	mock.ExpectExec("UPDATE doctors").
		WithArgs(doctorID, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	stamped, err = repo.MarkScheduleActivated(context.Background(), doctorID, at)
	if err != nil {
		t.Fatalf("mark activated again: %v", err)
	}
	if stamped {
		t.Fatal("second stamp must report false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
