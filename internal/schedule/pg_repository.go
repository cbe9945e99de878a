package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.FullName,
		&d.Specialty,
		&d.Active,
		&d.Licensed,
		&d.ScheduleActivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.PatientName,
		&a.StartsAt,
		&a.EndsAt,
		&a.Status,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Interface methods

func (r *PgRepository) DoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, full_name, specialty, active, licensed, schedule_activated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveDoctors(ctx context.Context, clinicID uuid.UUID) ([]Doctor, error) {
	query := `
		SELECT id, clinic_id, full_name, specialty, active, licensed, schedule_activated_at
		FROM doctors
		WHERE active AND licensed
	`
	args := []any{}
	if clinicID != uuid.Nil {
		query += ` AND clinic_id = $1`
		args = append(args, clinicID)
	}
	query += ` ORDER BY full_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListActiveClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, timezone, active
		FROM clinics
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Clinic
	for rows.Next() {
		var c Clinic
		if err := rows.Scan(&c.ID, &c.Name, &c.Timezone, &c.Active); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *PgRepository) ScheduleConfig(ctx context.Context, doctorID uuid.UUID) (*ScheduleConfig, error) {
	cfg := ScheduleConfig{
		DoctorID:  doctorID,
		Templates: make(map[ShiftType]ShiftTemplate),
	}

	err := r.pool.QueryRow(ctx, `
		SELECT d.clinic_id, c.timezone, sc.appointment_duration_min
		FROM schedule_configs sc
		JOIN doctors d ON d.id = sc.doctor_id
		JOIN clinics c ON c.id = d.clinic_id
		WHERE sc.doctor_id = $1
	`, doctorID).Scan(&cfg.ClinicID, &cfg.Timezone, &cfg.DurationMin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT shift_type, start_min, end_min
		FROM shift_templates
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rawShift string
		var tmpl ShiftTemplate
		if err := rows.Scan(&rawShift, &tmpl.StartMin, &tmpl.EndMin); err != nil {
			return nil, err
		}
		shift, err := ParseShiftType(rawShift)
		if err != nil {
			return nil, err
		}
		cfg.Templates[shift] = tmpl
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT day_of_week, shift_type, is_enabled
		FROM weekly_shifts
		WHERE doctor_id = $1
		ORDER BY day_of_week, shift_type
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var day int
		var rawShift string
		var enabled bool
		if err := rows.Scan(&day, &rawShift, &enabled); err != nil {
			return nil, err
		}
		shift, err := ParseShiftType(rawShift)
		if err != nil {
			return nil, err
		}
		cfg.WeeklyShifts = append(cfg.WeeklyShifts, WeeklyShift{
			Weekday: time.Weekday(day),
			Shift:   shift,
			Enabled: enabled,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT start_date, end_date, off_type, reason
		FROM time_off
		WHERE doctor_id = $1
		ORDER BY start_date
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t TimeOff
		if err := rows.Scan(&t.StartDate, &t.EndDate, &t.Type, &t.Reason); err != nil {
			return nil, err
		}
		cfg.TimeOff = append(cfg.TimeOff, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

const bookedAppointmentsQuery = `
		SELECT a.id, a.doctor_id, a.patient_id, p.full_name, a.starts_at, a.ends_at, a.status
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
		  AND a.status = 'booked'
		  AND a.starts_at >= $2
		  AND a.starts_at < $3
		ORDER BY a.starts_at`

func (r *PgRepository) BookedAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, bookedAppointmentsQuery, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// ApplyScheduleChange runs the whole schedule update as one serializable
// transaction: lock the doctor's future booked appointments, let recheck
// decide, cancel the approved ones, replace the schedule rows. A failure at
// any point leaves the prior schedule fully intact.
func (r *PgRepository) ApplyScheduleChange(ctx context.Context, cfg ScheduleConfig, from, to time.Time, recheck RecheckFunc) ([]uuid.UUID, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin schedule change: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, bookedAppointmentsQuery+` FOR UPDATE OF a`, cfg.DoctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("lock booked appointments: %w", err)
	}
	var booked []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		booked = append(booked, *a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cancelIDs, err := recheck(booked)
	if err != nil {
		return nil, err
	}

	if len(cancelIDs) > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE appointments
			SET status = 'cancelled',
			    cancellation_reason = 'schedule_change',
			    updated_at = now()
			WHERE id = ANY($1)
			  AND status = 'booked'
		`, cancelIDs)
		if err != nil {
			return nil, fmt.Errorf("cancel conflicting appointments: %w", err)
		}
	}

	if err := replaceScheduleRows(ctx, tx, cfg); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit schedule change: %w", err)
	}
	return cancelIDs, nil
}

func replaceScheduleRows(ctx context.Context, tx pgx.Tx, cfg ScheduleConfig) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_configs (doctor_id, appointment_duration_min, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (doctor_id) DO UPDATE
		SET appointment_duration_min = EXCLUDED.appointment_duration_min,
		    updated_at = now()
	`, cfg.DoctorID, cfg.DurationMin)
	if err != nil {
		return fmt.Errorf("upsert schedule config: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM shift_templates WHERE doctor_id = $1`, cfg.DoctorID); err != nil {
		return fmt.Errorf("clear shift templates: %w", err)
	}
	for _, shift := range shiftTypes {
		tmpl, ok := cfg.Templates[shift]
		if !ok {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO shift_templates (doctor_id, shift_type, start_min, end_min)
			VALUES ($1, $2, $3, $4)
		`, cfg.DoctorID, shift.String(), tmpl.StartMin, tmpl.EndMin)
		if err != nil {
			return fmt.Errorf("insert %s template: %w", shift, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_shifts WHERE doctor_id = $1`, cfg.DoctorID); err != nil {
		return fmt.Errorf("clear weekly shifts: %w", err)
	}
	for _, w := range cfg.WeeklyShifts {
		_, err := tx.Exec(ctx, `
			INSERT INTO weekly_shifts (doctor_id, day_of_week, shift_type, is_enabled)
			VALUES ($1, $2, $3, $4)
		`, cfg.DoctorID, int(w.Weekday), w.Shift.String(), w.Enabled)
		if err != nil {
			return fmt.Errorf("insert weekly shift: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM time_off WHERE doctor_id = $1`, cfg.DoctorID); err != nil {
		return fmt.Errorf("clear time off: %w", err)
	}
	for _, t := range cfg.TimeOff {
		_, err := tx.Exec(ctx, `
			INSERT INTO time_off (id, doctor_id, start_date, end_date, off_type, reason)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), cfg.DoctorID, t.StartDate, t.EndDate, t.Type, t.Reason)
		if err != nil {
			return fmt.Errorf("insert time off: %w", err)
		}
	}

	return nil
}

func (r *PgRepository) DeleteSlotsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slots
		WHERE doctor_id = $1
		  AND starts_at >= $2
		  AND starts_at < $3
	`, doctorID, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertSlots writes one batch inside one transaction. ON CONFLICT DO NOTHING
// on (doctor_id, starts_at) makes re-runs after partial failure safe.
func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, s := range slots {
		tag, err := tx.Exec(ctx, `
			INSERT INTO slots (id, doctor_id, clinic_id, slot_date, starts_at, ends_at, shift_type, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (doctor_id, starts_at) DO NOTHING
		`, s.ID, s.DoctorID, s.ClinicID, s.Date, s.StartsAt, s.EndsAt, s.Shift.String(), string(s.Status))
		if err != nil {
			return 0, fmt.Errorf("insert slot at %s: %w", s.StartsAt.Format(time.RFC3339), err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *PgRepository) MarkScheduleActivated(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors
		SET schedule_activated_at = $2
		WHERE id = $1
		  AND schedule_activated_at IS NULL
	`, doctorID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
