package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/schedule-engine/internal/db"
)

var clinicZones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Los_Angeles",
	"Europe/London",
	"Asia/Kolkata",
}

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clinicIDs, err := seedClinics(context.Background(), pool, 5)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	doctorIDs, err := seedDoctors(context.Background(), pool, clinicIDs, 20)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedSchedules(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company() + " Clinic"
		tz := clinicZones[i%len(clinicZones)]

		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, timezone, active, created_at, updated_at)
			VALUES ($1, $2, $3, true, now(), now())
		`, id, name, tz)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("clinics seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, clinicIDs []uuid.UUID, perClinic int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors per clinic", perClinic)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ids []uuid.UUID
	for _, clinicID := range clinicIDs {
		for i := 0; i < perClinic; i++ {
			id := uuid.New()
			name := "Dr. " + gofakeit.Name()
			spec := specialties[gofakeit.Number(0, len(specialties)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, clinic_id, full_name, specialty, active, licensed, created_at, updated_at)
				VALUES ($1, $2, $3, $4, true, true, now(), now())
			`, id, clinicID, name, spec)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

// seedSchedules gives most doctors a morning+evening weekly schedule and a
// few of them an upcoming time-off range. A handful are deliberately left
// unconfigured to exercise the not-configured skip path.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding schedules for %d doctors", len(doctorIDs))

	durations := []int{15, 20, 30, 40, 45, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i, doctorID := range doctorIDs {
		if i%10 == 9 {
			// left unconfigured on purpose
			continue
		}

		duration := durations[gofakeit.Number(0, len(durations)-1)]
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_configs (doctor_id, appointment_duration_min, updated_at)
			VALUES ($1, $2, now())
		`, doctorID, duration)
		if err != nil {
			return err
		}

		// 09:00-13:00 and 17:00-21:00
		templates := map[string][2]int{
			"morning": {9 * 60, 13 * 60},
			"evening": {17 * 60, 21 * 60},
		}
		for shift, window := range templates {
			_, err := tx.Exec(ctx, `
				INSERT INTO shift_templates (doctor_id, shift_type, start_min, end_min)
				VALUES ($1, $2, $3, $4)
			`, doctorID, shift, window[0], window[1])
			if err != nil {
				return err
			}
		}

		for day := 0; day <= 6; day++ {
			for shift := range templates {
				enabled := day >= 1 && day <= 5 // Monday-Friday
				if shift == "evening" && gofakeit.Bool() {
					enabled = false
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO weekly_shifts (doctor_id, day_of_week, shift_type, is_enabled)
					VALUES ($1, $2, $3, $4)
				`, doctorID, day, shift, enabled)
				if err != nil {
					return err
				}
			}
		}

		if gofakeit.Number(0, 4) == 0 {
			start := time.Now().AddDate(0, 0, gofakeit.Number(7, 30))
			end := start.AddDate(0, 0, gofakeit.Number(1, 10))
			_, err := tx.Exec(ctx, `
				INSERT INTO time_off (id, doctor_id, start_date, end_date, off_type, reason)
				VALUES ($1, $2, $3, $4, 'vacation', 'annual leave')
			`, uuid.New(), doctorID, start, end)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, full_name, created_at, updated_at)
				VALUES ($1, $2, now(), now())
			`, uuid.New(), gofakeit.Name())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
