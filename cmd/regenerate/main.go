package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/schedule-engine/internal/config"
	"github.com/clinicore/schedule-engine/internal/db"
	redisclient "github.com/clinicore/schedule-engine/internal/redis"
	"github.com/clinicore/schedule-engine/internal/schedule"
)

// One-shot administrative rebuild: for every active clinic and every
// active+licensed doctor with a configured schedule, wipe and regenerate
// slots from clinic-local today through the end of the clinic-local year.
// Safe to re-run after a partial failure; inserts skip existing rows.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "regenerate").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().Str("env", cfg.Env).Int("batch_size", cfg.SlotBatchSize).Msg("bulk regeneration starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() { _ = rdb.Close() }()

	repo := schedule.NewPgRepository(pgPool)
	locker := redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
	svc := schedule.NewService(repo, locker, logger, cfg.SlotBatchSize)

	clinics, err := repo.ListActiveClinics(rootCtx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list clinics")
	}

	start := time.Now()
	totalCreated, totalSucceeded, totalSkipped, totalFailed := 0, 0, 0, 0

	for _, clinic := range clinics {
		loc, err := time.LoadLocation(clinic.Timezone)
		if err != nil {
			logger.Error().Err(err).Str("clinic_id", clinic.ID.String()).Msg("invalid clinic timezone")
			totalFailed++
			continue
		}

		now := time.Now().In(loc)
		yearEnd := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, loc)

		report, err := svc.Regenerate(rootCtx, schedule.RegenerationRequest{
			ClinicID: clinic.ID,
			From:     now,
			To:       yearEnd,
		})
		if err != nil {
			logger.Error().Err(err).Str("clinic_id", clinic.ID.String()).Msg("clinic regeneration failed")
			totalFailed++
			continue
		}

		logger.Info().
			Str("clinic", clinic.Name).
			Int("slots_created", report.SlotsCreated).
			Int("succeeded", report.Succeeded).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("clinic regenerated")

		totalCreated += report.SlotsCreated
		totalSucceeded += report.Succeeded
		totalSkipped += report.Skipped
		totalFailed += report.Failed
		for _, entry := range report.Doctors {
			if entry.Error != "" {
				logger.Error().
					Str("doctor_id", entry.DoctorID.String()).
					Str("error", entry.Error).
					Msg("doctor regeneration failed")
			}
		}
	}

	logger.Info().
		Int("clinics", len(clinics)).
		Int("slots_created", totalCreated).
		Int("doctors_succeeded", totalSucceeded).
		Int("doctors_skipped", totalSkipped).
		Int("doctors_failed", totalFailed).
		Dur("took", time.Since(start)).
		Msg("bulk regeneration complete")

	if totalFailed > 0 {
		os.Exit(1)
	}
}
