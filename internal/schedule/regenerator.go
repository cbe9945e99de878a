package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const SkipNotConfigured = "not_configured"

// RegenerationRequest selects whose slots to rebuild and for which calendar
// dates (inclusive). Exactly one of ClinicID/DoctorID should be set; a nil
// ClinicID with a nil DoctorID means every active clinic.
type RegenerationRequest struct {
	ClinicID uuid.UUID
	DoctorID uuid.UUID
	From     time.Time
	To       time.Time
}

// DoctorRegeneration is the per-doctor outcome; one doctor's failure never
// aborts the rest of the batch.
type DoctorRegeneration struct {
	DoctorID     uuid.UUID `json:"doctor_id"`
	SlotsCreated int       `json:"slots_created"`
	SlotsDeleted int64     `json:"slots_deleted"`
	Success      bool      `json:"success"`
	Skipped      string    `json:"skipped,omitempty"`
	Error        string    `json:"error,omitempty"`
}

type RegenerationReport struct {
	Doctors      []DoctorRegeneration `json:"doctors"`
	SlotsCreated int                  `json:"slots_created"`
	Succeeded    int                  `json:"succeeded"`
	Skipped      int                  `json:"skipped"`
	Failed       int                  `json:"failed"`
}

// Regenerate destructively rebuilds slot rows for the window: existing rows
// inside it are deleted, then recomputed day by day and re-inserted in fixed
// size batches. Inserts skip rows colliding on (doctor_id, starts_at), so a
// partially failed run can simply be re-run. Booked appointments are never
// touched here; orphan risk is handled upstream by conflict detection.
func (s *Service) Regenerate(ctx context.Context, req RegenerationRequest) (*RegenerationReport, error) {
	if dateKey(req.To) < dateKey(req.From) {
		return nil, fmt.Errorf("regeneration window ends before it starts")
	}

	var doctors []Doctor
	if req.DoctorID != uuid.Nil {
		doc, err := s.repo.DoctorByID(ctx, req.DoctorID)
		if err != nil {
			return nil, fmt.Errorf("load doctor: %w", err)
		}
		doctors = []Doctor{*doc}
	} else {
		var err error
		doctors, err = s.repo.ListActiveDoctors(ctx, req.ClinicID)
		if err != nil {
			return nil, fmt.Errorf("list doctors: %w", err)
		}
	}

	report := &RegenerationReport{Doctors: make([]DoctorRegeneration, 0, len(doctors))}
	for _, doc := range doctors {
		entry := s.regenerateDoctor(ctx, doc, req.From, req.To)
		report.Doctors = append(report.Doctors, entry)
		report.SlotsCreated += entry.SlotsCreated
		switch {
		case entry.Skipped != "":
			report.Skipped++
		case entry.Success:
			report.Succeeded++
		default:
			report.Failed++
		}
	}
	return report, nil
}

func (s *Service) regenerateDoctor(ctx context.Context, doc Doctor, from, to time.Time) DoctorRegeneration {
	entry := DoctorRegeneration{DoctorID: doc.ID}

	cfg, err := s.repo.ScheduleConfig(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			entry.Skipped = SkipNotConfigured
			return entry
		}
		entry.Error = err.Error()
		return entry
	}
	if !cfg.IsConfigured() {
		entry.Skipped = SkipNotConfigured
		return entry
	}

	loc, err := cfg.Location()
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	windowFrom := time.Date(fy, fm, fd, 0, 0, 0, 0, loc)
	windowTo := time.Date(ty, tm, td, 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	deleted, err := s.repo.DeleteSlotsInRange(ctx, doc.ID, windowFrom, windowTo)
	if err != nil {
		entry.Error = fmt.Sprintf("delete slots: %v", err)
		return entry
	}
	entry.SlotsDeleted = deleted

	activated := doc.ScheduleActivatedAt != nil

	var batch []Slot
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := s.repo.InsertSlots(ctx, batch)
		if err != nil {
			return err
		}
		entry.SlotsCreated += inserted
		batch = batch[:0]
		// The first successful batch activates the schedule, once. Never
		// overwritten afterwards.
		if !activated {
			if _, err := s.repo.MarkScheduleActivated(ctx, doc.ID, s.now()); err != nil {
				return fmt.Errorf("mark schedule activated: %w", err)
			}
			activated = true
		}
		return nil
	}

	for d := windowFrom; d.Before(windowTo); d = d.AddDate(0, 0, 1) {
		if cfg.OnTimeOff(d) {
			continue
		}
		for _, slot := range CompileDay(*cfg, loc, d) {
			slot.ID = uuid.New()
			batch = append(batch, slot)
			if len(batch) >= s.batchSize {
				if err := flush(); err != nil {
					entry.Error = err.Error()
					return entry
				}
			}
		}
	}
	if err := flush(); err != nil {
		entry.Error = err.Error()
		return entry
	}

	s.log.Info().
		Str("doctor_id", doc.ID.String()).
		Int("slots_created", entry.SlotsCreated).
		Int64("slots_deleted", entry.SlotsDeleted).
		Msg("doctor slots regenerated")

	entry.Success = true
	return entry
}
