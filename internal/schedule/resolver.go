package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicore/schedule-engine/internal/redis"
)

// ErrScheduleBusy means another schedule edit for the same doctor is in
// flight; the caller should retry.
var ErrScheduleBusy = errors.New("schedule is being edited by someone else, please retry")

// ApplyResult is the outcome of a committed schedule change.
type ApplyResult struct {
	Config       ScheduleConfig
	CancelledIDs []uuid.UUID
}

// ApplySchedule commits a schedule change together with the cancellation of
// the appointments it invalidates, as one atomic unit.
//
// Conflicts are re-detected inside the transaction, against row-locked
// appointments, so a booking created between a prior DetectConflicts call and
// this commit cannot be orphaned. If conflicts exist and cancelConflicting is
// false, or an explicit cancelIDs list leaves any detected conflict
// uncovered, the whole update is rejected before anything is written.
//
// Concurrent calls for the same doctor are serialized through a per-doctor
// lock; two managers cannot commit competing edits simultaneously.
func (s *Service) ApplySchedule(ctx context.Context, doctorID uuid.UUID, newCfg ScheduleConfig, windowEnd time.Time, cancelConflicting bool, cancelIDs []uuid.UUID) (*ApplyResult, error) {
	newCfg.DoctorID = doctorID
	if err := newCfg.Validate(); err != nil {
		return nil, fmt.Errorf("new config: %w", err)
	}
	loc, err := newCfg.Location()
	if err != nil {
		return nil, err
	}
	from := s.clinicToday(loc)

	allowed := make(map[uuid.UUID]bool, len(cancelIDs))
	for _, id := range cancelIDs {
		allowed[id] = true
	}

	recheck := func(booked []Appointment) ([]uuid.UUID, error) {
		report := classifyAll(newCfg, loc, booked)
		if !report.HasConflicts {
			return nil, nil
		}
		if !cancelConflicting {
			return nil, &ConflictBlockedError{Conflicts: report.Conflicts}
		}
		if len(cancelIDs) > 0 {
			var uncovered []ConflictingAppointment
			for _, c := range report.Conflicts {
				if !allowed[c.AppointmentID] {
					uncovered = append(uncovered, c)
				}
			}
			// A detected conflict the caller did not approve blocks the
			// entire operation.
			if len(uncovered) > 0 {
				return nil, &ConflictBlockedError{Conflicts: uncovered}
			}
		}
		ids := make([]uuid.UUID, 0, len(report.Conflicts))
		for _, c := range report.Conflicts {
			ids = append(ids, c.AppointmentID)
		}
		return ids, nil
	}

	var result *ApplyResult
	err = s.locker.WithScheduleLock(ctx, doctorID, func(lockCtx context.Context) error {
		cancelled, err := s.repo.ApplyScheduleChange(lockCtx, newCfg, from, windowEnd, recheck)
		if err != nil {
			return err
		}
		result = &ApplyResult{Config: newCfg, CancelledIDs: cancelled}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		var blocked *ConflictBlockedError
		if errors.As(err, &blocked) {
			return nil, blocked
		}
		return nil, fmt.Errorf("apply schedule change: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("cancelled", len(result.CancelledIDs)).
		Msg("schedule change committed")

	return result, nil
}
