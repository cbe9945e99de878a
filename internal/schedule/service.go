package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinicore/schedule-engine/internal/redis"
)

// DefaultBatchSize is the slot insert batch size used when none is configured.
const DefaultBatchSize = 500

// Service wires the pure compiler and merger to persistence and locking.
type Service struct {
	repo      Repository
	locker    redisclient.Locker
	log       zerolog.Logger
	batchSize int

	// now is swapped out by tests; production code always goes through it so
	// the pure functions can take the clinic clock as an argument.
	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, log zerolog.Logger, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		log:       log,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// DayAvailability is the availability listing for a single calendar date.
type DayAvailability struct {
	DoctorID uuid.UUID       `json:"doctor_id"`
	Date     string          `json:"date"`
	Slots    []AnnotatedSlot `json:"slots"`
}

// RangeAvailability is a multi-day listing plus its summary.
type RangeAvailability struct {
	DoctorID uuid.UUID           `json:"doctor_id"`
	Days     []DayAvailability   `json:"days"`
	Summary  AvailabilitySummary `json:"summary"`
}

// Availability compiles and merges slots for every date in [start, end]
// (inclusive calendar dates). A doctor with no schedule configuration gets an
// empty listing, not an error.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*RangeAvailability, error) {
	if dateKey(end) < dateKey(start) {
		return nil, fmt.Errorf("availability range ends before it starts")
	}

	out := &RangeAvailability{DoctorID: doctorID, Days: []DayAvailability{}}

	cfg, err := s.repo.ScheduleConfig(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return out, nil
		}
		return nil, fmt.Errorf("load schedule config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clinicNow := s.now().In(loc)

	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	rangeFrom := time.Date(sy, sm, sd, 0, 0, 0, 0, loc)
	rangeTo := time.Date(ey, em, ed, 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	appts, err := s.repo.BookedAppointments(ctx, doctorID, rangeFrom, rangeTo)
	if err != nil {
		return nil, fmt.Errorf("load booked appointments: %w", err)
	}

	var allSlots []AnnotatedSlot
	days, workingDays := 0, 0
	for d := rangeFrom; d.Before(rangeTo); d = d.AddDate(0, 0, 1) {
		days++
		candidates := CompileDay(*cfg, loc, d)
		merged, err := MergeAvailability(candidates, appts, loc, clinicNow)
		if err != nil {
			var integrity *DataIntegrityError
			if errors.As(err, &integrity) {
				s.log.Error().
					Str("doctor_id", doctorID.String()).
					Time("starts_at", integrity.StartsAt).
					Int("matches", integrity.Matches).
					Msg("data integrity violation: multiple appointments on one slot")
			}
			return nil, err
		}
		if len(merged) > 0 {
			workingDays++
		}
		out.Days = append(out.Days, DayAvailability{
			DoctorID: doctorID,
			Date:     d.Format("2006-01-02"),
			Slots:    merged,
		})
		allSlots = append(allSlots, merged...)
	}

	out.Summary = Summarize(days, workingDays, allSlots)
	return out, nil
}

// clinicToday returns the clinic-local midnight instant of "today".
func (s *Service) clinicToday(loc *time.Location) time.Time {
	y, m, d := s.now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
