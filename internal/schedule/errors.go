package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrScheduleNotFound = errors.New("schedule configuration not found")
	// ErrNotConfigured marks a doctor with no usable schedule; callers skip,
	// they do not fail.
	ErrNotConfigured = errors.New("doctor schedule is not configured")
)

// ConflictBlockedError rejects a schedule update because it would invalidate
// booked appointments and the caller did not authorize cancelling all of
// them. Raised before any mutation happens.
type ConflictBlockedError struct {
	Conflicts []ConflictingAppointment
}

func (e *ConflictBlockedError) Error() string {
	return fmt.Sprintf("schedule change blocked by %d conflicting appointment(s)", len(e.Conflicts))
}

// DataIntegrityError reports multiple booked appointments mapped to a single
// slot instant. There is no automatic recovery; it must surface.
type DataIntegrityError struct {
	DoctorID uuid.UUID
	StartsAt time.Time
	Matches  int
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%d booked appointments match slot at %s for doctor %s",
		e.Matches, e.StartsAt.Format(time.RFC3339), e.DoctorID)
}
