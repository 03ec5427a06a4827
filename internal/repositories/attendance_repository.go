package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/campus-events/attendance-service/internal/models"
)

// AttendanceFilters defines filters for ledger read queries.
type AttendanceFilters struct {
	StartDate string // inclusive scan_date lower bound (YYYY-MM-DD)
	EndDate   string // inclusive scan_date upper bound
	EventID   string
	Faculty   *models.Faculty
	Limit     int
	Offset    int
	SortOrder string // "asc", "desc"; default desc by scan_time
}

// AttendanceRepository is the authoritative append-only ledger. Insert is
// the only write; uniqueness on (user_id, scan_date) and (rollno, scan_date)
// is enforced by the store itself, independent of any pre-check.
type AttendanceRepository interface {
	// Insert creates a record. Under a concurrent same-key insert the
	// database constraint wins; callers detect that with IsDuplicateKeyError.
	Insert(ctx context.Context, tx *gorm.DB, record *models.AttendanceRecord) error

	// FindByUserAndDate is the reconciler's duplicate pre-check.
	FindByUserAndDate(ctx context.Context, tx *gorm.DB, userID, scanDate string) (*models.AttendanceRecord, error)
	FindByRollnoAndDate(ctx context.Context, tx *gorm.DB, rollno, scanDate string) (*models.AttendanceRecord, error)

	// Query lists records matching the filters ordered by scan_time.
	Query(ctx context.Context, tx *gorm.DB, filters AttendanceFilters) ([]*models.AttendanceRecord, int64, error)

	// GetByUser returns one student's history, newest scan date first.
	GetByUser(ctx context.Context, tx *gorm.DB, userID string, filters AttendanceFilters) ([]*models.AttendanceRecord, error)

	// GetAttendees returns all records for one day ordered by scan_time asc.
	GetAttendees(ctx context.Context, tx *gorm.DB, scanDate, eventID string) ([]*models.AttendanceRecord, error)

	// CountsByFaculty aggregates one day's scans per faculty.
	CountsByFaculty(ctx context.Context, tx *gorm.DB, scanDate, eventID string) (map[models.Faculty]int, int64, error)
}
