package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
)

const (
	// DefaultEventID tags records created while no event is selected.
	DefaultEventID = "default-event"

	// ScanDateLayout is the calendar-day key format. Duplicate detection
	// works on this string, never on the scan_time instant.
	ScanDateLayout = "2006-01-02"
)

// AttendanceRecord is one accepted scan. Records are append-only: there is
// no update or delete path, corrections happen outside this service.
//
// Two unique indexes back the once-per-day invariant. (user_id, scan_date)
// is the primary key the reconciler checks; (rollno, scan_date) closes the
// gap when a payload carries a mismatched user id for a known roll number.
type AttendanceRecord struct {
	ID      string  `json:"id" gorm:"primaryKey;size:255"`
	UserID  string  `json:"user_id" gorm:"not null;index;size:255;uniqueIndex:idx_user_scan_date"`
	Rollno  string  `json:"rollno" gorm:"not null;size:50;uniqueIndex:idx_rollno_scan_date"`
	Name    string  `json:"name" gorm:"not null;size:100"`
	Faculty Faculty `json:"faculty" gorm:"not null;size:10;index"`

	Semester *int `json:"semester"`
	Year     *int `json:"year"`

	ScanDate string    `json:"scan_date" gorm:"not null;size:10;index;uniqueIndex:idx_user_scan_date;uniqueIndex:idx_rollno_scan_date"`
	ScanTime time.Time `json:"scan_time" gorm:"not null;index"`

	EventID string           `json:"event_id" gorm:"default:default-event;index;size:100"`
	Status  AttendanceStatus `json:"status" gorm:"default:present;size:10"`

	// StationData snapshots the scanning station (station id, user agent)
	// for audit queries. Free-form, never read by the reconciler.
	StationData datatypes.JSON `json:"station_data" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
