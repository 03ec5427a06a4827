package events

import "time"

// AttendanceMarkedEvent is emitted once per accepted scan.
type AttendanceMarkedEvent struct {
	RecordID string    `json:"record_id"`
	UserID   string    `json:"user_id"`
	Rollno   string    `json:"rollno"`
	Name     string    `json:"name"`
	Faculty  string    `json:"faculty"`
	ScanDate string    `json:"scan_date"`
	ScanTime time.Time `json:"scan_time"`
	EventID  string    `json:"event_id"`
}

// DuplicateBlockedEvent is emitted when a same-day re-scan is rejected.
// Consumers use it for fraud dashboards; it carries no PII beyond the ids.
type DuplicateBlockedEvent struct {
	UserID        string    `json:"user_id"`
	ScanDate      string    `json:"scan_date"`
	FirstScanTime time.Time `json:"first_scan_time"`
	EventID       string    `json:"event_id"`
}

// MirrorAppendFailedEvent is emitted when the Excel mirror rejects or fails
// an append after the ledger write already committed. The ledger record
// stands; the mirror is known to be behind until the next export.
type MirrorAppendFailedEvent struct {
	RecordID string `json:"record_id"`
	Rollno   string `json:"rollno"`
	ScanDate string `json:"scan_date"`
	EventID  string `json:"event_id"`
	Reason   string `json:"reason"`
}
