package models

import "time"

// ===== SHARED RESPONSE DTOs =====

// ErrorResponse is the common error envelope returned by all handlers.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse wraps successful handler responses.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// DuplicateScanResponse is the 409 body for a same-day re-scan. The client
// renders "already scanned at HH:MM" from FirstScanTime.
type DuplicateScanResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	AlreadyScanned bool      `json:"alreadyScanned"`
	FirstScanTime  time.Time `json:"firstScanTime"`
}

// DuplicateCheckResponse answers the client-side pre-check fast path.
type DuplicateCheckResponse struct {
	Success        bool       `json:"success"`
	AlreadyScanned bool       `json:"alreadyScanned"`
	FirstScanTime  *time.Time `json:"firstScanTime,omitempty"`
	Message        string     `json:"message"`
}

// RecordListResponse is the envelope for record listings.
type RecordListResponse struct {
	Success bool                `json:"success"`
	Count   int                 `json:"count"`
	Date    string              `json:"date,omitempty"`
	Data    []*AttendanceRecord `json:"data"`
}

// SummaryResponse reports per-day scan totals broken down by faculty.
type SummaryResponse struct {
	Success bool              `json:"success"`
	Summary AttendanceSummary `json:"summary"`
}

type AttendanceSummary struct {
	ScanDate   string          `json:"scanDate"`
	EventID    string          `json:"eventId,omitempty"`
	TotalScans int64           `json:"totalScans"`
	ByFaculty  map[Faculty]int `json:"byFaculty"`
}

// WorkbookInfo describes one generated mirror workbook on disk.
type WorkbookInfo struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
