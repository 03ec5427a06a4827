package validator

import "time"

// MarkAttendanceRequest is the body of POST /attendance/mark and of
// POST /attendance/save-scan-excel. Faculty is required but intentionally
// not checked against the program enum here: the scan path trusts QR codes
// generated by this system and stays lenient (see RegisterScanRequest for
// the strict registration-time contract).
type MarkAttendanceRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Rollno   string `json:"rollno" validate:"required,rollno"`
	Name     string `json:"name" validate:"required,max=100"`
	Faculty  string `json:"faculty" validate:"required"`
	Semester *int   `json:"semester" validate:"omitempty,min=1,max=8"`
	Year     *int   `json:"year" validate:"omitempty,min=1,max=4"`

	ScanDate string     `json:"scanDate" validate:"omitempty,scan_date"`
	ScanTime *time.Time `json:"scanTime"`
	EventID  string     `json:"eventId"`

	// Station metadata forwarded into the record's audit snapshot.
	StationID string `json:"stationId" validate:"omitempty,max=100"`
}

// RegisterScanRequest carries the strict registration-time field contract.
// Kept here so the rules stay next to the lenient scan-time ones; the
// registration flow itself lives outside this service.
type RegisterScanRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Rollno   string `json:"rollno" validate:"required,rollno"`
	Faculty  string `json:"faculty" validate:"required,faculty"`
	Semester *int   `json:"semester" validate:"omitempty,min=1,max=8"`
	Year     *int   `json:"year" validate:"omitempty,min=1,max=4"`
}

// RecordsFilterRequest filters the reporting read paths.
type RecordsFilterRequest struct {
	StartDate string `form:"startDate" validate:"omitempty,scan_date"`
	EndDate   string `form:"endDate" validate:"omitempty,scan_date"`
	EventID   string `form:"eventId"`
	Faculty   string `form:"faculty"`
}

// ExportRequest drives GET /attendance/export-excel.
type ExportRequest struct {
	RecordsFilterRequest
	Format string `form:"format" validate:"omitempty,oneof=summary detailed"`
}
