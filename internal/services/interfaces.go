package services

import (
	"context"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/repositories"
	"github.com/campus-events/attendance-service/internal/validator"
)

// ===== SCAN RECONCILER DTOs =====

// QRPayload is the decoded shape of a student QR code. The payload never
// carries a date; scan_date always comes from the scanner's wall clock.
type QRPayload struct {
	UserID    string `json:"userId"`
	Rollno    string `json:"rollno"`
	Name      string `json:"name"`
	Faculty   string `json:"faculty"`
	Semester  *int   `json:"semester"`
	Year      *int   `json:"year"`
	EventID   string `json:"eventId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ScanOutcome tags the result of one reconcile attempt.
type ScanOutcome string

const (
	OutcomeAccepted       ScanOutcome = "accepted"
	OutcomeDuplicate      ScanOutcome = "duplicate_rejected"
	OutcomeInvalidPayload ScanOutcome = "invalid_payload"
	OutcomeUserNotFound   ScanOutcome = "user_not_found"
)

// ScanResult is the per-attempt outcome consumed by the caller and then
// discarded. Exactly one of the optional fields is set per outcome.
type ScanResult struct {
	Outcome ScanOutcome `json:"outcome"`

	// Accepted
	Record *models.AttendanceRecord `json:"record,omitempty"`

	// DuplicateRejected: when the user first scanned that day.
	FirstScanTime *time.Time `json:"first_scan_time,omitempty"`

	// InvalidPayload: "malformed" or "missing-fields", plus the specific
	// fields (or parse error) behind the rejection.
	InvalidReason string `json:"invalid_reason,omitempty"`
	InvalidDetail string `json:"invalid_detail,omitempty"`
}

// Accepted reports whether the attempt created a new ledger record.
func (r *ScanResult) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

// ===== MIRROR DTOs =====

type MirrorOutcome string

const (
	MirrorWritten           MirrorOutcome = "written"
	MirrorDuplicateRejected MirrorOutcome = "duplicate_rejected"
)

// MirrorResult reports one append attempt against a mirror workbook.
type MirrorResult struct {
	Outcome  MirrorOutcome `json:"outcome"`
	Filename string        `json:"filename"`
	Serial   int           `json:"serial,omitempty"`
}

// ===== SERVICE INTERFACES =====

// AttendanceService is the scan reconciler plus the ledger-backed write API.
type AttendanceService interface {
	// Reconcile turns one raw decoded QR string into exactly one ScanResult.
	// Duplicate, invalid-payload and unknown-user are normal results; the
	// error return is reserved for transient/fatal faults (ErrLedgerTimeout,
	// storage errors) where the outcome is unknown and retry is safe.
	Reconcile(ctx context.Context, rawPayload string, eventID string) (*ScanResult, error)

	// Mark records attendance from an already-validated request (the HTTP
	// write path). Same dedup semantics as Reconcile.
	Mark(ctx context.Context, req *validator.MarkAttendanceRequest) (*ScanResult, error)

	// CheckDuplicate answers the client-side pre-check fast path.
	CheckDuplicate(ctx context.Context, userID, scanDate string) (*models.DuplicateCheckResponse, error)
}

// MirrorService maintains the per-(day, event) Excel projection. It applies
// its own (rollno, scan_date) dedup because it can be invoked as a separate,
// unsynchronized write path and does not trust the ledger's decision.
type MirrorService interface {
	AppendOrReject(ctx context.Context, record *models.AttendanceRecord) (*MirrorResult, error)

	// ExportFiltered builds a fresh workbook from the ledger (not from the
	// mirror files); detailed format adds a summary sheet.
	ExportFiltered(ctx context.Context, filters repositories.AttendanceFilters, format string) (*excelize.File, string, error)

	ListWorkbooks() ([]models.WorkbookInfo, error)

	// WorkbookPath resolves a stored workbook for download, rejecting
	// traversal attempts and non-workbook names.
	WorkbookPath(filename string) (string, error)
}

// ReportingService exposes the ledger's pure read paths.
type ReportingService interface {
	Records(ctx context.Context, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, int64, error)
	Summary(ctx context.Context, scanDate, eventID string) (*models.AttendanceSummary, error)
	StudentHistory(ctx context.Context, userID, startDate, endDate string) ([]*models.AttendanceRecord, error)
	Attendees(ctx context.Context, scanDate, eventID string) ([]*models.AttendanceRecord, error)
}

// ServiceManager wires and owns all service instances.
type ServiceManager interface {
	Attendance() AttendanceService
	Mirror() MirrorService
	Reporting() ReportingService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
