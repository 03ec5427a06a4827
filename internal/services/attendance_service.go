package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campus-events/attendance-service/internal/cache"
	"github.com/campus-events/attendance-service/internal/events"
	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/repositories"
	"github.com/campus-events/attendance-service/internal/validator"
)

type attendanceService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	cache     *cache.CacheManager

	// ledgerTimeout bounds one reconcile round-trip. On expiry the outcome
	// is unknown and the caller gets ErrLedgerTimeout; retrying is safe
	// because the unique index prevents a silent double-write.
	ledgerTimeout time.Duration

	// now is swapped in tests for deterministic scan dates.
	now func() time.Time
}

func NewAttendanceService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, cacheManager *cache.CacheManager, ledgerTimeout time.Duration) AttendanceService {
	if ledgerTimeout <= 0 {
		ledgerTimeout = 5 * time.Second
	}
	return &attendanceService{
		repo:          repo,
		db:            db,
		logger:        logger,
		validator:     validator,
		publisher:     publisher,
		cache:         cacheManager,
		ledgerTimeout: ledgerTimeout,
		now:           time.Now,
	}
}

// ===== SCAN RECONCILER =====

func (s *attendanceService) Reconcile(ctx context.Context, rawPayload string, eventID string) (*ScanResult, error) {
	payload, invalid := decodePayload(rawPayload)
	if invalid != nil {
		s.logger.Info("Rejected scan payload", "reason", invalid.Reason, "detail", invalid.Detail)
		return &ScanResult{
			Outcome:       OutcomeInvalidPayload,
			InvalidReason: invalid.Reason,
			InvalidDetail: invalid.Detail,
		}, nil
	}

	if eventID == "" {
		eventID = payload.EventID
	}

	now := s.now()
	req := &validator.MarkAttendanceRequest{
		UserID:   payload.UserID,
		Rollno:   payload.Rollno,
		Name:     payload.Name,
		Faculty:  payload.Faculty,
		Semester: payload.Semester,
		Year:     payload.Year,
		ScanDate: now.Format(models.ScanDateLayout),
		ScanTime: &now,
		EventID:  eventID,
	}

	return s.Mark(ctx, req)
}

func (s *attendanceService) Mark(ctx context.Context, req *validator.MarkAttendanceRequest) (*ScanResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return &ScanResult{
			Outcome:       OutcomeInvalidPayload,
			InvalidReason: "missing-fields",
			InvalidDetail: err.Error(),
		}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()

	now := s.now()
	scanDate := req.ScanDate
	if scanDate == "" {
		scanDate = now.Format(models.ScanDateLayout)
	}
	scanTime := now
	if req.ScanTime != nil {
		scanTime = *req.ScanTime
	}
	eventID := req.EventID
	if eventID == "" {
		eventID = models.DefaultEventID
	}

	// Identity check: never create an orphan record for an unknown user.
	if _, err := s.repo.User().GetByID(ctx, req.UserID); err != nil {
		if repositories.IsNotFoundError(err) {
			return &ScanResult{Outcome: OutcomeUserNotFound}, nil
		}
		return nil, s.translateLedgerError(ctx, err, "identity lookup failed")
	}

	// Duplicate pre-check. Not atomic with the insert; the unique index is
	// the backstop for the race between two stations scanning the same
	// student at once.
	existing, err := s.repo.Attendance().FindByUserAndDate(ctx, nil, req.UserID, scanDate)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, s.translateLedgerError(ctx, err, "duplicate check failed")
	}
	if existing != nil {
		return s.duplicateResult(ctx, existing, eventID), nil
	}

	record := &models.AttendanceRecord{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		Rollno:   strings.ToUpper(req.Rollno),
		Name:     req.Name,
		Faculty:  models.Faculty(req.Faculty),
		Semester: req.Semester,
		Year:     req.Year,
		ScanDate: scanDate,
		ScanTime: scanTime,
		EventID:  eventID,
		Status:   models.StatusPresent,
	}
	if req.StationID != "" {
		if data, merr := json.Marshal(map[string]string{"station_id": req.StationID}); merr == nil {
			record.StationData = datatypes.JSON(data)
		}
	}

	if err := s.repo.Attendance().Insert(ctx, nil, record); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			// Lost the race (or the rollno guard fired). Re-read for the
			// first scan time and report a normal duplicate.
			return s.duplicateAfterConflict(ctx, req.UserID, record.Rollno, scanDate, eventID)
		}
		return nil, s.translateLedgerError(ctx, err, "ledger insert failed")
	}

	s.logger.Info("Attendance marked",
		"record_id", record.ID,
		"user_id", record.UserID,
		"rollno", record.Rollno,
		"scan_date", record.ScanDate,
		"event_id", record.EventID)

	s.publish(ctx, events.NewEvent(events.EventAttendanceMarked, events.AttendanceMarkedEvent{
		RecordID: record.ID,
		UserID:   record.UserID,
		Rollno:   record.Rollno,
		Name:     record.Name,
		Faculty:  string(record.Faculty),
		ScanDate: record.ScanDate,
		ScanTime: record.ScanTime,
		EventID:  record.EventID,
	}))

	return &ScanResult{Outcome: OutcomeAccepted, Record: record}, nil
}

func (s *attendanceService) CheckDuplicate(ctx context.Context, userID, scanDate string) (*models.DuplicateCheckResponse, error) {
	if userID == "" || scanDate == "" {
		return nil, NewInvalidPayloadError("missing-fields", "userId and scanDate are required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()

	// Only positive cached answers short-circuit. A negative answer could be
	// stale the moment another station writes, so it always goes to the ledger.
	if s.cache != nil {
		if entry, cerr := s.cache.Scan.GetDuplicateCheck(ctx, userID, scanDate); cerr == nil && entry.AlreadyScanned {
			first := entry.FirstScanTime
			return &models.DuplicateCheckResponse{
				Success:        true,
				AlreadyScanned: true,
				FirstScanTime:  &first,
				Message:        "User already scanned today",
			}, nil
		}
	}

	existing, err := s.repo.Attendance().FindByUserAndDate(ctx, nil, userID, scanDate)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return &models.DuplicateCheckResponse{
				Success:        true,
				AlreadyScanned: false,
				Message:        "No previous scan found",
			}, nil
		}
		return nil, s.translateLedgerError(ctx, err, "duplicate check failed")
	}

	if s.cache != nil {
		_ = s.cache.Scan.SetDuplicateCheck(ctx, userID, scanDate, cache.DuplicateCheckEntry{
			AlreadyScanned: true,
			FirstScanTime:  existing.ScanTime,
		})
	}

	return &models.DuplicateCheckResponse{
		Success:        true,
		AlreadyScanned: true,
		FirstScanTime:  &existing.ScanTime,
		Message:        "User already scanned today",
	}, nil
}

// ===== HELPERS =====

func (s *attendanceService) duplicateResult(ctx context.Context, existing *models.AttendanceRecord, eventID string) *ScanResult {
	s.logger.Info("Duplicate scan blocked",
		"user_id", existing.UserID,
		"scan_date", existing.ScanDate,
		"first_scan_time", existing.ScanTime)

	s.publish(ctx, events.NewEvent(events.EventDuplicateBlocked, events.DuplicateBlockedEvent{
		UserID:        existing.UserID,
		ScanDate:      existing.ScanDate,
		FirstScanTime: existing.ScanTime,
		EventID:       eventID,
	}))

	first := existing.ScanTime
	return &ScanResult{Outcome: OutcomeDuplicate, FirstScanTime: &first}
}

func (s *attendanceService) duplicateAfterConflict(ctx context.Context, userID, rollno, scanDate, eventID string) (*ScanResult, error) {
	existing, err := s.repo.Attendance().FindByUserAndDate(ctx, nil, userID, scanDate)
	if err != nil && repositories.IsNotFoundError(err) {
		// The rollno guard fired: a different userId already holds this
		// roll number today.
		existing, err = s.repo.Attendance().FindByRollnoAndDate(ctx, nil, rollno, scanDate)
	}
	if err != nil {
		return nil, s.translateLedgerError(ctx, err, "conflict re-read failed")
	}
	return s.duplicateResult(ctx, existing, eventID), nil
}

func (s *attendanceService) translateLedgerError(ctx context.Context, err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("Ledger round-trip timed out", "error", err)
		return ErrLedgerTimeout
	}
	s.logger.Error(msg, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *attendanceService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Events are observability, not correctness: log and move on.
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// decodePayload parses untrusted QR text into a typed payload. Returns an
// InvalidPayloadError with reason "malformed" when the text is not the
// expected JSON shape, or "missing-fields" when a required field is empty.
// Faculty is deliberately not checked against the program enum: the QR was
// generated by this system's registration flow, and the scan-time contract
// stays lenient.
func decodePayload(raw string) (*QRPayload, *InvalidPayloadError) {
	var payload QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, NewInvalidPayloadError("malformed", err.Error())
	}

	missing := make([]string, 0, 4)
	if strings.TrimSpace(payload.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(payload.Rollno) == "" {
		missing = append(missing, "rollno")
	}
	if strings.TrimSpace(payload.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(payload.Faculty) == "" {
		missing = append(missing, "faculty")
	}
	if len(missing) > 0 {
		return nil, NewInvalidPayloadError("missing-fields", strings.Join(missing, ", "))
	}

	return &payload, nil
}
