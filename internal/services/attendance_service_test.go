package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/campus-events/attendance-service/internal/events"
	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/repositories"
	"github.com/campus-events/attendance-service/internal/validator"
)

// ===== IN-MEMORY MOCKS =====

type mockUserRepository struct {
	users map[string]*models.User
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepository) GetByRollno(ctx context.Context, rollno string) (*models.User, error) {
	for _, user := range m.users {
		if user.Rollno == rollno {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := m.users[id]
	return ok, nil
}

func (m *mockUserRepository) ExistsByRollno(ctx context.Context, rollno string) (bool, error) {
	_, err := m.GetByRollno(ctx, rollno)
	return err == nil, nil
}

type mockAttendanceRepository struct {
	mu      sync.Mutex
	records []*models.AttendanceRecord

	// insertErr/findErr simulate ledger faults (timeouts, broken connections).
	insertErr error
	findErr   error
}

func (m *mockAttendanceRepository) Insert(ctx context.Context, tx *gorm.DB, record *models.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, r := range m.records {
		if r.ScanDate != record.ScanDate {
			continue
		}
		if r.UserID == record.UserID || r.Rollno == record.Rollno {
			return gorm.ErrDuplicatedKey
		}
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockAttendanceRepository) FindByUserAndDate(ctx context.Context, tx *gorm.DB, userID, scanDate string) (*models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.records {
		if r.UserID == userID && r.ScanDate == scanDate {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepository) FindByRollnoAndDate(ctx context.Context, tx *gorm.DB, rollno, scanDate string) (*models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Rollno == rollno && r.ScanDate == scanDate {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepository) Query(ctx context.Context, tx *gorm.DB, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AttendanceRecord
	for _, r := range m.records {
		if filters.StartDate != "" && r.ScanDate < filters.StartDate {
			continue
		}
		if filters.EndDate != "" && r.ScanDate > filters.EndDate {
			continue
		}
		if filters.EventID != "" && r.EventID != filters.EventID {
			continue
		}
		if filters.Faculty != nil && r.Faculty != *filters.Faculty {
			continue
		}
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (m *mockAttendanceRepository) GetByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AttendanceRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepository) GetAttendees(ctx context.Context, tx *gorm.DB, scanDate, eventID string) ([]*models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AttendanceRecord
	for _, r := range m.records {
		if r.ScanDate == scanDate && (eventID == "" || r.EventID == eventID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepository) CountsByFaculty(ctx context.Context, tx *gorm.DB, scanDate, eventID string) (map[models.Faculty]int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.Faculty]int)
	var total int64
	for _, r := range m.records {
		if r.ScanDate == scanDate && (eventID == "" || r.EventID == eventID) {
			counts[r.Faculty]++
			total++
		}
	}
	return counts, total, nil
}

type mockRepository struct {
	attendance *mockAttendanceRepository
	user       *mockUserRepository
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		attendance: &mockAttendanceRepository{},
		user:       &mockUserRepository{users: make(map[string]*models.User)},
	}
}

func (m *mockRepository) Attendance() repositories.AttendanceRepository { return m.attendance }
func (m *mockRepository) User() repositories.UserRepository             { return m.user }
func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}
func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// ===== TEST HARNESS =====

func newTestAttendanceService(t *testing.T, repo *mockRepository) (*attendanceService, *events.MockEventPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := events.NewMockEventPublisher(logger)
	svc := NewAttendanceService(repo, nil, logger, validator.New(), publisher, nil, 5*time.Second).(*attendanceService)
	svc.now = func() time.Time {
		return time.Date(2024, 12, 25, 10, 30, 0, 0, time.UTC)
	}
	return svc, publisher
}

func seedUser(repo *mockRepository, id, rollno, name string, faculty models.Faculty) {
	repo.user.users[id] = &models.User{
		ID:      id,
		Name:    name,
		Email:   rollno + "@example.edu",
		Rollno:  rollno,
		Faculty: faculty,
	}
}

func TestAttendanceService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a first scan of the day", func(t *testing.T) {
		repo := newMockRepository()
		seedUser(repo, "U1", "BCA001", "Asha", models.FacultyBCA)
		svc, publisher := newTestAttendanceService(t, repo)

		payload := `{"userId":"U1","rollno":"BCA001","name":"Asha","faculty":"BCA"}`
		result, err := svc.Reconcile(ctx, payload, "")
		if err != nil {
			t.Fatalf("Reconcile returned error: %v", err)
		}
		if result.Outcome != OutcomeAccepted {
			t.Fatalf("Expected accepted, got %s", result.Outcome)
		}
		if result.Record == nil {
			t.Fatal("Accepted result should carry the record")
		}
		if result.Record.ScanDate != "2024-12-25" {
			t.Errorf("Expected scan date 2024-12-25, got %s", result.Record.ScanDate)
		}
		if result.Record.EventID != models.DefaultEventID {
			t.Errorf("Expected default event, got %s", result.Record.EventID)
		}
		if result.Record.Status != models.StatusPresent {
			t.Errorf("Expected status present, got %s", result.Record.Status)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.EventAttendanceMarked {
			t.Errorf("Expected one attendance.marked event, got %v", published)
		}
	})

	t.Run("rejects a same-day re-scan with the first scan time", func(t *testing.T) {
		repo := newMockRepository()
		seedUser(repo, "U1", "BCA001", "Asha", models.FacultyBCA)
		svc, publisher := newTestAttendanceService(t, repo)

		payload := `{"userId":"U1","rollno":"BCA001","name":"Asha","faculty":"BCA"}`
		first, err := svc.Reconcile(ctx, payload, "")
		if err != nil || first.Outcome != OutcomeAccepted {
			t.Fatalf("First scan should be accepted: %v %v", first, err)
		}
		publisher.ClearEvents()

		second, err := svc.Reconcile(ctx, payload, "")
		if err != nil {
			t.Fatalf("Duplicate must be a result, not an error: %v", err)
		}
		if second.Outcome != OutcomeDuplicate {
			t.Fatalf("Expected duplicate_rejected, got %s", second.Outcome)
		}
		if second.FirstScanTime == nil {
			t.Fatal("Duplicate result should carry the first scan time")
		}
		if !second.FirstScanTime.Equal(first.Record.ScanTime) {
			t.Errorf("First scan time mismatch: %v vs %v", second.FirstScanTime, first.Record.ScanTime)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.EventDuplicateBlocked {
			t.Errorf("Expected one duplicate_blocked event, got %d", len(published))
		}

		// Idempotent: repeating changes nothing.
		if len(repo.attendance.records) != 1 {
			t.Errorf("Ledger should hold exactly one record, has %d", len(repo.attendance.records))
		}
	})

	t.Run("accepts the same user on a different day", func(t *testing.T) {
		repo := newMockRepository()
		seedUser(repo, "U1", "BCA001", "Asha", models.FacultyBCA)
		svc, _ := newTestAttendanceService(t, repo)

		payload := `{"userId":"U1","rollno":"BCA001","name":"Asha","faculty":"BCA"}`
		if result, _ := svc.Reconcile(ctx, payload, ""); result.Outcome != OutcomeAccepted {
			t.Fatalf("Day one scan should be accepted, got %s", result.Outcome)
		}

		svc.now = func() time.Time {
			return time.Date(2024, 12, 26, 9, 0, 0, 0, time.UTC)
		}
		result, err := svc.Reconcile(ctx, payload, "")
		if err != nil {
			t.Fatalf("Reconcile returned error: %v", err)
		}
		if result.Outcome != OutcomeAccepted {
			t.Fatalf("Next-day scan should be accepted, got %s", result.Outcome)
		}
		if len(repo.attendance.records) != 2 {
			t.Errorf("Expected two ledger records, got %d", len(repo.attendance.records))
		}
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestAttendanceService(t, repo)

		result, err := svc.Reconcile(ctx, "not-json-at-all", "")
		if err != nil {
			t.Fatalf("Invalid payload must be a result, not an error: %v", err)
		}
		if result.Outcome != OutcomeInvalidPayload || result.InvalidReason != "malformed" {
			t.Errorf("Expected invalid_payload/malformed, got %s/%s", result.Outcome, result.InvalidReason)
		}
		if len(repo.attendance.records) != 0 {
			t.Error("Invalid payloads must not reach the ledger")
		}
	})

	t.Run("rejects payloads with missing required fields", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestAttendanceService(t, repo)

		result, err := svc.Reconcile(ctx, `{"userId":"U1","name":"Asha"}`, "")
		if err != nil {
			t.Fatalf("Reconcile returned error: %v", err)
		}
		if result.Outcome != OutcomeInvalidPayload || result.InvalidReason != "missing-fields" {
			t.Errorf("Expected invalid_payload/missing-fields, got %s/%s", result.Outcome, result.InvalidReason)
		}
		if result.InvalidDetail != "rollno, faculty" {
			t.Errorf("Detail should name the missing fields, got %q", result.InvalidDetail)
		}
	})

	t.Run("reports unknown users without writing", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestAttendanceService(t, repo)

		payload := `{"userId":"GHOST","rollno":"XX999","name":"Nobody","faculty":"BCA"}`
		result, err := svc.Reconcile(ctx, payload, "")
		if err != nil {
			t.Fatalf("Unknown user must be a result, not an error: %v", err)
		}
		if result.Outcome != OutcomeUserNotFound {
			t.Fatalf("Expected user_not_found, got %s", result.Outcome)
		}
		if len(repo.attendance.records) != 0 {
			t.Error("Unknown users must not reach the ledger")
		}
	})

	t.Run("treats a lost insert race as a normal duplicate", func(t *testing.T) {
		repo := newMockRepository()
		seedUser(repo, "U1", "BCA001", "Asha", models.FacultyBCA)
		svc, _ := newTestAttendanceService(t, repo)

		// Simulate a concurrent write landing between the pre-check and the
		// insert: the record exists under a different user id but the same
		// roll number, so the rollno guard fires.
		firstScan := time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC)
		repo.attendance.records = append(repo.attendance.records, &models.AttendanceRecord{
			ID:       "existing",
			UserID:   "U2",
			Rollno:   "BCA001",
			Name:     "Asha",
			Faculty:  models.FacultyBCA,
			ScanDate: "2024-12-25",
			ScanTime: firstScan,
			EventID:  models.DefaultEventID,
		})

		payload := `{"userId":"U1","rollno":"BCA001","name":"Asha","faculty":"BCA"}`
		result, err := svc.Reconcile(ctx, payload, "")
		if err != nil {
			t.Fatalf("Constraint conflict must be a result, not an error: %v", err)
		}
		if result.Outcome != OutcomeDuplicate {
			t.Fatalf("Expected duplicate_rejected, got %s", result.Outcome)
		}
		if result.FirstScanTime == nil || !result.FirstScanTime.Equal(firstScan) {
			t.Errorf("Expected first scan time %v, got %v", firstScan, result.FirstScanTime)
		}
	})
}

func TestAttendanceService_CheckDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	seedUser(repo, "U1", "BCA001", "Asha", models.FacultyBCA)
	svc, _ := newTestAttendanceService(t, repo)

	resp, err := svc.CheckDuplicate(ctx, "U1", "2024-12-25")
	if err != nil {
		t.Fatalf("CheckDuplicate returned error: %v", err)
	}
	if resp.AlreadyScanned {
		t.Error("No scan yet, AlreadyScanned should be false")
	}

	payload := `{"userId":"U1","rollno":"BCA001","name":"Asha","faculty":"BCA"}`
	if result, _ := svc.Reconcile(ctx, payload, ""); result.Outcome != OutcomeAccepted {
		t.Fatalf("Scan should be accepted, got %s", result.Outcome)
	}

	resp, err = svc.CheckDuplicate(ctx, "U1", "2024-12-25")
	if err != nil {
		t.Fatalf("CheckDuplicate returned error: %v", err)
	}
	if !resp.AlreadyScanned || resp.FirstScanTime == nil {
		t.Errorf("Expected positive answer with first scan time, got %+v", resp)
	}
}

func TestAttendanceService_Mark_Validation(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestAttendanceService(t, repo)

	result, err := svc.Mark(context.Background(), &validator.MarkAttendanceRequest{
		UserID: "U1",
		// rollno, name and faculty missing
	})
	if err != nil {
		t.Fatalf("Mark returned error: %v", err)
	}
	if result.Outcome != OutcomeInvalidPayload {
		t.Errorf("Expected invalid_payload, got %s", result.Outcome)
	}
	if !strings.Contains(result.InvalidDetail, "Rollno") {
		t.Errorf("Detail should name the failing field, got %q", result.InvalidDetail)
	}
}

func TestAttendanceService_LedgerTimeout(t *testing.T) {
	ctx := context.Background()
	payload := `{"userId":"U1","rollno":"BCA001","name":"Asha","faculty":"BCA"}`

	t.Run("timed-out duplicate pre-check surfaces ErrLedgerTimeout", func(t *testing.T) {
		repo := newMockRepository()
		seedUser(repo, "U1", "BCA001", "Asha", models.FacultyBCA)
		svc, _ := newTestAttendanceService(t, repo)
		repo.attendance.findErr = context.DeadlineExceeded

		result, err := svc.Reconcile(ctx, payload, "")
		if !errors.Is(err, ErrLedgerTimeout) {
			t.Fatalf("Expected ErrLedgerTimeout, got err=%v result=%+v", err, result)
		}
	})

	t.Run("timed-out insert surfaces ErrLedgerTimeout", func(t *testing.T) {
		repo := newMockRepository()
		seedUser(repo, "U1", "BCA001", "Asha", models.FacultyBCA)
		svc, _ := newTestAttendanceService(t, repo)
		repo.attendance.insertErr = context.DeadlineExceeded

		result, err := svc.Reconcile(ctx, payload, "")
		if !errors.Is(err, ErrLedgerTimeout) {
			t.Fatalf("Expected ErrLedgerTimeout, got err=%v result=%+v", err, result)
		}
		if len(repo.attendance.records) != 0 {
			t.Errorf("Failed insert must not leave a record, got %d", len(repo.attendance.records))
		}
	})
}
