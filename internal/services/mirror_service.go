package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/campus-events/attendance-service/internal/events"
	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/repositories"
)

const (
	mirrorSheetName  = "Attendance"
	summarySheetName = "Summary"

	// headerFillColor matches the export styling students already know
	// from the manual sheets this service replaced.
	headerFillColor = "4472C4"
)

var mirrorHeaders = []interface{}{
	"S.N.", "Roll Number", "Name", "Faculty", "Year", "Semester",
	"Scan Date", "Scan Time", "Status", "Event ID",
}

type mirrorService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	publisher events.EventPublisher

	dir string

	// mu serializes every read-modify-save cycle. Appends rewrite the whole
	// workbook, so two unsynchronized writers would lose rows.
	mu sync.Mutex
}

func NewMirrorService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, publisher events.EventPublisher, dir string) MirrorService {
	return &mirrorService{
		repo:      repo,
		db:        db,
		logger:    logger,
		publisher: publisher,
		dir:       dir,
	}
}

// ===== MIRROR APPEND =====

func (s *mirrorService) AppendOrReject(ctx context.Context, record *models.AttendanceRecord) (*MirrorResult, error) {
	if record == nil || record.Rollno == "" || record.ScanDate == "" {
		return nil, NewInvalidPayloadError("missing-fields", "rollno and scanDate are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error("Failed to create workbook directory", "dir", s.dir, "error", err)
		return nil, ErrMirrorUnavailable
	}

	filename := workbookFilename(record.ScanDate, record.EventID)
	path := filepath.Join(s.dir, filename)

	f, err := s.openOrCreate(path)
	if err != nil {
		s.notifyMirrorFailure(ctx, record, "open failed")
		return nil, ErrMirrorUnavailable
	}
	defer f.Close()

	rows, err := f.GetRows(mirrorSheetName)
	if err != nil {
		s.notifyMirrorFailure(ctx, record, "read failed")
		return nil, ErrMirrorUnavailable
	}

	// The workbook keeps its own (rollno, scan_date) dedup: the file can be
	// written by paths that never consulted the ledger, and a re-run append
	// of the same record must stay idempotent.
	rollno := strings.ToUpper(record.Rollno)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) > 1 && strings.EqualFold(row[1], rollno) {
			s.logger.Info("Mirror append rejected as duplicate",
				"rollno", rollno, "scan_date", record.ScanDate, "filename", filename)
			s.notifyMirrorFailure(ctx, record, "duplicate")
			return &MirrorResult{Outcome: MirrorDuplicateRejected, Filename: filename}, nil
		}
	}

	serial := len(rows) // header occupies row 1
	rowIdx := serial + 1
	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cell name: %w", err)
	}
	if err := f.SetSheetRow(mirrorSheetName, cell, &[]interface{}{
		serial,
		rollno,
		record.Name,
		string(record.Faculty),
		intOrDash(record.Year),
		intOrDash(record.Semester),
		record.ScanDate,
		record.ScanTime.Format("15:04:05"),
		string(record.Status),
		record.EventID,
	}); err != nil {
		s.notifyMirrorFailure(ctx, record, "write failed")
		return nil, ErrMirrorUnavailable
	}

	if err := f.SaveAs(path); err != nil {
		s.logger.Error("Failed to save workbook", "filename", filename, "error", err)
		s.notifyMirrorFailure(ctx, record, "save failed")
		return nil, ErrMirrorUnavailable
	}

	s.logger.Info("Mirror row appended",
		"filename", filename, "serial", serial, "rollno", rollno)

	return &MirrorResult{Outcome: MirrorWritten, Filename: filename, Serial: serial}, nil
}

func (s *mirrorService) openOrCreate(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); err == nil {
		return excelize.OpenFile(path)
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(mirrorSheetName); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeaderRow(f, mirrorSheetName); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeHeaderRow(f *excelize.File, sheet string) error {
	if err := f.SetSheetRow(sheet, "A1", &mirrorHeaders); err != nil {
		return err
	}
	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "J1", styleID); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "D", 18)
}

// ===== EXPORT =====

func (s *mirrorService) ExportFiltered(ctx context.Context, filters repositories.AttendanceFilters, format string) (*excelize.File, string, error) {
	records, _, err := s.repo.Attendance().Query(ctx, nil, filters)
	if err != nil {
		return nil, "", fmt.Errorf("export query failed: %w", err)
	}
	if len(records) == 0 {
		return nil, "", ErrNoRecordsFound
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(mirrorSheetName); err != nil {
		f.Close()
		return nil, "", err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, "", err
	}
	if err := writeHeaderRow(f, mirrorSheetName); err != nil {
		f.Close()
		return nil, "", err
	}

	for i, record := range records {
		cell, cerr := excelize.CoordinatesToCellName(1, i+2)
		if cerr != nil {
			f.Close()
			return nil, "", cerr
		}
		if err := f.SetSheetRow(mirrorSheetName, cell, &[]interface{}{
			i + 1,
			record.Rollno,
			record.Name,
			string(record.Faculty),
			intOrDash(record.Year),
			intOrDash(record.Semester),
			record.ScanDate,
			record.ScanTime.Format("15:04:05"),
			string(record.Status),
			record.EventID,
		}); err != nil {
			f.Close()
			return nil, "", err
		}
	}

	if format == "detailed" {
		if err := s.writeSummarySheet(f, records); err != nil {
			f.Close()
			return nil, "", err
		}
	}

	filename := fmt.Sprintf("Attendance_Export_%s.xlsx", time.Now().Format("2006_01_02_150405"))
	s.logger.Info("Export workbook built", "filename", filename, "records", len(records))
	return f, filename, nil
}

func (s *mirrorService) writeSummarySheet(f *excelize.File, records []*models.AttendanceRecord) error {
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return err
	}

	byFaculty := make(map[models.Faculty]int)
	byStatus := make(map[models.AttendanceStatus]int)
	students := make(map[string]struct{})
	for _, r := range records {
		byFaculty[r.Faculty]++
		byStatus[r.Status]++
		students[r.UserID] = struct{}{}
	}

	rows := [][]interface{}{
		{"Total Scans", len(records)},
		{"Unique Students", len(students)},
		{},
		{"By Faculty"},
	}
	faculties := make([]string, 0, len(byFaculty))
	for fac := range byFaculty {
		faculties = append(faculties, string(fac))
	}
	sort.Strings(faculties)
	for _, fac := range faculties {
		rows = append(rows, []interface{}{fac, byFaculty[models.Faculty(fac)]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"By Status"})
	statuses := make([]string, 0, len(byStatus))
	for st := range byStatus {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		rows = append(rows, []interface{}{st, byStatus[models.AttendanceStatus(st)]})
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheetName, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// ===== WORKBOOK LISTING =====

func (s *mirrorService) ListWorkbooks() ([]models.WorkbookInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.WorkbookInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read workbook directory: %w", err)
	}

	workbooks := make([]models.WorkbookInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xlsx") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		workbooks = append(workbooks, models.WorkbookInfo{
			Filename:   entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(workbooks, func(i, j int) bool {
		return workbooks[i].ModifiedAt.After(workbooks[j].ModifiedAt)
	})
	return workbooks, nil
}

func (s *mirrorService) WorkbookPath(filename string) (string, error) {
	if filename == "" ||
		strings.ContainsAny(filename, "/\\") ||
		strings.Contains(filename, "..") ||
		!strings.HasSuffix(filename, ".xlsx") {
		return "", NewInvalidPayloadError("malformed", "invalid workbook filename")
	}

	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrWorkbookNotFound
		}
		return "", fmt.Errorf("failed to stat workbook: %w", err)
	}
	return path, nil
}

// ===== HELPERS =====

// workbookFilename names one (day, event) workbook, matching the naming the
// registrar's office expects, e.g. Attendance_2025_03_14_default.xlsx.
func workbookFilename(scanDate, eventID string) string {
	event := eventID
	if event == "" || event == models.DefaultEventID {
		event = "default"
	}
	event = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, event)
	return fmt.Sprintf("Attendance_%s_%s.xlsx", strings.ReplaceAll(scanDate, "-", "_"), event)
}

func intOrDash(v *int) interface{} {
	if v == nil {
		return "-"
	}
	return *v
}

func (s *mirrorService) notifyMirrorFailure(ctx context.Context, record *models.AttendanceRecord, reason string) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.EventMirrorAppendFailed, events.MirrorAppendFailedEvent{
		RecordID: record.ID,
		Rollno:   record.Rollno,
		ScanDate: record.ScanDate,
		EventID:  record.EventID,
		Reason:   reason,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
	}
}
