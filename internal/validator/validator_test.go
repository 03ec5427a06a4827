package validator

import (
	"strings"
	"testing"
)

func TestValidator_MarkAttendanceRequest(t *testing.T) {
	v := New()

	t.Run("accepts a complete scan request", func(t *testing.T) {
		semester := 4
		req := &MarkAttendanceRequest{
			UserID:   "U1",
			Rollno:   "BCA001",
			Name:     "Asha",
			Faculty:  "BCA",
			Semester: &semester,
			ScanDate: "2024-12-25",
		}
		if err := v.Validate(req); err != nil {
			t.Errorf("Expected valid, got %v", err)
		}
	})

	t.Run("accepts an unknown faculty at scan time", func(t *testing.T) {
		req := &MarkAttendanceRequest{
			UserID:  "U1",
			Rollno:  "BCA001",
			Name:    "Asha",
			Faculty: "LAW",
		}
		if err := v.Validate(req); err != nil {
			t.Errorf("Scan path must not enforce the faculty enum, got %v", err)
		}
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		if err := v.Validate(&MarkAttendanceRequest{UserID: "U1"}); err == nil {
			t.Error("Expected validation failure")
		}
	})

	t.Run("rejects non-alphanumeric roll numbers", func(t *testing.T) {
		req := &MarkAttendanceRequest{
			UserID:  "U1",
			Rollno:  "BCA-001!",
			Name:    "Asha",
			Faculty: "BCA",
		}
		err := v.Validate(req)
		if err == nil || !strings.Contains(err.Error(), "rollno") {
			t.Errorf("Expected rollno failure, got %v", err)
		}
	})

	t.Run("rejects malformed scan dates", func(t *testing.T) {
		req := &MarkAttendanceRequest{
			UserID:   "U1",
			Rollno:   "BCA001",
			Name:     "Asha",
			Faculty:  "BCA",
			ScanDate: "25-12-2024",
		}
		if err := v.Validate(req); err == nil {
			t.Error("Expected scan_date failure")
		}
	})

	t.Run("rejects out-of-range semester", func(t *testing.T) {
		semester := 9
		req := &MarkAttendanceRequest{
			UserID:   "U1",
			Rollno:   "BCA001",
			Name:     "Asha",
			Faculty:  "BCA",
			Semester: &semester,
		}
		if err := v.Validate(req); err == nil {
			t.Error("Expected semester range failure")
		}
	})
}

func TestValidator_RegisterScanRequest(t *testing.T) {
	v := New()

	t.Run("enforces the faculty enum at registration", func(t *testing.T) {
		req := &RegisterScanRequest{
			Name:    "Asha",
			Email:   "asha@example.edu",
			Rollno:  "BCA001",
			Faculty: "LAW",
		}
		err := v.Validate(req)
		if err == nil || !strings.Contains(err.Error(), "faculty") {
			t.Errorf("Expected faculty failure, got %v", err)
		}
	})

	t.Run("accepts every known program code", func(t *testing.T) {
		for _, faculty := range []string{"BBA", "BCA", "BSC", "CSIT", "BBS", "BA", "BSW", "BITM"} {
			req := &RegisterScanRequest{
				Name:    "Asha",
				Email:   "asha@example.edu",
				Rollno:  "X001",
				Faculty: faculty,
			}
			if err := v.Validate(req); err != nil {
				t.Errorf("Faculty %s should be valid, got %v", faculty, err)
			}
		}
	})
}

func TestValidator_ExportRequest(t *testing.T) {
	v := New()

	if err := v.Validate(&ExportRequest{Format: "detailed"}); err != nil {
		t.Errorf("Format detailed should be valid, got %v", err)
	}
	if err := v.Validate(&ExportRequest{Format: "csv"}); err == nil {
		t.Error("Format csv should be rejected")
	}
}
