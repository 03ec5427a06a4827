package models

import (
	"time"

	"gorm.io/gorm"
)

type Faculty string

const (
	FacultyBBA  Faculty = "BBA"
	FacultyBCA  Faculty = "BCA"
	FacultyBSC  Faculty = "BSC"
	FacultyCSIT Faculty = "CSIT"
	FacultyBBS  Faculty = "BBS"
	FacultyBA   Faculty = "BA"
	FacultyBSW  Faculty = "BSW"
	FacultyBITM Faculty = "BITM"
)

// AllFaculties lists every academic program the registration form accepts.
var AllFaculties = []Faculty{
	FacultyBBA, FacultyBCA, FacultyBSC, FacultyCSIT,
	FacultyBBS, FacultyBA, FacultyBSW, FacultyBITM,
}

// semesterFaculties track students by semester (1-8); the rest track by year (1-4).
var semesterFaculties = map[Faculty]bool{
	FacultyBBA:  true,
	FacultyBCA:  true,
	FacultyBSC:  true,
	FacultyCSIT: true,
	FacultyBITM: true,
}

// IsValidFaculty reports whether f is one of the known program codes.
func IsValidFaculty(f Faculty) bool {
	for _, known := range AllFaculties {
		if f == known {
			return true
		}
	}
	return false
}

// UsesSemester reports whether the faculty tracks students by semester
// rather than by year. Exactly one of semester/year is set per user.
func UsesSemester(f Faculty) bool {
	return semesterFaculties[f]
}

// User is the registered-student identity record. The attendance service
// reads it but never writes it; registration owns the write path.
type User struct {
	ID      string  `json:"id" gorm:"primaryKey;size:255"`
	Name    string  `json:"name" gorm:"not null;size:100"`
	Email   string  `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Rollno  string  `json:"rollno" gorm:"uniqueIndex;not null;size:50"`
	Faculty Faculty `json:"faculty" gorm:"not null;size:10"`

	// Exactly one of Semester/Year is set, determined by the faculty.
	Semester *int `json:"semester"`
	Year     *int `json:"year"`

	// QRPayload is the JSON string encoded into the student's QR code at
	// registration time. Stored for re-issue; never trusted at scan time.
	QRPayload string `json:"qr_payload" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}
