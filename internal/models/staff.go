package models

// StaffRole is the role carried by staff tokens. Students never authenticate
// against this service; they only present QR codes.
type StaffRole string

const (
	// RoleScanner may mark attendance and run scan stations.
	RoleScanner StaffRole = "scanner"

	// RoleOrganizer may additionally read reports and export workbooks.
	RoleOrganizer StaffRole = "organizer"

	// RoleAdmin may do everything.
	RoleAdmin StaffRole = "admin"
)
