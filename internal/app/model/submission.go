package model

import (
	"time"
)

type SubmissionStatus string

const (
	StatusPending     SubmissionStatus = "pending"      // submitted, waiting for staff
	StatusUnderReview SubmissionStatus = "under_review" // a reviewer picked it up
	StatusVerified    SubmissionStatus = "verified"     // documents checked, awaiting decision
	StatusApproved    SubmissionStatus = "approved"     // terminal
	StatusRejected    SubmissionStatus = "rejected"     // terminal
)

// IsTerminal reports whether no further transitions are permitted.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Submission is one applicant's verification case record.
// Rows are never hard-deleted; terminal records are retained for audit.
type Submission struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Applicant link. Nullable: guest submissions are created before account linkage.
	UserID *uint `gorm:"index" json:"user_id,omitempty"`
	User   *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// Personal information
	Gender      string    `gorm:"type:varchar(10);not null" json:"gender"` // male, female
	FirstName   string    `gorm:"not null" json:"first_name"`
	LastName    string    `gorm:"not null" json:"last_name"`
	DateOfBirth time.Time `gorm:"not null" json:"date_of_birth"`
	IDNumber    string    `gorm:"type:varchar(10);not null;uniqueIndex" json:"id_number"` // 10 digits, unique table-wide

	// Document references (blob store object keys, not raw bytes)
	IDFrontPath             string `gorm:"not null" json:"id_front_path"`
	LicenseFrontPath        string `gorm:"not null" json:"license_front_path"`
	VehicleRegistrationPath string `gorm:"not null" json:"vehicle_registration_path"`
	SelfiePath              string `gorm:"not null" json:"selfie_path"`

	// Business fields
	LicenseExpiry         time.Time `gorm:"not null" json:"license_expiry"`
	VehicleSequenceNumber string    `gorm:"not null" json:"vehicle_sequence_number"`
	ContactPhone          string    `gorm:"type:varchar(9)" json:"contact_phone,omitempty"` // 9 digits when present

	// Workflow fields
	Status        SubmissionStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PublicNotes   string           `gorm:"type:text" json:"public_notes,omitempty"`   // written at approve/reject, visible to applicant
	ReviewerNotes string           `gorm:"type:text" json:"reviewer_notes,omitempty"` // written at verify, visible to applicant
	InternalNotes string           `gorm:"type:text" json:"-"`                        // staff-only, appended across transitions
	ReviewedBy    *uint            `json:"reviewed_by,omitempty"`                     // admin who made the final decision
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
	Reviewer      *User            `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
}

func (Submission) TableName() string {
	return "verification_submissions"
}
