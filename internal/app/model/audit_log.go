package model

import (
	"time"
)

// AuditLog is an append-only record of staff actions. Workflow actions
// reference a submission; account-management actions reference a target user.
type AuditLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Action       string    `gorm:"type:varchar(64);not null;index" json:"action"` // start_review, verify, approve, reject, user_*
	ActorID      uint      `gorm:"not null;index" json:"actor_id"`
	Actor        *User     `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	SubmissionID *uint     `gorm:"index" json:"submission_id,omitempty"`
	TargetUserID *uint     `gorm:"index" json:"target_user_id,omitempty"`
	Metadata     string    `gorm:"type:text" json:"metadata,omitempty"` // JSON payload (reason, notes summary, role changes)
	CreatedAt    time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
