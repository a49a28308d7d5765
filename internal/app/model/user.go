package model

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleApplicant UserRole = "applicant" // submits verification requests
	RoleReviewer  UserRole = "reviewer"  // screens submissions (start review / verify)
	RoleAdmin     UserRole = "admin"     // final approve / reject, user management
)

// IsStaff reports whether the role may act on other users' submissions.
func (r UserRole) IsStaff() bool {
	return r == RoleReviewer || r == RoleAdmin
}

type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Phone        string         `json:"phone"`
	Role         UserRole       `gorm:"type:varchar(20);default:'applicant';index" json:"role"`
	Active       bool           `gorm:"default:true;not null" json:"active"` // admins can suspend accounts
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
