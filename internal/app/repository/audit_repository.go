package repository

import (
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"gorm.io/gorm"
)

// AuditLogRepository is the append-only sink for staff action records.
type AuditLogRepository interface {
	Append(entry *model.AuditLog) error
	List(page, pageSize int) ([]model.AuditLog, int64, error)
	ListBySubmission(submissionID uint) ([]model.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(entry *model.AuditLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		logger.Error("Failed to append audit log entry", err, map[string]interface{}{
			"action":        entry.Action,
			"submission_id": entry.SubmissionID,
		})
		return err
	}
	return nil
}

func (r *auditLogRepository) List(page, pageSize int) ([]model.AuditLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.db.Model(&model.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.AuditLog
	err := r.db.
		Preload("Actor").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		logger.Error("Failed to list audit log entries", err, nil)
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *auditLogRepository) ListBySubmission(submissionID uint) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := r.db.
		Preload("Actor").
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		logger.Error("Failed to list audit log entries for submission", err, map[string]interface{}{
			"submission_id": submissionID,
		})
		return nil, err
	}
	return logs, nil
}
