package repository

import (
	"errors"

	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"gorm.io/gorm"
)

// ErrStaleStatus is returned by ApplyTransition when the row no longer holds
// the expected status (lost a concurrent-update race).
var ErrStaleStatus = errors.New("submission status changed concurrently")

// SubmissionFilter scopes List and Stats queries.
type SubmissionFilter struct {
	Status *model.SubmissionStatus // nil: all statuses
	UserID *uint                   // nil: all applicants (staff scope)
}

// SubmissionStats holds per-status counts for dashboards.
type SubmissionStats struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	UnderReview int64 `json:"under_review"`
	Verified    int64 `json:"verified"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
}

type SubmissionRepository interface {
	Create(submission *model.Submission) error
	FindByID(id uint) (*model.Submission, error)
	FindByIDWithReviewer(id uint) (*model.Submission, error)
	ExistsByIDNumber(idNumber string) (bool, error)
	// ApplyTransition updates the row only if it still holds expectedStatus.
	// A zero-row match returns ErrStaleStatus; the caller decides whether the
	// race was benign.
	ApplyTransition(id uint, expectedStatus model.SubmissionStatus, updates map[string]interface{}) error
	List(filter SubmissionFilter, page, pageSize int) ([]model.Submission, int64, error)
	// EachBatch walks every matching row in id order, batchSize rows at a
	// time, without the List pagination clamp. Iteration stops on the first
	// error returned by fn.
	EachBatch(filter SubmissionFilter, batchSize int, fn func(batch []model.Submission) error) error
	Stats(filter SubmissionFilter) (*SubmissionStats, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(submission *model.Submission) error {
	logger.Debug("Creating verification submission in database", map[string]interface{}{
		"id_number": submission.IDNumber,
	})

	if err := r.db.Create(submission).Error; err != nil {
		logger.Error("Failed to create verification submission in database", err, map[string]interface{}{
			"id_number": submission.IDNumber,
		})
		return err
	}

	logger.Debug("Verification submission created in database", map[string]interface{}{
		"submission_id": submission.ID,
		"status":        submission.Status,
	})
	return nil
}

func (r *submissionRepository) FindByID(id uint) (*model.Submission, error) {
	var submission model.Submission
	if err := r.db.First(&submission, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find submission by ID in database", err, map[string]interface{}{
				"submission_id": id,
			})
		}
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepository) FindByIDWithReviewer(id uint) (*model.Submission, error) {
	var submission model.Submission
	if err := r.db.Preload("Reviewer").Preload("User").First(&submission, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find submission with reviewer in database", err, map[string]interface{}{
				"submission_id": id,
			})
		}
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepository) ExistsByIDNumber(idNumber string) (bool, error) {
	// Uniqueness is table-wide on purpose: a rejected submission still blocks
	// reuse of its ID number.
	var count int64
	if err := r.db.Model(&model.Submission{}).Where("id_number = ?", idNumber).Count(&count).Error; err != nil {
		logger.Error("Failed to check ID number existence in database", err, map[string]interface{}{
			"id_number": idNumber,
		})
		return false, err
	}
	return count > 0, nil
}

func (r *submissionRepository) ApplyTransition(id uint, expectedStatus model.SubmissionStatus, updates map[string]interface{}) error {
	logger.Debug("Applying status transition in database", map[string]interface{}{
		"submission_id":   id,
		"expected_status": expectedStatus,
	})

	result := r.db.Model(&model.Submission{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to apply status transition in database", result.Error, map[string]interface{}{
			"submission_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		logger.Warn("Status transition matched no rows", map[string]interface{}{
			"submission_id":   id,
			"expected_status": expectedStatus,
		})
		return ErrStaleStatus
	}
	return nil
}

func (r *submissionRepository) List(filter SubmissionFilter, page, pageSize int) ([]model.Submission, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.Model(&model.Submission{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count submissions in database", err, nil)
		return nil, 0, err
	}

	var submissions []model.Submission
	err := query.
		Preload("Reviewer").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&submissions).Error
	if err != nil {
		logger.Error("Failed to list submissions in database", err, nil)
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *submissionRepository) EachBatch(filter SubmissionFilter, batchSize int, fn func(batch []model.Submission) error) error {
	if batchSize < 1 {
		batchSize = 100
	}

	query := r.db.Model(&model.Submission{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var submissions []model.Submission
	result := query.
		Preload("Reviewer").
		Order("id").
		FindInBatches(&submissions, batchSize, func(tx *gorm.DB, batch int) error {
			return fn(submissions)
		})
	if result.Error != nil {
		logger.Error("Failed to iterate submissions in database", result.Error, nil)
		return result.Error
	}
	return nil
}

func (r *submissionRepository) Stats(filter SubmissionFilter) (*SubmissionStats, error) {
	type statusCount struct {
		Status model.SubmissionStatus
		Count  int64
	}

	query := r.db.Model(&model.Submission{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var counts []statusCount
	if err := query.Select("status, COUNT(*) as count").Group("status").Scan(&counts).Error; err != nil {
		logger.Error("Failed to compute submission stats in database", err, nil)
		return nil, err
	}

	stats := &SubmissionStats{}
	for _, c := range counts {
		stats.Total += c.Count
		switch c.Status {
		case model.StatusPending:
			stats.Pending = c.Count
		case model.StatusUnderReview:
			stats.UnderReview = c.Count
		case model.StatusVerified:
			stats.Verified = c.Count
		case model.StatusApproved:
			stats.Approved = c.Count
		case model.StatusRejected:
			stats.Rejected = c.Count
		}
	}
	return stats, nil
}
