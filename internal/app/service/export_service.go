package service

import (
	"fmt"
	"time"

	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// exportBatchSize bounds memory while walking the full table.
const exportBatchSize = 500

type ExportService interface {
	// SubmissionsWorkbook renders all submissions (optionally filtered by
	// status) into an xlsx workbook for offline review.
	SubmissionsWorkbook(status *model.SubmissionStatus) (*excelize.File, error)
}

type exportService struct {
	submissionRepo repository.SubmissionRepository
}

func NewExportService(submissionRepo repository.SubmissionRepository) ExportService {
	return &exportService{submissionRepo: submissionRepo}
}

func (s *exportService) SubmissionsWorkbook(status *model.SubmissionStatus) (*excelize.File, error) {
	logger.Info("Building submissions export workbook", map[string]interface{}{
		"status_filter": status,
	})

	f := excelize.NewFile()
	const sheet = "Submissions"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"ID", "Status", "First Name", "Last Name", "Gender", "ID Number",
		"Date of Birth", "License Expiry", "Vehicle Sequence", "Contact Phone",
		"Submitted At", "Reviewed At", "Reviewed By", "Public Notes",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	row := 2
	filter := repository.SubmissionFilter{Status: status}
	err := s.submissionRepo.EachBatch(filter, exportBatchSize, func(batch []model.Submission) error {
		for _, sub := range batch {
			values := []interface{}{
				sub.ID,
				string(sub.Status),
				sub.FirstName,
				sub.LastName,
				sub.Gender,
				sub.IDNumber,
				sub.DateOfBirth.Format("2006-01-02"),
				sub.LicenseExpiry.Format("2006-01-02"),
				sub.VehicleSequenceNumber,
				sub.ContactPhone,
				sub.CreatedAt.Format(time.RFC3339),
				formatTimePtr(sub.ReviewedAt),
				formatUintPtr(sub.ReviewedBy),
				sub.PublicNotes,
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
			row++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Submissions export workbook built", map[string]interface{}{
		"rows": row - 2,
	})
	return f, nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatUintPtr(v *uint) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
