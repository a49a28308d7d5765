package controller

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/service"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/workflow"
	apperrors "github.com/tawtheeq/tawtheeq-backend/internal/errors"
	"github.com/tawtheeq/tawtheeq-backend/internal/middleware"
	"github.com/tawtheeq/tawtheeq-backend/internal/storage"
)

type AdminController struct {
	verificationService service.VerificationService
	queryService        service.QueryService
	exportService       service.ExportService
	auditRepo           repository.AuditLogRepository
	blobStore           storage.BlobStore
}

func NewAdminController(
	verificationService service.VerificationService,
	queryService service.QueryService,
	exportService service.ExportService,
	auditRepo repository.AuditLogRepository,
	blobStore storage.BlobStore,
) *AdminController {
	return &AdminController{
		verificationService: verificationService,
		queryService:        queryService,
		exportService:       exportService,
		auditRepo:           auditRepo,
		blobStore:           blobStore,
	}
}

type VerifyRequest struct {
	ReviewerNotes string `json:"reviewer_notes"`
	InternalNotes string `json:"internal_notes"`
}

type ApproveRequest struct {
	PublicNotes   string `json:"public_notes"`
	InternalNotes string `json:"internal_notes"`
}

type RejectRequest struct {
	Reason        string `json:"reason" binding:"required"`
	InternalNotes string `json:"internal_notes"`
}

// List returns submissions for the staff dashboard
// GET /api/v1/admin/verifications
func (ctrl *AdminController) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	status, ok := parseStatusQuery(c)
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Unknown status filter")
		return
	}
	page, pageSize := parsePagination(c)

	result, err := ctrl.queryService.ListForRole(actor, status, page, pageSize)
	if err != nil {
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list submissions")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stats returns per-status submission counts
// GET /api/v1/admin/verifications/stats
func (ctrl *AdminController) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	stats, err := ctrl.queryService.StatsForRole(actor)
	if err != nil {
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "submission stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Show returns a submission with short-lived document URLs for review
// GET /api/v1/admin/verifications/:id
func (ctrl *AdminController) Show(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid submission ID")
		return
	}

	submission, err := ctrl.queryService.GetForActor(id, actor)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			apperrors.NotFound(c, apperrors.VerificationNotFound, "Submission not found")
			return
		}
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "load submission")
		return
	}

	documents := gin.H{}
	for field, key := range map[string]string{
		"id_front":             submission.IDFrontPath,
		"license_front":        submission.LicenseFrontPath,
		"vehicle_registration": submission.VehicleRegistrationPath,
		"selfie":               submission.SelfiePath,
	} {
		url, err := ctrl.blobStore.PresignGet(c.Request.Context(), key)
		if err != nil {
			log.Error("Failed to presign document URL", err, map[string]interface{}{
				"submission_id": id,
				"field":         field,
			})
			apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.InternalStorageError, "Document URLs are temporarily unavailable")
			return
		}
		documents[field] = url
	}

	c.JSON(http.StatusOK, gin.H{
		"submission": submission,
		"documents":  documents,
	})
}

// StartReview moves a pending submission into review
// POST /api/v1/admin/verifications/:id/start-review
func (ctrl *AdminController) StartReview(c *gin.Context) {
	ctrl.transition(c, func(id uint, actor *model.User) (*model.Submission, error) {
		return ctrl.verificationService.StartReview(id, actor)
	})
}

// Verify marks the documents of a submission as checked
// POST /api/v1/admin/verifications/:id/verify
func (ctrl *AdminController) Verify(c *gin.Context) {
	// notes are optional; an empty or missing body is fine
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = VerifyRequest{}
	}
	ctrl.transition(c, func(id uint, actor *model.User) (*model.Submission, error) {
		return ctrl.verificationService.Verify(id, actor, req.ReviewerNotes, req.InternalNotes)
	})
}

// Approve records the final positive decision
// POST /api/v1/admin/verifications/:id/approve
func (ctrl *AdminController) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = ApproveRequest{}
	}
	ctrl.transition(c, func(id uint, actor *model.User) (*model.Submission, error) {
		return ctrl.verificationService.Approve(id, actor, req.PublicNotes, req.InternalNotes)
	})
}

// Reject records the final negative decision; a reason is mandatory
// POST /api/v1/admin/verifications/:id/reject
func (ctrl *AdminController) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.VerificationReasonRequired, "A rejection reason is required")
		return
	}
	ctrl.transition(c, func(id uint, actor *model.User) (*model.Submission, error) {
		return ctrl.verificationService.Reject(id, actor, req.Reason, req.InternalNotes)
	})
}

func (ctrl *AdminController) transition(c *gin.Context, apply func(uint, *model.User) (*model.Submission, error)) {
	log := middleware.GetLoggerFromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid submission ID")
		return
	}

	submission, err := apply(id, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			apperrors.NotFound(c, apperrors.VerificationNotFound, "Submission not found")
		case errors.Is(err, workflow.ErrForbidden):
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthzForbidden, "Your role cannot perform this action")
		case errors.Is(err, workflow.ErrInvalidTransition):
			apperrors.RespondWithError(c, http.StatusUnprocessableEntity, apperrors.VerificationInvalidTransition, "This action is not allowed in the submission's current status")
		case errors.Is(err, workflow.ErrEmptyReason):
			apperrors.BadRequest(c, apperrors.VerificationReasonRequired, "A rejection reason is required")
		case errors.Is(err, service.ErrConflict):
			apperrors.Conflict(c, apperrors.VerificationConflict, "The submission was updated by someone else. Reload and try again")
		default:
			log.Error("Workflow transition failed", err, map[string]interface{}{
				"submission_id": id,
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "apply transition")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"submission": submission})
}

// AuditLog lists staff actions, optionally for one submission
// GET /api/v1/admin/audit-logs
// GET /api/v1/admin/verifications/:id/audit-logs
func (ctrl *AdminController) AuditLog(c *gin.Context) {
	if c.Param("id") != "" {
		id, err := parseIDParam(c)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid submission ID")
			return
		}
		logs, err := ctrl.auditRepo.ListBySubmission(id)
		if err != nil {
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list audit logs")
			return
		}
		c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
		return
	}

	page, pageSize := parsePagination(c)
	logs, total, err := ctrl.auditRepo.List(page, pageSize)
	if err != nil {
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list audit logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"audit_logs": logs,
		"total":      total,
		"page":       page,
		"page_size":  pageSize,
	})
}

// Export streams an xlsx workbook of submissions
// GET /api/v1/admin/verifications/export
func (ctrl *AdminController) Export(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	status, ok := parseStatusQuery(c)
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Unknown status filter")
		return
	}

	workbook, err := ctrl.exportService.SubmissionsWorkbook(status)
	if err != nil {
		log.Error("Failed to build export workbook", err, nil)
		apperrors.InternalError(c, "Export failed. Please try again later")
		return
	}

	filename := fmt.Sprintf("verifications_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := workbook.Write(c.Writer); err != nil {
		log.Error("Failed to stream export workbook", err, nil)
	}
}
