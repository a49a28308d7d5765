package controller

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/service"
	apperrors "github.com/tawtheeq/tawtheeq-backend/internal/errors"
	"github.com/tawtheeq/tawtheeq-backend/internal/middleware"
	"github.com/tawtheeq/tawtheeq-backend/internal/storage"
)

const dateLayout = "2006-01-02"

type VerificationController struct {
	verificationService service.VerificationService
	queryService        service.QueryService
	blobStore           storage.BlobStore
}

func NewVerificationController(
	verificationService service.VerificationService,
	queryService service.QueryService,
	blobStore storage.BlobStore,
) *VerificationController {
	return &VerificationController{
		verificationService: verificationService,
		queryService:        queryService,
		blobStore:           blobStore,
	}
}

// SubmitForm is the multipart submission payload. Document images arrive as
// file parts; the selfie arrives as a base64 data URL from the camera widget.
type SubmitForm struct {
	Gender                string                `form:"gender" binding:"required"`
	FirstName             string                `form:"first_name" binding:"required"`
	LastName              string                `form:"last_name" binding:"required"`
	DateOfBirth           string                `form:"date_of_birth" binding:"required"`
	IDNumber              string                `form:"id_number" binding:"required"`
	LicenseExpiry         string                `form:"license_expiry" binding:"required"`
	VehicleSequenceNumber string                `form:"vehicle_sequence_number" binding:"required"`
	ContactPhone          string                `form:"contact_phone"`
	SelfieData            string                `form:"selfie_data" binding:"required"`
	IDFront               *multipart.FileHeader `form:"id_front" binding:"required"`
	LicenseFront          *multipart.FileHeader `form:"license_front" binding:"required"`
	VehicleRegistration   *multipart.FileHeader `form:"vehicle_registration" binding:"required"`
}

func readDocument(header *multipart.FileHeader) (*service.Document, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &service.Document{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Submit handles a new verification submission
// POST /api/v1/verifications
func (ctrl *VerificationController) Submit(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var form SubmitForm
	if err := c.ShouldBind(&form); err != nil {
		log.Warn("Invalid submission form", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Submission form is incomplete")
		return
	}

	dateOfBirth, dobErr := time.Parse(dateLayout, form.DateOfBirth)
	licenseExpiry, expiryErr := time.Parse(dateLayout, form.LicenseExpiry)
	if dobErr != nil || expiryErr != nil {
		fields := map[string]string{}
		if dobErr != nil {
			fields["date_of_birth"] = "Date must use the YYYY-MM-DD format"
		}
		if expiryErr != nil {
			fields["license_expiry"] = "Date must use the YYYY-MM-DD format"
		}
		apperrors.RespondWithValidationError(c, fields)
		return
	}

	input := service.SubmitInput{
		Gender:                form.Gender,
		FirstName:             form.FirstName,
		LastName:              form.LastName,
		DateOfBirth:           dateOfBirth,
		IDNumber:              form.IDNumber,
		LicenseExpiry:         licenseExpiry,
		VehicleSequenceNumber: form.VehicleSequenceNumber,
		ContactPhone:          form.ContactPhone,
		SelfieData:            form.SelfieData,
	}

	docs := []struct {
		header *multipart.FileHeader
		target **service.Document
		field  string
	}{
		{form.IDFront, &input.IDFront, "id_front"},
		{form.LicenseFront, &input.LicenseFront, "license_front"},
		{form.VehicleRegistration, &input.VehicleRegistration, "vehicle_registration"},
	}
	for _, d := range docs {
		doc, err := readDocument(d.header)
		if err != nil {
			log.Error("Failed to read uploaded document", err, map[string]interface{}{
				"field": d.field,
			})
			apperrors.BadRequest(c, apperrors.UploadFailed, "Uploaded file could not be read")
			return
		}
		*d.target = doc
	}

	// Authenticated applicants get their account linked; guests submit anonymously.
	var userID *uint
	if id, ok := middleware.GetUserID(c); ok {
		userID = &id
	}

	submission, err := ctrl.verificationService.Submit(c.Request.Context(), userID, input)
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			apperrors.RespondWithValidationError(c, validationErr.Fields)
		case errors.Is(err, service.ErrDuplicateIDNumber):
			apperrors.Conflict(c, apperrors.VerificationDuplicateIDNumber, "This ID number has already been submitted")
		case errors.Is(err, service.ErrStorageFailure):
			apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.InternalStorageError, "Document upload failed. Please try again later")
		default:
			log.Error("Submission failed", err, nil)
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "submit verification")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Verification submitted successfully",
		"submission": submission,
	})
}

// Show returns one submission visible to the authenticated user
// GET /api/v1/verifications/:id
func (ctrl *VerificationController) Show(c *gin.Context) {
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

	// Applicants can re-view the documents they uploaded
	documents := gin.H{
		"id_front":             ctrl.blobStore.URLFor(submission.IDFrontPath),
		"license_front":        ctrl.blobStore.URLFor(submission.LicenseFrontPath),
		"vehicle_registration": ctrl.blobStore.URLFor(submission.VehicleRegistrationPath),
		"selfie":               ctrl.blobStore.URLFor(submission.SelfiePath),
	}

	c.JSON(http.StatusOK, gin.H{
		"submission": submission,
		"documents":  documents,
	})
}

// ListMine returns the authenticated user's own submissions
// GET /api/v1/verifications
func (ctrl *VerificationController) ListMine(c *gin.Context) {
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

// actorFromContext rebuilds the acting user from the auth middleware claims.
// Services only need ID and role for scoping decisions.
func actorFromContext(c *gin.Context) (*model.User, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return nil, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		return nil, false
	}
	email, _ := middleware.GetUserEmail(c)
	return &model.User{ID: userID, Email: email, Role: role}, true
}

func parseIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

var knownStatuses = map[model.SubmissionStatus]bool{
	model.StatusPending:     true,
	model.StatusUnderReview: true,
	model.StatusVerified:    true,
	model.StatusApproved:    true,
	model.StatusRejected:    true,
}

func parseStatusQuery(c *gin.Context) (*model.SubmissionStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status := model.SubmissionStatus(raw)
	if !knownStatuses[status] {
		return nil, false
	}
	return &status, true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
