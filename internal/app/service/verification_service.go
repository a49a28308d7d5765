package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/workflow"
	apperrors "github.com/tawtheeq/tawtheeq-backend/internal/errors"
	"github.com/tawtheeq/tawtheeq-backend/internal/storage"
	ws "github.com/tawtheeq/tawtheeq-backend/internal/websocket"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"github.com/tawtheeq/tawtheeq-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrDuplicateIDNumber  = errors.New("ID number has already been submitted")
	ErrConflict           = errors.New("submission was updated concurrently")
	ErrStorageFailure     = errors.New("document storage failed")
)

// ValidationError reports which submit fields failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d invalid field(s)", len(e.Fields))
}

var allowedImageTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
}

// Document is one uploaded file, held in memory until it is stored.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitInput carries everything an applicant provides in one submission.
type SubmitInput struct {
	Gender                string
	FirstName             string
	LastName              string
	DateOfBirth           time.Time
	IDNumber              string
	LicenseExpiry         time.Time
	VehicleSequenceNumber string
	ContactPhone          string

	IDFront             *Document
	LicenseFront        *Document
	VehicleRegistration *Document
	// SelfieData is a base64 data URL (data:image/jpeg;base64,...) captured
	// by the camera widget rather than a file upload.
	SelfieData string
}

type VerificationService interface {
	Submit(ctx context.Context, userID *uint, input SubmitInput) (*model.Submission, error)
	StartReview(submissionID uint, actor *model.User) (*model.Submission, error)
	Verify(submissionID uint, actor *model.User, reviewerNotes, internalNotes string) (*model.Submission, error)
	Approve(submissionID uint, actor *model.User, publicNotes, internalNotes string) (*model.Submission, error)
	Reject(submissionID uint, actor *model.User, reason, internalNotes string) (*model.Submission, error)
}

type verificationService struct {
	submissionRepo repository.SubmissionRepository
	auditRepo      repository.AuditLogRepository
	blobStore      storage.BlobStore
	engine         *workflow.Engine
	hub            *ws.Hub // nil when live updates are disabled (tests)
	maxFileSize    int64
}

func NewVerificationService(
	submissionRepo repository.SubmissionRepository,
	auditRepo repository.AuditLogRepository,
	blobStore storage.BlobStore,
	engine *workflow.Engine,
	hub *ws.Hub,
	maxFileSize int64,
) VerificationService {
	return &verificationService{
		submissionRepo: submissionRepo,
		auditRepo:      auditRepo,
		blobStore:      blobStore,
		engine:         engine,
		hub:            hub,
		maxFileSize:    maxFileSize,
	}
}

func (s *verificationService) Submit(ctx context.Context, userID *uint, input SubmitInput) (*model.Submission, error) {
	logger.Info("Processing verification submission", map[string]interface{}{
		"id_number": input.IDNumber,
		"guest":     userID == nil,
	})

	selfie, fields := s.validateSubmitInput(input)
	if len(fields) > 0 {
		logger.Warn("Submission failed validation", map[string]interface{}{
			"fields": fields,
		})
		return nil, &ValidationError{Fields: fields}
	}

	// ID numbers are unique table-wide, regardless of status: a rejected
	// submission still blocks reuse.
	exists, err := s.submissionRepo.ExistsByIDNumber(input.IDNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Warn("Submission rejected: duplicate ID number", map[string]interface{}{
			"id_number": input.IDNumber,
		})
		return nil, ErrDuplicateIDNumber
	}

	// Store all four documents before touching the database. If any upload
	// fails, delete what was stored so no orphaned blobs remain.
	var storedKeys []string
	store := func(folder string, doc *Document) (string, error) {
		key, err := s.blobStore.Put(ctx, folder, doc.Filename, doc.ContentType, doc.Data)
		if err != nil {
			return "", err
		}
		storedKeys = append(storedKeys, key)
		return key, nil
	}
	cleanup := func() {
		for _, key := range storedKeys {
			if err := s.blobStore.Delete(ctx, key); err != nil {
				logger.Error("Failed to clean up stored document", err, map[string]interface{}{
					"key": key,
				})
			}
		}
	}

	idFrontKey, err := store("verifications/ids", input.IDFront)
	if err == nil {
		_, err = store("verifications/licenses", input.LicenseFront)
	}
	if err == nil {
		_, err = store("verifications/vehicles", input.VehicleRegistration)
	}
	if err == nil {
		_, err = store("verifications/selfies", selfie)
	}
	if err != nil {
		logger.Error("Document upload failed, rolling back stored files", err, map[string]interface{}{
			"stored": len(storedKeys),
		})
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	licenseFrontKey := storedKeys[1]
	vehicleRegKey := storedKeys[2]
	selfieKey := storedKeys[3]

	submission := &model.Submission{
		UserID:                  userID,
		Gender:                  input.Gender,
		FirstName:               strings.TrimSpace(input.FirstName),
		LastName:                strings.TrimSpace(input.LastName),
		DateOfBirth:             input.DateOfBirth,
		IDNumber:                input.IDNumber,
		IDFrontPath:             idFrontKey,
		LicenseFrontPath:        licenseFrontKey,
		VehicleRegistrationPath: vehicleRegKey,
		SelfiePath:              selfieKey,
		LicenseExpiry:           input.LicenseExpiry,
		VehicleSequenceNumber:   strings.TrimSpace(input.VehicleSequenceNumber),
		ContactPhone:            input.ContactPhone,
		Status:                  model.StatusPending,
	}

	if err := s.submissionRepo.Create(submission); err != nil {
		// The record was never created; remove the documents it references.
		cleanup()
		if apperrors.IsDuplicateKey(err) {
			// lost a race with a concurrent submit of the same ID number
			return nil, ErrDuplicateIDNumber
		}
		return nil, err
	}

	logger.Info("Verification submission created", map[string]interface{}{
		"submission_id": submission.ID,
		"status":        submission.Status,
	})

	s.notify(ws.Event{
		Type:         ws.EventSubmissionCreated,
		SubmissionID: submission.ID,
		Status:       submission.Status,
		At:           time.Now(),
	})

	return submission, nil
}

func (s *verificationService) StartReview(submissionID uint, actor *model.User) (*model.Submission, error) {
	return s.applyTransition(submissionID, actor, workflow.TransitionStartReview, workflow.Payload{})
}

func (s *verificationService) Verify(submissionID uint, actor *model.User, reviewerNotes, internalNotes string) (*model.Submission, error) {
	return s.applyTransition(submissionID, actor, workflow.TransitionVerify, workflow.Payload{
		ReviewerNotes: reviewerNotes,
		InternalNotes: internalNotes,
	})
}

func (s *verificationService) Approve(submissionID uint, actor *model.User, publicNotes, internalNotes string) (*model.Submission, error) {
	return s.applyTransition(submissionID, actor, workflow.TransitionApprove, workflow.Payload{
		PublicNotes:   publicNotes,
		InternalNotes: internalNotes,
	})
}

func (s *verificationService) Reject(submissionID uint, actor *model.User, reason, internalNotes string) (*model.Submission, error) {
	return s.applyTransition(submissionID, actor, workflow.TransitionReject, workflow.Payload{
		Reason:        reason,
		InternalNotes: internalNotes,
	})
}

func (s *verificationService) applyTransition(submissionID uint, actor *model.User, transition workflow.Transition, payload workflow.Payload) (*model.Submission, error) {
	logger.Info("Applying workflow transition", map[string]interface{}{
		"submission_id": submissionID,
		"transition":    transition,
		"actor_id":      actor.ID,
		"actor_role":    actor.Role,
	})

	submission, err := s.submissionRepo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	decision, err := s.engine.Decide(submission, transition, actor.Role, actor.ID, payload, time.Now())
	if err != nil {
		logger.Warn("Transition refused", map[string]interface{}{
			"submission_id": submissionID,
			"transition":    transition,
			"status":        submission.Status,
			"actor_role":    actor.Role,
			"reason":        err.Error(),
		})
		return nil, err
	}

	if decision.NoOp {
		// Retry of an already-applied transition: succeed without writing
		// a second audit entry.
		logger.Info("Transition already applied, treating as no-op", map[string]interface{}{
			"submission_id": submissionID,
			"transition":    transition,
			"status":        submission.Status,
		})
		return submission, nil
	}

	if err := s.submissionRepo.ApplyTransition(submission.ID, decision.From, decision.Patch.Updates()); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrConflict
		}
		return nil, err
	}

	updated, err := s.submissionRepo.FindByID(submission.ID)
	if err != nil {
		return nil, err
	}

	// Audit failures are surfaced in the log but never roll back the
	// transition itself.
	s.audit(string(transition), actor.ID, submission.ID, payload)

	s.notify(ws.Event{
		Type:         ws.EventStatusChanged,
		SubmissionID: submission.ID,
		Status:       updated.Status,
		ActorID:      actor.ID,
		At:           time.Now(),
	})

	logger.Info("Workflow transition applied", map[string]interface{}{
		"submission_id": submission.ID,
		"transition":    transition,
		"from":          decision.From,
		"to":            updated.Status,
	})

	return updated, nil
}

func (s *verificationService) audit(action string, actorID, submissionID uint, payload workflow.Payload) {
	metadata := map[string]string{}
	if payload.Reason != "" {
		metadata["reason"] = payload.Reason
	}
	if payload.PublicNotes != "" {
		metadata["public_notes"] = payload.PublicNotes
	}
	if payload.ReviewerNotes != "" {
		metadata["reviewer_notes"] = payload.ReviewerNotes
	}
	encoded, _ := json.Marshal(metadata)

	entry := &model.AuditLog{
		Action:       action,
		ActorID:      actorID,
		SubmissionID: &submissionID,
		Metadata:     string(encoded),
	}
	if err := s.auditRepo.Append(entry); err != nil {
		logger.Warn("Audit event was not recorded", map[string]interface{}{
			"action":        action,
			"submission_id": submissionID,
			"error":         err.Error(),
		})
	}
}

func (s *verificationService) notify(event ws.Event) {
	if s.hub != nil {
		s.hub.Broadcast(event)
	}
}

// validateSubmitInput checks every field and decodes the selfie data URL.
// It collects all failures rather than stopping at the first one.
func (s *verificationService) validateSubmitInput(input SubmitInput) (*Document, map[string]string) {
	fields := map[string]string{}
	today := truncateToDay(time.Now())

	if input.Gender != "male" && input.Gender != "female" {
		fields["gender"] = "Gender must be male or female"
	}
	if strings.TrimSpace(input.FirstName) == "" {
		fields["first_name"] = "First name is required"
	}
	if strings.TrimSpace(input.LastName) == "" {
		fields["last_name"] = "Last name is required"
	}
	if input.DateOfBirth.IsZero() || !truncateToDay(input.DateOfBirth).Before(today) {
		fields["date_of_birth"] = "Date of birth must be in the past"
	}
	if !isDigits(input.IDNumber) || len(input.IDNumber) != 10 {
		fields["id_number"] = "ID number must be exactly 10 digits"
	}
	if input.LicenseExpiry.IsZero() || !truncateToDay(input.LicenseExpiry).After(today) {
		fields["license_expiry"] = "License expiry date must be in the future"
	}
	if strings.TrimSpace(input.VehicleSequenceNumber) == "" {
		fields["vehicle_sequence_number"] = "Vehicle sequence number is required"
	}
	if input.ContactPhone != "" && (!isDigits(input.ContactPhone) || len(input.ContactPhone) != 9) {
		fields["contact_phone"] = "Contact phone must be exactly 9 digits"
	}

	s.validateDocument(fields, "id_front", input.IDFront)
	s.validateDocument(fields, "license_front", input.LicenseFront)
	s.validateDocument(fields, "vehicle_registration", input.VehicleRegistration)

	selfie, selfieErr := s.decodeSelfie(input.SelfieData)
	if selfieErr != "" {
		fields["selfie"] = selfieErr
	}

	return selfie, fields
}

func (s *verificationService) validateDocument(fields map[string]string, name string, doc *Document) {
	if doc == nil || len(doc.Data) == 0 {
		fields[name] = "Document image is required"
		return
	}
	if err := storage.ValidateContentType(doc.ContentType, allowedImageTypes); err != nil {
		fields[name] = "Only image files are allowed (JPEG, PNG, WEBP)"
		return
	}
	if err := storage.ValidateFileSize(int64(len(doc.Data)), s.maxFileSize); err != nil {
		fields[name] = fmt.Sprintf("File must not exceed %d bytes", s.maxFileSize)
	}
}

// decodeSelfie turns a base64 data URL into a storable document.
func (s *verificationService) decodeSelfie(data string) (*Document, string) {
	if strings.TrimSpace(data) == "" {
		return nil, "Selfie is required"
	}

	// strip data URL prefix; browsers send spaces where '+' belongs
	payload := data
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	payload = strings.ReplaceAll(payload, " ", "+")

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "Selfie data is not valid base64"
	}
	if int64(len(decoded)) > s.maxFileSize {
		return nil, fmt.Sprintf("File must not exceed %d bytes", s.maxFileSize)
	}

	return &Document{
		Filename:    "selfie_" + util.RandomHex(20) + ".jpg",
		ContentType: "image/jpeg",
		Data:        decoded,
	}, ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
