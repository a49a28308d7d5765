package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/service"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/workflow"
	"github.com/tawtheeq/tawtheeq-backend/internal/db"
	"github.com/tawtheeq/tawtheeq-backend/internal/middleware"
	"github.com/tawtheeq/tawtheeq-backend/pkg/util"
	"gorm.io/gorm"
)

// memoryBlobStore satisfies storage.BlobStore without touching S3.
type memoryBlobStore struct {
	objects map[string][]byte
	counter int
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string][]byte{}}
}

func (m *memoryBlobStore) Put(ctx context.Context, folder, filename, contentType string, data []byte) (string, error) {
	m.counter++
	key := fmt.Sprintf("%s/%d_%s", folder, m.counter, filename)
	m.objects[key] = data
	return key, nil
}

func (m *memoryBlobStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryBlobStore) URLFor(key string) string {
	return "https://blobs.test/" + key
}

func (m *memoryBlobStore) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://blobs.test/" + key + "?signed", nil
}

type adminFixture struct {
	router *gin.Engine
	db     *gorm.DB
}

func setupAdminTest(t *testing.T) *adminFixture {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	blobs := newMemoryBlobStore()
	submissionRepo := repository.NewSubmissionRepository(testDB)
	auditRepo := repository.NewAuditLogRepository(testDB)
	engine := workflow.NewEngine(workflow.ModeFull)

	verificationService := service.NewVerificationService(submissionRepo, auditRepo, blobs, engine, nil, 5*1024*1024)
	queryService := service.NewQueryService(submissionRepo, nil)
	exportService := service.NewExportService(submissionRepo)

	adminCtrl := NewAdminController(verificationService, queryService, exportService, auditRepo, blobs)
	authMiddleware := middleware.NewAuthMiddleware(testSecret, false)

	router := gin.New()
	admin := router.Group("/admin")
	admin.Use(authMiddleware.Authenticate())
	{
		staff := admin.Group("")
		staff.Use(authMiddleware.RequireRole(model.RoleReviewer, model.RoleAdmin))
		{
			staff.GET("/verifications", adminCtrl.List)
			staff.GET("/verifications/stats", adminCtrl.Stats)
			staff.GET("/verifications/:id", adminCtrl.Show)
			staff.POST("/verifications/:id/start-review", adminCtrl.StartReview)
			staff.POST("/verifications/:id/verify", adminCtrl.Verify)
		}
		adminOnly := admin.Group("")
		adminOnly.Use(authMiddleware.RequireRole(model.RoleAdmin))
		{
			adminOnly.POST("/verifications/:id/approve", adminCtrl.Approve)
			adminOnly.POST("/verifications/:id/reject", adminCtrl.Reject)
			adminOnly.GET("/verifications/export", adminCtrl.Export)
			adminOnly.GET("/verifications/:id/audit-logs", adminCtrl.AuditLog)
		}
	}

	return &adminFixture{router: router, db: testDB}
}

func (f *adminFixture) seedSubmission(t *testing.T, idNumber string, status model.SubmissionStatus) *model.Submission {
	t.Helper()
	submission := &model.Submission{
		Gender:                  "male",
		FirstName:               "Khalid",
		LastName:                "Alotaibi",
		DateOfBirth:             time.Date(1992, 4, 17, 0, 0, 0, 0, time.UTC),
		IDNumber:                idNumber,
		IDFrontPath:             "verifications/ids/" + idNumber + ".jpg",
		LicenseFrontPath:        "verifications/licenses/" + idNumber + ".jpg",
		VehicleRegistrationPath: "verifications/vehicles/" + idNumber + ".jpg",
		SelfiePath:              "verifications/selfies/" + idNumber + ".jpg",
		LicenseExpiry:           time.Now().AddDate(2, 0, 0),
		VehicleSequenceNumber:   "778812345",
		Status:                  status,
	}
	require.NoError(t, f.db.Create(submission).Error)
	return submission
}

func staffToken(t *testing.T, userID uint, role model.UserRole) string {
	t.Helper()
	tokens, err := util.GenerateTokenPair(userID, fmt.Sprintf("staff%d@test.local", userID), string(role), testSecret, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return tokens.AccessToken
}

func (f *adminFixture) do(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAdminController_FullReviewFlow(t *testing.T) {
	f := setupAdminTest(t)
	submission := f.seedSubmission(t, "1045678900", model.StatusPending)

	reviewer := staffToken(t, 2, model.RoleReviewer)
	admin := staffToken(t, 1, model.RoleAdmin)

	path := fmt.Sprintf("/admin/verifications/%d", submission.ID)

	w := f.do(t, "POST", path+"/start-review", reviewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"under_review"`)

	w = f.do(t, "POST", path+"/verify", reviewer, VerifyRequest{ReviewerNotes: "documents legible"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"verified"`)

	w = f.do(t, "POST", path+"/approve", admin, ApproveRequest{PublicNotes: "welcome"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)

	// the trail records every step
	w = f.do(t, "GET", path+"/audit-logs", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "start_review")
	assert.Contains(t, w.Body.String(), "verify")
	assert.Contains(t, w.Body.String(), "approve")
}

func TestAdminController_ReviewerCannotDecide(t *testing.T) {
	f := setupAdminTest(t)
	submission := f.seedSubmission(t, "1045678901", model.StatusVerified)

	reviewer := staffToken(t, 2, model.RoleReviewer)
	path := fmt.Sprintf("/admin/verifications/%d", submission.ID)

	// the route gate blocks reviewers before the workflow engine is consulted
	w := f.do(t, "POST", path+"/approve", reviewer, ApproveRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "POST", path+"/reject", reviewer, RejectRequest{Reason: "bad documents"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminController_RejectRequiresReason(t *testing.T) {
	f := setupAdminTest(t)
	submission := f.seedSubmission(t, "1045678902", model.StatusVerified)

	admin := staffToken(t, 1, model.RoleAdmin)
	path := fmt.Sprintf("/admin/verifications/%d/reject", submission.ID)

	w := f.do(t, "POST", path, admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VERIFICATION_REASON_REQUIRED")
}

func TestAdminController_InvalidTransition(t *testing.T) {
	f := setupAdminTest(t)
	submission := f.seedSubmission(t, "1045678903", model.StatusPending)

	admin := staffToken(t, 1, model.RoleAdmin)

	// approve straight from pending is not legal in the full pipeline
	w := f.do(t, "POST", fmt.Sprintf("/admin/verifications/%d/approve", submission.ID), admin, ApproveRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "VERIFICATION_INVALID_TRANSITION")
}

func TestAdminController_ShowIncludesDocumentURLs(t *testing.T) {
	f := setupAdminTest(t)
	submission := f.seedSubmission(t, "1045678904", model.StatusPending)

	reviewer := staffToken(t, 2, model.RoleReviewer)
	w := f.do(t, "GET", fmt.Sprintf("/admin/verifications/%d", submission.ID), reviewer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Documents map[string]string `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	for _, field := range []string{"id_front", "license_front", "vehicle_registration", "selfie"} {
		assert.Contains(t, response.Documents, field)
		assert.Contains(t, response.Documents[field], "?signed")
	}
}

func TestAdminController_StatsAndList(t *testing.T) {
	f := setupAdminTest(t)
	f.seedSubmission(t, "1045678905", model.StatusPending)
	f.seedSubmission(t, "1045678906", model.StatusPending)
	f.seedSubmission(t, "1045678907", model.StatusApproved)

	reviewer := staffToken(t, 2, model.RoleReviewer)

	w := f.do(t, "GET", "/admin/verifications/stats", reviewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":3`)
	assert.Contains(t, w.Body.String(), `"pending":2`)

	w = f.do(t, "GET", "/admin/verifications?status=pending", reviewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)
}

func TestAdminController_Export(t *testing.T) {
	f := setupAdminTest(t)
	f.seedSubmission(t, "1045678908", model.StatusApproved)

	admin := staffToken(t, 1, model.RoleAdmin)
	w := f.do(t, "GET", "/admin/verifications/export", admin, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestAdminController_ApplicantBlockedEverywhere(t *testing.T) {
	f := setupAdminTest(t)
	f.seedSubmission(t, "1045678909", model.StatusPending)

	applicant := staffToken(t, 9, model.RoleApplicant)
	w := f.do(t, "GET", "/admin/verifications", applicant, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
