package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/db"
	"gorm.io/gorm"
)

func setupSubmissionRepo(t *testing.T) (SubmissionRepository, *gorm.DB) {
	t.Helper()

	database, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(database) })

	return NewSubmissionRepository(database), database
}

func newSubmission(idNumber string, status model.SubmissionStatus) *model.Submission {
	return &model.Submission{
		Gender:                  "male",
		FirstName:               "Saad",
		LastName:                "Almutairi",
		DateOfBirth:             time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC),
		IDNumber:                idNumber,
		IDFrontPath:             "verifications/ids/" + idNumber + ".jpg",
		LicenseFrontPath:        "verifications/licenses/" + idNumber + ".jpg",
		VehicleRegistrationPath: "verifications/vehicles/" + idNumber + ".jpg",
		SelfiePath:              "verifications/selfies/" + idNumber + ".jpg",
		LicenseExpiry:           time.Now().AddDate(1, 0, 0),
		VehicleSequenceNumber:   "123456789",
		Status:                  status,
	}
}

func TestSubmissionRepository_CreateAndFind(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	submission := newSubmission("1012345678", model.StatusPending)
	require.NoError(t, repo.Create(submission))
	require.NotZero(t, submission.ID)

	found, err := repo.FindByID(submission.ID)
	require.NoError(t, err)
	assert.Equal(t, "1012345678", found.IDNumber)
	assert.Equal(t, model.StatusPending, found.Status)

	_, err = repo.FindByID(99999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepository_UniqueIDNumber(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	require.NoError(t, repo.Create(newSubmission("1012345678", model.StatusRejected)))

	// the unique index holds regardless of the existing row's status
	err := repo.Create(newSubmission("1012345678", model.StatusPending))
	assert.Error(t, err)
}

func TestSubmissionRepository_ExistsByIDNumber(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	require.NoError(t, repo.Create(newSubmission("1012345678", model.StatusRejected)))

	exists, err := repo.ExistsByIDNumber("1012345678")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByIDNumber("1087654321")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSubmissionRepository_ApplyTransition(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	submission := newSubmission("1012345678", model.StatusPending)
	require.NoError(t, repo.Create(submission))

	err := repo.ApplyTransition(submission.ID, model.StatusPending, map[string]interface{}{
		"status": model.StatusUnderReview,
	})
	require.NoError(t, err)

	updated, err := repo.FindByID(submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnderReview, updated.Status)
}

func TestSubmissionRepository_ApplyTransitionStaleStatus(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	submission := newSubmission("1012345678", model.StatusPending)
	require.NoError(t, repo.Create(submission))

	// a writer that still believes the row is under_review loses
	err := repo.ApplyTransition(submission.ID, model.StatusUnderReview, map[string]interface{}{
		"status": model.StatusVerified,
	})
	assert.ErrorIs(t, err, ErrStaleStatus)

	current, err := repo.FindByID(submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, current.Status)
}

func TestSubmissionRepository_ApplyTransitionWritesDecisionFields(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	submission := newSubmission("1012345678", model.StatusVerified)
	require.NoError(t, repo.Create(submission))

	reviewedBy := uint(7)
	reviewedAt := time.Now().Truncate(time.Second)
	err := repo.ApplyTransition(submission.ID, model.StatusVerified, map[string]interface{}{
		"status":       model.StatusRejected,
		"public_notes": "license expired",
		"reviewed_by":  reviewedBy,
		"reviewed_at":  reviewedAt,
	})
	require.NoError(t, err)

	updated, err := repo.FindByID(submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, updated.Status)
	assert.Equal(t, "license expired", updated.PublicNotes)
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, reviewedBy, *updated.ReviewedBy)
	require.NotNil(t, updated.ReviewedAt)
}

func TestSubmissionRepository_ListFilters(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	userA := uint(10)
	userB := uint(20)

	a := newSubmission("1000000001", model.StatusPending)
	a.UserID = &userA
	b := newSubmission("1000000002", model.StatusApproved)
	b.UserID = &userA
	c := newSubmission("1000000003", model.StatusPending)
	c.UserID = &userB
	for _, s := range []*model.Submission{a, b, c} {
		require.NoError(t, repo.Create(s))
	}

	all, total, err := repo.List(SubmissionFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	pending := model.StatusPending
	filtered, total, err := repo.List(SubmissionFilter{Status: &pending, UserID: &userA}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, filtered, 1)
	assert.Equal(t, "1000000001", filtered[0].IDNumber)
}

func TestSubmissionRepository_Stats(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	userA := uint(10)
	statuses := []model.SubmissionStatus{
		model.StatusPending, model.StatusPending,
		model.StatusUnderReview,
		model.StatusApproved,
		model.StatusRejected,
	}
	for i, status := range statuses {
		s := newSubmission(fmt.Sprintf("10000000%02d", i), status)
		if i < 2 {
			s.UserID = &userA
		}
		require.NoError(t, repo.Create(s))
	}

	stats, err := repo.Stats(SubmissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.UnderReview)
	assert.Equal(t, int64(1), stats.Approved)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Zero(t, stats.Verified)

	scoped, err := repo.Stats(SubmissionFilter{UserID: &userA})
	require.NoError(t, err)
	assert.Equal(t, int64(2), scoped.Total)
	assert.Equal(t, int64(2), scoped.Pending)
}

func TestSubmissionRepository_EachBatchWalksAllRows(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(newSubmission(fmt.Sprintf("10000000%02d", i), model.StatusPending)))
	}

	var batches int
	var seen []string
	err := repo.EachBatch(SubmissionFilter{}, 2, func(batch []model.Submission) error {
		batches++
		for _, s := range batch {
			seen = append(seen, s.IDNumber)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, batches)
	assert.Len(t, seen, 5)
}

func TestSubmissionRepository_EachBatchIgnoresListClamp(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	// 120 rows is more than a single clamped List page can return.
	for i := 0; i < 120; i++ {
		require.NoError(t, repo.Create(newSubmission(fmt.Sprintf("20000%05d", i), model.StatusPending)))
	}

	var total int
	err := repo.EachBatch(SubmissionFilter{}, 500, func(batch []model.Submission) error {
		total += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 120, total)
}

func TestSubmissionRepository_EachBatchAppliesStatusFilter(t *testing.T) {
	repo, _ := setupSubmissionRepo(t)

	require.NoError(t, repo.Create(newSubmission("1000000001", model.StatusPending)))
	require.NoError(t, repo.Create(newSubmission("1000000002", model.StatusApproved)))
	require.NoError(t, repo.Create(newSubmission("1000000003", model.StatusApproved)))

	approved := model.StatusApproved
	var total int
	err := repo.EachBatch(SubmissionFilter{Status: &approved}, 10, func(batch []model.Submission) error {
		total += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
