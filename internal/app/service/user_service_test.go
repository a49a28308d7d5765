package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/internal/db"
	"gorm.io/gorm"
)

type userFixture struct {
	db      *gorm.DB
	service UserService
	admin   *model.User
}

func setupUserTest(t *testing.T) *userFixture {
	t.Helper()

	database, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(database) })

	admin := &model.User{
		Email:        "admin@example.com",
		PasswordHash: "x",
		Name:         "Admin",
		Role:         model.RoleAdmin,
		Active:       true,
	}
	require.NoError(t, database.Create(admin).Error)

	return &userFixture{
		db: database,
		service: NewUserService(
			repository.NewUserRepository(database),
			repository.NewAuditLogRepository(database),
		),
		admin: admin,
	}
}

func (f *userFixture) auditCount(t *testing.T, action string, targetUserID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&model.AuditLog{}).
		Where("action = ? AND target_user_id = ?", action, targetUserID).
		Count(&count).Error)
	return count
}

func TestCreateStaff_CreatesReviewerWithAudit(t *testing.T) {
	f := setupUserTest(t)

	user, err := f.service.CreateStaff(f.admin, "reviewer@example.com", "reviewer1234", "Reviewer", model.RoleReviewer)
	require.NoError(t, err)

	assert.Equal(t, model.RoleReviewer, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "reviewer1234", user.PasswordHash)
	assert.Equal(t, int64(1), f.auditCount(t, ActionUserCreate, user.ID))
}

func TestCreateStaff_RejectsDuplicateEmail(t *testing.T) {
	f := setupUserTest(t)

	_, err := f.service.CreateStaff(f.admin, f.admin.Email, "reviewer1234", "Reviewer", model.RoleReviewer)
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestCreateStaff_RejectsUnknownRole(t *testing.T) {
	f := setupUserTest(t)

	_, err := f.service.CreateStaff(f.admin, "new@example.com", "password123", "New", model.UserRole("superuser"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestToggleActive_SuspendsAndReactivates(t *testing.T) {
	f := setupUserTest(t)

	target, err := f.service.CreateStaff(f.admin, "reviewer@example.com", "reviewer1234", "Reviewer", model.RoleReviewer)
	require.NoError(t, err)

	suspended, err := f.service.ToggleActive(f.admin, target.ID)
	require.NoError(t, err)
	assert.False(t, suspended.Active)

	restored, err := f.service.ToggleActive(f.admin, target.ID)
	require.NoError(t, err)
	assert.True(t, restored.Active)

	assert.Equal(t, int64(2), f.auditCount(t, ActionUserToggleActive, target.ID))
}

func TestToggleActive_RejectsOwnAccount(t *testing.T) {
	f := setupUserTest(t)

	_, err := f.service.ToggleActive(f.admin, f.admin.ID)
	assert.ErrorIs(t, err, ErrSelfModification)
}

func TestToggleActive_UnknownUser(t *testing.T) {
	f := setupUserTest(t)

	_, err := f.service.ToggleActive(f.admin, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateRole_PromotesReviewerWithAudit(t *testing.T) {
	f := setupUserTest(t)

	target, err := f.service.CreateStaff(f.admin, "reviewer@example.com", "reviewer1234", "Reviewer", model.RoleReviewer)
	require.NoError(t, err)

	updated, err := f.service.UpdateRole(f.admin, target.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)

	assert.Equal(t, int64(1), f.auditCount(t, ActionUserUpdateRole, target.ID))
}

func TestUpdateRole_SameRoleIsNoOp(t *testing.T) {
	f := setupUserTest(t)

	target, err := f.service.CreateStaff(f.admin, "reviewer@example.com", "reviewer1234", "Reviewer", model.RoleReviewer)
	require.NoError(t, err)

	updated, err := f.service.UpdateRole(f.admin, target.ID, model.RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, model.RoleReviewer, updated.Role)

	// Nothing changed, so nothing is audited.
	assert.Equal(t, int64(0), f.auditCount(t, ActionUserUpdateRole, target.ID))
}

func TestUpdateRole_RejectsOwnAccount(t *testing.T) {
	f := setupUserTest(t)

	_, err := f.service.UpdateRole(f.admin, f.admin.ID, model.RoleReviewer)
	assert.ErrorIs(t, err, ErrSelfModification)
}

func TestListUsers_Paginates(t *testing.T) {
	f := setupUserTest(t)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := f.service.CreateStaff(f.admin, email, "password123", "Staff", model.RoleReviewer)
		require.NoError(t, err)
	}

	users, total, err := f.service.List(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, users, 2)
}
