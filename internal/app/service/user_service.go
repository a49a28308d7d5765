package service

import (
	"encoding/json"
	"errors"

	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	apperrors "github.com/tawtheeq/tawtheeq-backend/internal/errors"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"github.com/tawtheeq/tawtheeq-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrInvalidRole      = errors.New("unknown user role")
	ErrSelfModification = errors.New("administrators cannot suspend or demote their own account")
)

// Audit actions for account management.
const (
	ActionUserCreate       = "user_create"
	ActionUserToggleActive = "user_toggle_active"
	ActionUserUpdateRole   = "user_update_role"
)

var validRoles = map[model.UserRole]bool{
	model.RoleApplicant: true,
	model.RoleReviewer:  true,
	model.RoleAdmin:     true,
}

// UserService is the admin-only account management surface: only here can
// staff accounts be created, suspended, or change role.
type UserService interface {
	List(page, pageSize int) ([]model.User, int64, error)
	CreateStaff(actor *model.User, email, password, name string, role model.UserRole) (*model.User, error)
	ToggleActive(actor *model.User, userID uint) (*model.User, error)
	UpdateRole(actor *model.User, userID uint, role model.UserRole) (*model.User, error)
}

type userService struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditLogRepository
}

func NewUserService(userRepo repository.UserRepository, auditRepo repository.AuditLogRepository) UserService {
	return &userService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
	}
}

func (s *userService) List(page, pageSize int) ([]model.User, int64, error) {
	return s.userRepo.List(page, pageSize)
}

func (s *userService) CreateStaff(actor *model.User, email, password, name string, role model.UserRole) (*model.User, error) {
	logger.Info("Creating account", map[string]interface{}{
		"email":    email,
		"role":     role,
		"actor_id": actor.ID,
	})

	if !validRoles[role] {
		return nil, ErrInvalidRole
	}

	existing, err := s.userRepo.FindByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err, nil)
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Active:       true,
	}
	if err := s.userRepo.Create(user); err != nil {
		if apperrors.IsDuplicateKey(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	s.audit(ActionUserCreate, actor.ID, user.ID, map[string]string{
		"email": user.Email,
		"role":  string(user.Role),
	})

	logger.Info("Account created", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, nil
}

func (s *userService) ToggleActive(actor *model.User, userID uint) (*model.User, error) {
	// An admin locking out their own account would leave no one to undo it.
	if actor.ID == userID {
		return nil, ErrSelfModification
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.Active = !user.Active
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	action := "suspended"
	if user.Active {
		action = "reactivated"
	}
	s.audit(ActionUserToggleActive, actor.ID, user.ID, map[string]string{
		"result": action,
	})

	logger.Info("Account status toggled", map[string]interface{}{
		"user_id": user.ID,
		"active":  user.Active,
		"actor":   actor.ID,
	})
	return user, nil
}

func (s *userService) UpdateRole(actor *model.User, userID uint, role model.UserRole) (*model.User, error) {
	if !validRoles[role] {
		return nil, ErrInvalidRole
	}
	if actor.ID == userID {
		return nil, ErrSelfModification
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	previous := user.Role
	if previous == role {
		return user, nil
	}

	user.Role = role
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	s.audit(ActionUserUpdateRole, actor.ID, user.ID, map[string]string{
		"from": string(previous),
		"to":   string(role),
	})

	logger.Info("Account role updated", map[string]interface{}{
		"user_id": user.ID,
		"from":    previous,
		"to":      role,
		"actor":   actor.ID,
	})
	return user, nil
}

// audit records the account action; failures are logged and never block the
// change itself, same as workflow auditing.
func (s *userService) audit(action string, actorID, targetUserID uint, metadata map[string]string) {
	encoded, _ := json.Marshal(metadata)
	entry := &model.AuditLog{
		Action:       action,
		ActorID:      actorID,
		TargetUserID: &targetUserID,
		Metadata:     string(encoded),
	}
	if err := s.auditRepo.Append(entry); err != nil {
		logger.Warn("Audit event was not recorded", map[string]interface{}{
			"action":         action,
			"target_user_id": targetUserID,
			"error":          err.Error(),
		})
	}
}
