package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/service"
	apperrors "github.com/tawtheeq/tawtheeq-backend/internal/errors"
)

// UserController exposes account management to administrators.
type UserController struct {
	userService service.UserService
}

func NewUserController(userService service.UserService) *UserController {
	return &UserController{userService: userService}
}

type CreateStaffRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// List returns all accounts, paginated
// GET /api/v1/admin/users
func (ctrl *UserController) List(c *gin.Context) {
	page, pageSize := parsePagination(c)

	users, total, err := ctrl.userService.List(page, pageSize)
	if err != nil {
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list users")
		return
	}

	payloads := make([]gin.H, 0, len(users))
	for i := range users {
		payloads = append(payloads, accountPayload(&users[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"users":     payloads,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Create registers a staff account on behalf of an administrator
// POST /api/v1/admin/users
func (ctrl *UserController) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return
	}

	user, err := ctrl.userService.CreateStaff(actor, req.Email, req.Password, req.Name, model.UserRole(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			apperrors.BadRequest(c, apperrors.UserInvalidRole, "Unknown role")
		case errors.Is(err, service.ErrEmailAlreadyExists):
			apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "Email is already registered")
		default:
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "create user")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": accountPayload(user)})
}

// ToggleActive suspends an active account or reactivates a suspended one
// PATCH /api/v1/admin/users/:id/toggle-active
func (ctrl *UserController) ToggleActive(c *gin.Context) {
	ctrl.mutate(c, func(actor *model.User, userID uint) (*model.User, error) {
		return ctrl.userService.ToggleActive(actor, userID)
	})
}

// UpdateRole changes an account's role
// PATCH /api/v1/admin/users/:id/role
func (ctrl *UserController) UpdateRole(c *gin.Context) {
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return
	}

	ctrl.mutate(c, func(actor *model.User, userID uint) (*model.User, error) {
		return ctrl.userService.UpdateRole(actor, userID, model.UserRole(req.Role))
	})
}

// mutate shares the id parsing and error mapping between account mutations.
func (ctrl *UserController) mutate(c *gin.Context, apply func(actor *model.User, userID uint) (*model.User, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	userID, err := parseIDParam(c)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid user ID")
		return
	}

	user, err := apply(actor, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, apperrors.UserNotFound, "User not found")
		case errors.Is(err, service.ErrSelfModification):
			apperrors.Conflict(c, apperrors.UserSelfModification, "You cannot change your own account status or role")
		case errors.Is(err, service.ErrInvalidRole):
			apperrors.BadRequest(c, apperrors.UserInvalidRole, "Unknown role")
		default:
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "update user")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountPayload(user)})
}

func accountPayload(user *model.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"phone":      user.Phone,
		"role":       user.Role,
		"active":     user.Active,
		"created_at": user.CreatedAt,
	}
}
