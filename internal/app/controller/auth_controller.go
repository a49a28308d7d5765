package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/service"
	apperrors "github.com/tawtheeq/tawtheeq-backend/internal/errors"
	"github.com/tawtheeq/tawtheeq-backend/internal/middleware"
	"github.com/tawtheeq/tawtheeq-backend/pkg/redis"
	"github.com/tawtheeq/tawtheeq-backend/pkg/util"
)

type AuthController struct {
	authService    service.AuthService
	jwtSecret      string
	accessExpiry   time.Duration
	blacklistToken bool // requires an initialized redis client
}

func NewAuthController(authService service.AuthService, jwtSecret string, accessExpiry time.Duration, blacklistToken bool) *AuthController {
	return &AuthController{
		authService:    authService,
		jwtSecret:      jwtSecret,
		accessExpiry:   accessExpiry,
		blacklistToken: blacklistToken,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func userPayload(user *model.User) gin.H {
	return gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"phone": user.Phone,
		"role":  user.Role,
	}
}

// Register handles user registration
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Registration details are invalid")
		return
	}

	user, tokens, err := ctrl.authService.Register(req.Email, req.Password, req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			log.Warn("Registration failed: email already exists", map[string]interface{}{
				"email": req.Email,
			})
			apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "This email is already registered")
			return
		}
		log.Error("Registration failed", err, map[string]interface{}{
			"email": req.Email,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "register user")
		return
	}

	log.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    userPayload(user),
		"tokens":  tokens,
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Email and password are required")
		return
	}

	user, tokens, err := ctrl.authService.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			log.Warn("Login failed: invalid credentials", map[string]interface{}{
				"email": req.Email,
			})
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "Invalid email or password")
		case errors.Is(err, service.ErrAccountSuspended):
			log.Warn("Login refused: account suspended", map[string]interface{}{
				"email": req.Email,
			})
			apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthAccountSuspended, "This account has been suspended")
		default:
			log.Error("Login failed", err, map[string]interface{}{
				"email": req.Email,
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "login")
		}
		return
	}

	log.Info("User logged in", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})

	c.JSON(http.StatusOK, gin.H{
		"user":   userPayload(user),
		"tokens": tokens,
	})
}

// Me returns the authenticated user's profile
// GET /api/v1/auth/me
func (ctrl *AuthController) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	user, err := ctrl.authService.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, apperrors.ResourceNotFound, "User not found")
			return
		}
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userPayload(user)})
}

// Logout revokes the presented access token
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if !ctrl.blacklistToken {
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		return
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		apperrors.Unauthorized(c, "")
		return
	}
	token := parts[1]

	// Blacklist for the remaining token lifetime; after expiry the entry is
	// useless anyway.
	ttl := ctrl.accessExpiry
	if claims, err := util.ValidateToken(token, ctrl.jwtSecret); err == nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}

	if err := redis.BlacklistToken(c.Request.Context(), token, ttl); err != nil {
		log.Error("Failed to blacklist token", err, nil)
		apperrors.InternalError(c, "")
		return
	}

	userID, _ := middleware.GetUserID(c)
	log.Info("User logged out", map[string]interface{}{
		"user_id": userID,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
