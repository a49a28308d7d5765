package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tawtheeq/tawtheeq-backend/config"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/controller"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/middleware"
)

type Router struct {
	authController         *controller.AuthController
	verificationController *controller.VerificationController
	adminController        *controller.AdminController
	userController         *controller.UserController
	wsController           *controller.WSController
	authMiddleware         *middleware.AuthMiddleware
	config                 *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	verificationController *controller.VerificationController,
	adminController *controller.AdminController,
	userController *controller.UserController,
	wsController *controller.WSController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:         authController,
		verificationController: verificationController,
		adminController:        adminController,
		userController:         userController,
		wsController:           wsController,
		authMiddleware:         authMiddleware,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "TAWTHEEQ API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
		}

		verifications := v1.Group("/verifications")
		{
			// Guests may submit; a valid token links the submission to the account
			verifications.POST("", r.authMiddleware.OptionalAuthenticate(), r.verificationController.Submit)
			verifications.GET("", r.authMiddleware.Authenticate(), r.verificationController.ListMine)
			verifications.GET("/:id", r.authMiddleware.Authenticate(), r.verificationController.Show)
		}

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.Authenticate())
		{
			staff := admin.Group("")
			staff.Use(r.authMiddleware.RequireRole(model.RoleReviewer, model.RoleAdmin))
			{
				staff.GET("/verifications", r.adminController.List)
				staff.GET("/verifications/stats", r.adminController.Stats)
				staff.GET("/verifications/:id", r.adminController.Show)
				staff.POST("/verifications/:id/start-review", r.adminController.StartReview)
				staff.POST("/verifications/:id/verify", r.adminController.Verify)
				staff.GET("/ws", r.wsController.Connect)
			}

			// Final decisions and audit trail access are admin-only
			adminOnly := admin.Group("")
			adminOnly.Use(r.authMiddleware.RequireRole(model.RoleAdmin))
			{
				adminOnly.POST("/verifications/:id/approve", r.adminController.Approve)
				adminOnly.POST("/verifications/:id/reject", r.adminController.Reject)
				adminOnly.GET("/verifications/export", r.adminController.Export)
				adminOnly.GET("/verifications/:id/audit-logs", r.adminController.AuditLog)
				adminOnly.GET("/audit-logs", r.adminController.AuditLog)

				adminOnly.GET("/users", r.userController.List)
				adminOnly.POST("/users", r.userController.Create)
				adminOnly.PATCH("/users/:id/toggle-active", r.userController.ToggleActive)
				adminOnly.PATCH("/users/:id/role", r.userController.UpdateRole)
			}
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
