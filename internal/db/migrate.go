package db

import (
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"github.com/tawtheeq/tawtheeq-backend/pkg/util"
)

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := []interface{}{
		&model.User{},
		&model.Submission{},
		&model.AuditLog{},
	}

	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed ensures the bootstrap staff accounts exist. Safe to run repeatedly.
func Seed() error {
	logger.Info("Seeding initial data...")

	accounts := []struct {
		email    string
		name     string
		role     model.UserRole
		password string
	}{
		{"admin@tawtheeq.local", "Administrator", model.RoleAdmin, "admin1234"},
		{"reviewer@tawtheeq.local", "Reviewer", model.RoleReviewer, "reviewer1234"},
	}

	for _, a := range accounts {
		var count int64
		if err := DB.Model(&model.User{}).Where("email = ?", a.email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		hash, err := util.HashPassword(a.password)
		if err != nil {
			return err
		}
		user := &model.User{
			Email:        a.email,
			PasswordHash: hash,
			Name:         a.name,
			Role:         a.role,
			Active:       true,
		}
		if err := DB.Create(user).Error; err != nil {
			logger.Error("Failed to seed account", err, map[string]interface{}{
				"email": a.email,
			})
			return err
		}
		logger.Info("Seeded account", map[string]interface{}{
			"email": a.email,
			"role":  a.role,
		})
	}

	logger.Info("Initial data seeded successfully")
	return nil
}
