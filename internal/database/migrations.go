package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kyle-bartlett/job-ops-sub000/internal/domain"
)

// AutoMigrate runs automatic migrations for all domain models.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	// Migration order matters because of foreign keys.
	models := []interface{}{
		&domain.Job{},              // jobs first
		&domain.TracerLink{},       // links reference jobs
		&domain.TracerClickEvent{}, // click events reference links
	}

	for _, model := range models {
		modelName := fmt.Sprintf("%T", model)
		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model", zap.String("model", modelName), zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}
		log.Info("model migrated", zap.String("model", modelName))
	}

	log.Info("database auto-migration completed", zap.Int("migrated_models", len(models)))
	return nil
}

// SeedData creates a couple of sample jobs for local development so the
// rewrite and analytics endpoints have something to point at.
func SeedData(db *gorm.DB, log *zap.Logger) error {
	var count int64
	db.Model(&domain.Job{}).Count(&count)
	if count > 0 {
		log.Info("jobs already exist, skipping seeding", zap.Int64("existing_count", count))
		return nil
	}

	jobs := []domain.Job{
		{
			ID:                 "job-sample-backend",
			Title:              "Senior Backend Engineer",
			Employer:           "Acme Corp",
			TracerLinksEnabled: true,
		},
		{
			ID:                 "job-sample-platform",
			Title:              "Platform Engineer",
			Employer:           "Initech",
			TracerLinksEnabled: false,
		},
	}

	if err := db.Create(&jobs).Error; err != nil {
		log.Error("failed to seed jobs", zap.Error(err))
		return fmt.Errorf("failed to seed jobs: %w", err)
	}

	log.Info("database seeding completed", zap.Int("jobs_created", len(jobs)))
	return nil
}
