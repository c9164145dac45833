package database

import (
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.Timer{},
		&models.CacheEntry{},
	)
}

// SeedData ensures a default organization exists on first boot so the admin
// dashboard is not empty. Existing installations are left untouched.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Organization{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	demo := models.Organization{
		Name:   "Example Client",
		Active: false,
	}
	return db.Create(&demo).Error
}
