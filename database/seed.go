package database

import (
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/auth"
)

// SeedAdminUser creates the initial admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD if no user with that email exists yet. A missing env pair
// skips seeding silently so production deploys can manage admins themselves.
func SeedAdminUser(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         "admin",
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Seeded admin user %s", email)
	return nil
}
