package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Initialize database connection using GORM
	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	gormDB := store.GetDB().(*gorm.DB)

	if err := database.SeedAdminUser(gormDB); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	fmt.Println("Seeding completed.")
	fmt.Println("Admin user created from ADMIN_EMAIL and ADMIN_PASSWORD environment variables.")
	fmt.Println("If not set, admin user creation is skipped.")
}
