package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/database"
	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/auth"
)

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func testJWTManager() *auth.JWTManager {
	return auth.NewJWTManager(auth.JWTConfig{
		Secret: "test-secret-key-for-unit-tests",
		Expiry: 15 * time.Minute,
		Issuer: "creatorlift-test",
	})
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		PasswordHash: "$2a$12$notarealhashnotarealhashnotarealhashnotarealha",
		Name:         "Test User",
		Role:         "creator",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func newTestSessionService(db *gorm.DB, config SessionConfig) *SessionService {
	events := NewSecurityEventService(db)
	return NewSessionService(db, testJWTManager(), events, config)
}
