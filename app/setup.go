package app

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/api"
	"github.com/creatorlift/creatorlift-api/config"
	"github.com/creatorlift/creatorlift-api/database"
	"github.com/creatorlift/creatorlift-api/router"
	"github.com/creatorlift/creatorlift-api/services/cron"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		store.Close()
		return fmt.Errorf("failed to get GORM DB instance")
	}

	// Seed the admin account when configured
	if err := database.SeedAdminUser(db); err != nil {
		print("Warning: Failed to seed admin user\n")
	}

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes (also builds the service graph)
	svc := router.SetupRoutes(app, store, getEnv)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(db, svc.Sessions, svc.Lockouts, svc.RateLimits, svc.Blacklist, svc.Events)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Get the PORT & Start the Server
	return server.Run()

}
