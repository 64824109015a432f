package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/services"
	authutil "github.com/creatorlift/creatorlift-api/utils/auth"
)

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron       *cron.Cron
	db         *gorm.DB
	sessions   *services.SessionService
	lockouts   *services.LockoutService
	rateLimits *services.RateLimitService
	blacklist  *authutil.BlacklistService
	events     *services.SecurityEventService
}

// NewCronManager creates a new cron manager
func NewCronManager(
	db *gorm.DB,
	sessions *services.SessionService,
	lockouts *services.LockoutService,
	rateLimits *services.RateLimitService,
	blacklist *authutil.BlacklistService,
	events *services.SecurityEventService,
) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:       c,
		db:         db,
		sessions:   sessions,
		lockouts:   lockouts,
		rateLimits: rateLimits,
		blacklist:  blacklist,
		events:     events,
	}
}

// Start registers and starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every hour: expire stale lockouts and blacklist entries
	_, err := m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("expire_security_records")
		m.ExpireSecurityRecords()
	})
	if err != nil {
		return err
	}

	// 2. Every 6 hours: prune old rate-limit rows
	_, err = m.cron.AddFunc("0 0 */6 * * *", func() {
		m.logJobStart("cleanup_rate_limits")
		m.CleanupRateLimits()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: prune expired sessions, refresh tokens and old events
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("cleanup_sessions_and_events")
		m.CleanupSessionsAndEvents()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	now := time.Now()
	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "completed",
			"completed_at": now,
			"message":      message,
		})
}

// logJobError logs a cron job failure
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
