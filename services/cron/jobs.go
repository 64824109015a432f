package cron

import (
	"context"
	"fmt"
	"time"
)

const eventRetention = 90 * 24 * time.Hour

// ExpireSecurityRecords clears lapsed account lockouts and expired
// blacklist entries. Runs hourly.
func (m *CronManager) ExpireSecurityRecords() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "expire_security_records"

	lockouts, err := m.lockouts.ClearExpiredLockouts(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clear expired lockouts: %w", err))
		return
	}

	tokens, err := m.blacklist.CleanupExpiredTokens(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clean expired blacklist entries: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Cleared %d lockouts, %d blacklist entries", lockouts, tokens))
}

// CleanupRateLimits prunes rate-limit rows older than the retention
// window that are not currently blocked. Runs every 6 hours.
func (m *CronManager) CleanupRateLimits() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_rate_limits"

	removed, err := m.rateLimits.CleanupOldRecords(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to prune rate limit records: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Pruned %d rate limit records", removed))
}

// CleanupSessionsAndEvents removes expired refresh tokens, idle
// sessions and old security events. Runs daily.
func (m *CronManager) CleanupSessionsAndEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_sessions_and_events"

	tokens, sessions, err := m.sessions.CleanupExpired(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clean sessions: %w", err))
		return
	}

	events, err := m.events.CleanupOldEvents(ctx, eventRetention)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clean security events: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf(
		"Removed %d refresh tokens, %d sessions, %d security events", tokens, sessions, events))
}
