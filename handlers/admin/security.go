package admin

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/services"
	authutil "github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
	"github.com/creatorlift/creatorlift-api/utils/response"
	"github.com/creatorlift/creatorlift-api/utils/validation"
)

// SecurityHandler exposes the admin security surface: lockout and IP
// block management plus revocation and rate-limit statistics. Every
// mutating action writes an admin audit log row.
type SecurityHandler struct {
	db         *gorm.DB
	lockouts   *services.LockoutService
	rateLimits *services.RateLimitService
	blacklist  *authutil.BlacklistService
	validator  *validation.Validator
}

// NewSecurityHandler creates a new admin security handler
func NewSecurityHandler(
	db *gorm.DB,
	lockouts *services.LockoutService,
	rateLimits *services.RateLimitService,
	blacklist *authutil.BlacklistService,
) *SecurityHandler {
	return &SecurityHandler{
		db:         db,
		lockouts:   lockouts,
		rateLimits: rateLimits,
		blacklist:  blacklist,
		validator:  validation.NewValidator(),
	}
}

// audit records an admin action. Audit failures are swallowed so they
// never block the action itself.
func (h *SecurityHandler) audit(c *fiber.Ctx, action, resource, resourceKey string, details map[string]interface{}) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		return
	}

	var raw datatypes.JSON
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			raw = datatypes.JSON(b)
		}
	}

	h.db.WithContext(c.Context()).Create(&model.AdminAuditLog{
		AdminID:     adminID,
		Action:      action,
		Resource:    resource,
		ResourceKey: resourceKey,
		Details:     raw,
		IPAddress:   middleware.ResolveClientIP(c),
		UserAgent:   c.Get("User-Agent"),
	})
}

// ListLockedAccounts returns every currently locked account
func (h *SecurityHandler) ListLockedAccounts(c *fiber.Ctx) error {
	locked, err := h.lockouts.GetAllLockedAccounts(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to list locked accounts")
	}
	return response.Success(c, fiber.Map{
		"locked_accounts": locked,
		"count":           len(locked),
	})
}

// LockAccountRequest identifies the account to lock and why
type LockAccountRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Reason string `json:"reason" validate:"required,min=3"`
}

// LockAccount permanently locks an account and revokes all of its
// sessions and tokens
func (h *SecurityHandler) LockAccount(c *fiber.Ctx) error {
	var req LockAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.lockouts.LockAccount(c.Context(), req.Email, req.Reason); err != nil {
		if err == services.ErrUserNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to lock account")
	}

	h.audit(c, "account_lock", "account_lockouts", req.Email, map[string]interface{}{
		"reason": req.Reason,
	})
	return response.SuccessWithMessage(c, "Account locked", nil)
}

// UnlockAccountRequest identifies the account to unlock
type UnlockAccountRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UnlockAccount removes a lock, permanent or otherwise
func (h *SecurityHandler) UnlockAccount(c *fiber.Ctx) error {
	var req UnlockAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.lockouts.UnlockAccount(c.Context(), req.Email); err != nil {
		return response.InternalServerError(c, "Failed to unlock account")
	}

	h.audit(c, "account_unlock", "account_lockouts", req.Email, nil)
	return response.SuccessWithMessage(c, "Account unlocked", nil)
}

// ResetLockout deletes the lockout record for an identifier, clearing
// the failed-attempt counter and any lock along with it
func (h *SecurityHandler) ResetLockout(c *fiber.Ctx) error {
	var req UnlockAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.lockouts.ResetLockout(c.Context(), req.Email); err != nil {
		return response.InternalServerError(c, "Failed to reset lockout")
	}

	h.audit(c, "lockout_reset", "account_lockouts", req.Email, nil)
	return response.SuccessWithMessage(c, "Lockout counter reset", nil)
}

// BlockIPRequest describes a manual IP block
type BlockIPRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
	Duration  int    `json:"duration_minutes" validate:"required,min=1,max=43200"`
	Reason    string `json:"reason" validate:"required,min=3"`
}

// BlockIP blocks an IP across every endpoint class for the given
// duration
func (h *SecurityHandler) BlockIP(c *fiber.Ctx) error {
	var req BlockIPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	adminID, _ := middleware.GetUserID(c)
	duration := time.Duration(req.Duration) * time.Minute
	if err := h.rateLimits.BlockIP(c.Context(), req.IPAddress, duration, req.Reason, adminID); err != nil {
		return response.InternalServerError(c, "Failed to block IP")
	}

	h.audit(c, "ip_block", "ip_rate_limits", req.IPAddress, map[string]interface{}{
		"duration_minutes": req.Duration,
		"reason":           req.Reason,
	})
	return response.SuccessWithMessage(c, "IP blocked", nil)
}

// UnblockIPRequest identifies the IP to unblock
type UnblockIPRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
}

// UnblockIP lifts all blocks on an IP
func (h *SecurityHandler) UnblockIP(c *fiber.Ctx) error {
	var req UnblockIPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	adminID, _ := middleware.GetUserID(c)
	if err := h.rateLimits.UnblockIP(c.Context(), req.IPAddress, adminID); err != nil {
		return response.InternalServerError(c, "Failed to unblock IP")
	}

	h.audit(c, "ip_unblock", "ip_rate_limits", req.IPAddress, nil)
	return response.SuccessWithMessage(c, "IP unblocked", nil)
}

// RateLimitStats returns aggregate rate-limiting statistics
func (h *SecurityHandler) RateLimitStats(c *fiber.Ctx) error {
	stats, err := h.rateLimits.GetRateLimitStats(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to collect rate limit stats")
	}
	return response.Success(c, stats)
}

// BlacklistStats returns aggregate token-revocation statistics
func (h *SecurityHandler) BlacklistStats(c *fiber.Ctx) error {
	stats, err := h.blacklist.Stats(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to collect blacklist stats")
	}
	return response.Success(c, stats)
}

// SecurityEvents returns recent security events, optionally filtered by
// user ID
func (h *SecurityHandler) SecurityEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	query := h.db.WithContext(c.Context()).
		Model(&model.SecurityEvent{}).
		Order("created_at DESC").
		Limit(limit)
	if userID := c.QueryInt("user_id", 0); userID > 0 {
		query = query.Where("user_id = ?", userID)
	}

	var events []model.SecurityEvent
	if err := query.Find(&events).Error; err != nil {
		return response.InternalServerError(c, "Failed to list security events")
	}
	return response.Success(c, fiber.Map{
		"events": events,
		"count":  len(events),
	})
}
