package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/model"
	authutil "github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2"`
}

// RegisterResponse represents a successful registration response
type RegisterResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	SessionID   string       `json:"session_id"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

// Register handles user registration and logs the new account in
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := h.db.WithContext(c.Context()).
		Model(&model.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return response.InternalServerError(c, "Failed to check existing accounts")
	}
	if count > 0 {
		return response.Conflict(c, "An account with this email already exists")
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.BadRequest(c, "Password does not meet requirements")
	}

	user := model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         "creator",
	}
	if err := h.db.WithContext(c.Context()).Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create account")
	}

	ip := middleware.ResolveClientIP(c)
	fingerprint := deviceFingerprint(c)
	tokens, err := h.sessions.CreateOrUpdateSession(c.Context(), &user, fingerprint, ip, c.Get("User-Agent"))
	if err != nil {
		return response.InternalServerError(c, "Failed to create session")
	}

	h.setRefreshCookie(c, tokens.RefreshToken)

	return response.Created(c, RegisterResponse{
		User:        toUserResponse(&user),
		AccessToken: tokens.AccessToken,
		SessionID:   tokens.SessionID,
		ExpiresIn:   tokens.ExpiresIn,
	})
}
