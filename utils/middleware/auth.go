package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// AuthMiddleware authenticates bearer tokens: signature and expiry via the
// codec (fail closed), then the blacklist and token-version revocation
// checks (each fails open inside the service on store errors).
type AuthMiddleware struct {
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, blacklistService *auth.BlacklistService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:       jwtManager,
		blacklistService: blacklistService,
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*auth.Claims, string, error) {
	tokenString, ok := bearerToken(c)
	if !ok {
		return nil, "", auth.ErrInvalidToken
	}

	claims, err := m.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return nil, "", err
	}

	if claims.TokenType != "access" {
		return nil, "", auth.ErrInvalidToken
	}

	if m.blacklistService.IsTokenBlacklisted(c.Context(), tokenString) {
		return nil, "", auth.ErrInvalidToken
	}

	if claims.IssuedAt == nil ||
		!m.blacklistService.IsUserTokenVersionValid(c.Context(), claims.UserID, claims.IssuedAt.Time) {
		return nil, "", auth.ErrInvalidToken
	}

	return claims, tokenString, nil
}

func storePrincipal(c *fiber.Ctx, claims *auth.Claims, rawToken string) {
	c.Locals("user_id", claims.UserID)
	c.Locals("user_email", claims.Email)
	c.Locals("user_role", claims.Role)
	c.Locals("session_id", claims.SessionID)
	c.Locals("claims", claims)
	c.Locals("access_token", rawToken)
}

// Required is middleware that requires a valid, unrevoked access token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, rawToken, err := m.authenticate(c)
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid or revoked token")
		}

		storePrincipal(c, claims, rawToken)
		return c.Next()
	}
}

// Optional is middleware that allows requests with or without a token
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, rawToken, err := m.authenticate(c)
		if err == nil {
			storePrincipal(c, claims, rawToken)
		}
		return c.Next()
	}
}

// RequireRole is middleware that requires one of the given roles. Must run
// after Required.
func (m *AuthMiddleware) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userRole, ok := GetUserRole(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}

		for _, r := range roles {
			if userRole == r {
				return c.Next()
			}
		}

		return response.Forbidden(c, "Insufficient permissions")
	}
}

// RequireAdmin validates the token inline and checks for the admin role
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, rawToken, err := m.authenticate(c)
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid or revoked token")
		}

		if claims.Role != "admin" {
			return response.Forbidden(c, "Admin access required")
		}

		storePrincipal(c, claims, rawToken)
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) (string, bool) {
	email := c.Locals("user_email")
	if email == nil {
		return "", false
	}
	e, ok := email.(string)
	return e, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *fiber.Ctx) (string, bool) {
	role := c.Locals("user_role")
	if role == nil {
		return "", false
	}
	r, ok := role.(string)
	return r, ok
}

// GetSessionID extracts the session id from context
func GetSessionID(c *fiber.Ctx) (string, bool) {
	sid := c.Locals("session_id")
	if sid == nil {
		return "", false
	}
	s, ok := sid.(string)
	return s, ok
}

// GetAccessToken extracts the raw bearer token from context
func GetAccessToken(c *fiber.Ctx) (string, bool) {
	token := c.Locals("access_token")
	if token == nil {
		return "", false
	}
	t, ok := token.(string)
	return t, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims := c.Locals("claims")
	if claims == nil {
		return nil, false
	}
	claimsData, ok := claims.(*auth.Claims)
	return claimsData, ok
}
