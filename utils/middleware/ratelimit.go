package middleware

import (
	"fmt"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/services"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// proxyHeaders are checked in priority order. A header value is only
// trusted when it parses as a syntactically valid IP.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"X-Real-IP",
	"X-Forwarded-For",
}

// ResolveClientIP resolves the caller's IP from proxy headers, falling
// back to the socket address.
func ResolveClientIP(c *fiber.Ctx) string {
	for _, header := range proxyHeaders {
		value := c.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the first hop is the client
		if idx := strings.Index(value, ","); idx >= 0 {
			value = value[:idx]
		}
		value = strings.TrimSpace(value)
		if net.ParseIP(value) != nil {
			return value
		}
	}
	return c.IP()
}

// RateLimitMiddleware runs the fixed-window IP limiter before anything
// else on the request path.
type RateLimitMiddleware struct {
	service *services.RateLimitService
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(service *services.RateLimitService) *RateLimitMiddleware {
	return &RateLimitMiddleware{service: service}
}

// Limit checks the caller's request budget for the endpoint class derived
// from the path. Rejections carry Retry-After; allowed requests carry the
// usual X-RateLimit headers.
func (m *RateLimitMiddleware) Limit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := ResolveClientIP(c)
		endpointClass := services.EndpointClassFromPath(c.Path())

		result := m.service.CheckRateLimit(c.Context(), ip, endpointClass, c.Get("User-Agent"))
		if !result.Allowed {
			c.Set("Retry-After", fmt.Sprintf("%d", result.RetryAfter))
			return response.TooManyRequests(c,
				fmt.Sprintf("Too many requests. Try again in %d seconds", result.RetryAfter))
		}

		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.RemainingRequests))
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime.Unix()))
		return c.Next()
	}
}
