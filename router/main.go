package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/config"
	"github.com/creatorlift/creatorlift-api/database"
	"github.com/creatorlift/creatorlift-api/handlers"
	admin_handlers "github.com/creatorlift/creatorlift-api/handlers/admin"
	auth_handlers "github.com/creatorlift/creatorlift-api/handlers/auth"
	"github.com/creatorlift/creatorlift-api/services"
	"github.com/creatorlift/creatorlift-api/utils"
	"github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/cache"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
)

// Services bundles everything the router wires together so the app
// setup can hand parts of it to the cron manager.
type Services struct {
	Sessions   *services.SessionService
	Lockouts   *services.LockoutService
	RateLimits *services.RateLimitService
	Blacklist  *auth.BlacklistService
	Events     *services.SecurityEventService
}

func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) *Services {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "creatorlift-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Expiry: env.ACCESS_TOKEN_TTL,
		Issuer: jwtIssuer,
	})

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis serializes counter increments across instances. Optional:
	// without it the security services fall back to unserialized writes.
	var keyLock *cache.KeyLock
	if redisURL := env.REDIS_URL; redisURL != "" {
		redisCache, err := cache.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Counter serialization disabled.", err)
		} else {
			keyLock = cache.NewKeyLock(redisCache)
		}
	}

	events := services.NewSecurityEventService(db)
	blacklist := auth.NewBlacklistService(db)

	sessionConfig := services.DefaultSessionConfig()
	sessionConfig.MaxSessionsPerUser = env.MAX_SESSIONS_PER_USER
	sessionConfig.RefreshTokenTTL = env.REFRESH_TOKEN_TTL
	sessionConfig.SessionIdleExpiry = time.Duration(env.SESSION_IDLE_EXPIRY_DAYS) * 24 * time.Hour
	sessions := services.NewSessionService(db, jwtManager, events, sessionConfig)

	lockoutConfig := services.DefaultLockoutConfig()
	lockoutConfig.MaxAttempts = env.LOCKOUT_MAX_ATTEMPTS
	lockoutConfig.LockoutDuration = env.LOCKOUT_DURATION
	lockoutConfig.ResetWindow = env.LOCKOUT_RESET_WINDOW
	lockouts := services.NewLockoutService(db, events, sessions, blacklist, keyLock, lockoutConfig)

	rateLimits := services.NewRateLimitService(db, events, keyLock, services.DefaultRateLimitRules())

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, blacklist)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(rateLimits)

	authHandler := auth_handlers.NewAuthHandler(
		db, jwtManager, sessions, lockouts, blacklist, events, env.REFRESH_TOKEN_TTL)
	securityHandler := admin_handlers.NewSecurityHandler(db, lockouts, rateLimits, blacklist)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins: allowedOrigins,
	})

	// Health check endpoint (public, not rate limited)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// Everything under /api/v1 passes the per-IP limiter first
	api := app.Group("/api/v1", rateLimitMiddleware.Limit())

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)
	authGroup.Get("/sessions", authMiddleware.Required(), authHandler.ListSessions)
	authGroup.Delete("/sessions/:id", authMiddleware.Required(), authHandler.RevokeSession)
	authGroup.Get("/activity", authMiddleware.Required(), authHandler.RecentActivity)

	// Admin security surface
	security := api.Group("/admin/security", authMiddleware.RequireAdmin())
	security.Get("/locked-accounts", securityHandler.ListLockedAccounts)
	security.Post("/lock-account", securityHandler.LockAccount)
	security.Post("/unlock-account", securityHandler.UnlockAccount)
	security.Post("/reset-lockout", securityHandler.ResetLockout)
	security.Post("/block-ip", securityHandler.BlockIP)
	security.Post("/unblock-ip", securityHandler.UnblockIP)
	security.Get("/ratelimit-stats", securityHandler.RateLimitStats)
	security.Get("/blacklist-stats", securityHandler.BlacklistStats)
	security.Get("/events", securityHandler.SecurityEvents)

	return &Services{
		Sessions:   sessions,
		Lockouts:   lockouts,
		RateLimits: rateLimits,
		Blacklist:  blacklist,
		Events:     events,
	}
}
