package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Session security
	ACCESS_TOKEN_TTL      time.Duration
	REFRESH_TOKEN_TTL     time.Duration
	MAX_SESSIONS_PER_USER int
	// Account lockout
	LOCKOUT_MAX_ATTEMPTS     int
	LOCKOUT_DURATION         time.Duration
	LOCKOUT_RESET_WINDOW     time.Duration
	SESSION_IDLE_EXPIRY_DAYS int
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Session security. Fixed for the process lifetime.
		ACCESS_TOKEN_TTL:      time.Duration(intEnv("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		REFRESH_TOKEN_TTL:     time.Duration(intEnv("REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
		MAX_SESSIONS_PER_USER: intEnv("MAX_SESSIONS_PER_USER", 5),
		// Lockout
		LOCKOUT_MAX_ATTEMPTS:     intEnv("LOCKOUT_MAX_ATTEMPTS", 5),
		LOCKOUT_DURATION:         time.Duration(intEnv("LOCKOUT_DURATION_MINUTES", 15)) * time.Minute,
		LOCKOUT_RESET_WINDOW:     time.Duration(intEnv("LOCKOUT_RESET_WINDOW_MINUTES", 60)) * time.Minute,
		SESSION_IDLE_EXPIRY_DAYS: intEnv("SESSION_IDLE_EXPIRY_DAYS", 30),
	}

	return envVariables, nil
}
