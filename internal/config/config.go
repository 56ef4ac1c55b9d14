package config

import (
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"drawdash_backend/internal/logger"
)

type Config struct {
	AppPort       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NodeID        string
	JWTSecret     string
	AllowedOrigin string
	LogLevel      string
	LogJSON       bool

	// HTTP rate limits for the room endpoints
	RoomRateLimit  int
	RoomRateWindow int
}

// Load reads configuration from the environment, with .env support for local
// development.
func Load() *Config {
	_ = godotenv.Load()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		logger.Fatal("REDIS_ADDR is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			redisDB = n
		}
	}

	// Each replica needs a distinct id for the distributed timer locks.
	nodeID := os.Getenv("NODE_ID")
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	rateLimit := 30
	if v := os.Getenv("ROOM_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateLimit = n
		}
	}

	rateWindow := 60
	if v := os.Getenv("ROOM_RATE_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateWindow = n
		}
	}

	return &Config{
		AppPort:        port,
		RedisAddr:      redisAddr,
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		NodeID:         nodeID,
		JWTSecret:      jwtSecret,
		AllowedOrigin:  os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:       getOr("LOG_LEVEL", "info"),
		LogJSON:        os.Getenv("LOG_JSON") == "true",
		RoomRateLimit:  rateLimit,
		RoomRateWindow: rateWindow,
	}
}

func getOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
