package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath       string
	MirrorURL          string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	DeviceName         string
	AuthSecret         string
	SyncPasscodeHash   string
	SessionTTLMinutes  int
	SyncIntervalSecond int
	LogLevel           string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "720"))
	if err != nil || sessionTTL < 1 {
		sessionTTL = 720
	}
	syncInterval, err := strconv.Atoi(getEnv("SYNC_INTERVAL_SECONDS", "300"))
	if err != nil || syncInterval < 1 {
		syncInterval = 300
	}

	cfg := Config{
		DatabasePath:       getEnv("DATABASE_PATH", "dairy.db"),
		MirrorURL:          os.Getenv("MIRROR_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		DeviceName:         getEnv("DEVICE_NAME", "shop-counter"),
		AuthSecret:         strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		SyncPasscodeHash:   strings.TrimSpace(os.Getenv("SYNC_PASSCODE_HASH")),
		SessionTTLMinutes:  sessionTTL,
		SyncIntervalSecond: syncInterval,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// SyncConfigured reports whether a mirror is set up at all. Without one
// the app runs purely local.
func (c Config) SyncConfigured() bool {
	return c.MirrorURL != ""
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
