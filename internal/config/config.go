// Package config loads server settings from the environment. A .env
// file is honored when present so local runs need no exported shell
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the fully resolved server configuration.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// DifficultyPath optionally points at a JSON file overriding the
	// built-in AI difficulty profiles.
	DifficultyPath string

	GraceWindow    time.Duration
	AnimationDelay time.Duration

	AllowedOrigins []string
	LogLevel       logrus.Level
}

// Load reads the environment (and .env, if any) into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:           ":" + getenv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		DifficultyPath: os.Getenv("AI_PROFILES_PATH"),
		GraceWindow:    secondsEnv("RECONNECT_GRACE_SECONDS", 60),
		AnimationDelay: millisEnv("ANIMATION_DELAY_MS", 1500),
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitCSV(origins)
	}

	level, err := logrus.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("config: bad LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func secondsEnv(key string, fallback int) time.Duration {
	return time.Duration(intEnv(key, fallback)) * time.Second
}

func millisEnv(key string, fallback int) time.Duration {
	return time.Duration(intEnv(key, fallback)) * time.Millisecond
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
