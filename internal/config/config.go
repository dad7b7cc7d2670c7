package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	JWTSecret string

	CORSOrigins string

	ChallengeImageCount int
	ChallengeTTLHours   int
	SessionTTLHours     int

	LeaderboardDefaultLimit int
	LeaderboardMaxLimit     int

	RateLimitPerMinute int
	RateLimitBurst     int

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:              ":8080",
		ChallengeImageCount:     8,
		ChallengeTTLHours:       48,
		SessionTTLHours:         24,
		LeaderboardDefaultLimit: 10,
		LeaderboardMaxLimit:     100,
		RateLimitPerMinute:      120,
		RateLimitBurst:          30,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	cfg.CORSOrigins = strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("CHALLENGE_IMAGE_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChallengeImageCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHALLENGE_TTL_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 24 {
			cfg.ChallengeTTLHours = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLHours = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_DEFAULT_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LeaderboardDefaultLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_MAX_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LeaderboardMaxLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_PER_MINUTE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitBurst = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}
