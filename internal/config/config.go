package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingEnv = errors.New("missing-env")

type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	PostgresURL    string
	LogLevel       string
	LogPretty      bool
	RoomTTL        time.Duration
	UserTTL        time.Duration
	SweepInterval  time.Duration
	TopicOptions   int
	AvatarDir      string
	IdentityFile   string
}

// Load reads the process environment. A .env file in the working directory is
// honoured when present but never required.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:    getString("LISTEN_ADDR", ":5000"),
		PostgresURL:   getString("POSTGRES_URL", ""),
		LogLevel:      getString("LOG_LEVEL", "info"),
		AvatarDir:     getString("AVATAR_DIR", ""),
		IdentityFile:  getString("IDENTITY_FILE", ".ito-id"),
		RoomTTL:       time.Hour,
		UserTTL:       30 * 24 * time.Hour,
		SweepInterval: 5 * time.Minute,
		TopicOptions:  3,
	}

	origins, exists := os.LookupEnv("ALLOWED_ORIGINS")
	if !exists {
		return Config{}, fmt.Errorf("%w: ALLOWED_ORIGINS", ErrMissingEnv)
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	var err error
	if cfg.LogPretty, err = getBool("LOG_PRETTY", false); err != nil {
		return Config{}, err
	}
	if cfg.RoomTTL, err = getDuration("ROOM_TTL", cfg.RoomTTL); err != nil {
		return Config{}, err
	}
	if cfg.UserTTL, err = getDuration("USER_TTL", cfg.UserTTL); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.TopicOptions, err = getInt("TOPIC_OPTIONS", cfg.TopicOptions); err != nil {
		return Config{}, err
	}
	if cfg.TopicOptions < 1 {
		return Config{}, fmt.Errorf("TOPIC_OPTIONS must be at least 1, got %d", cfg.TopicOptions)
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
