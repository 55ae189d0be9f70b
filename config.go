package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the bot configuration.
type Config struct {
	BotToken       string
	AdminIDs       map[int64]bool
	AdminNames     map[string]bool
	PublicLists    bool
	RemindInterval time.Duration
	DBPath         string
}

// LoadConfig loads configuration from a .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Missing .env is fine, plain environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{
		AdminIDs:       map[int64]bool{},
		AdminNames:     map[string]bool{},
		PublicLists:    true,
		RemindInterval: 60 * time.Second,
		DBPath:         "./events.db",
	}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	for _, part := range parseCommaSeparated(os.Getenv("ADMIN_IDS")) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q", part)
		}
		cfg.AdminIDs[id] = true
	}
	for _, name := range parseCommaSeparated(os.Getenv("ADMIN_NAMES")) {
		cfg.AdminNames[name] = true
	}

	if v := os.Getenv("PUBLIC_LISTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PUBLIC_LISTS value %q", v)
		}
		cfg.PublicLists = b
	}

	if v := os.Getenv("REMIND_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid REMIND_INTERVAL value %q", v)
		}
		cfg.RemindInterval = d
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	return cfg, nil
}

// parseCommaSeparated parses a comma-separated string into a slice.
func parseCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
