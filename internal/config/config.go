// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"reportbot/internal/model"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	// Location is the timezone all deadlines and occurrence dates use.
	Location            *time.Location
	WarningLead         time.Duration
	ReminderLag         time.Duration
	CleanupTime         model.TimeOfDay
	CheckoutSummaryTime model.TimeOfDay
	WeeklySummaryDay    time.Weekday
	WeeklySummaryTime   model.TimeOfDay
	DayOffPhrase        string
}

// Load reads configuration from environment variables, seeded from a .env
// file in the working directory when one exists. Variables already set in
// the environment take precedence over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	tz := envOrDefault("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	lead, err := minutes("WARNING_LEAD_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	lag, err := minutes("REMINDER_LAG_MINUTES", 5)
	if err != nil {
		return nil, err
	}

	cleanup, err := timeOfDay("CLEANUP_TIME", "23:59")
	if err != nil {
		return nil, err
	}
	checkout, err := timeOfDay("CHECKOUT_SUMMARY_TIME", "22:00")
	if err != nil {
		return nil, err
	}
	weeklyTime, err := timeOfDay("WEEKLY_SUMMARY_TIME", "10:00")
	if err != nil {
		return nil, err
	}
	weekday, err := parseWeekday(envOrDefault("WEEKLY_SUMMARY_DAY", "monday"))
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken:    token,
		DatabasePath:        envOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		AllowedUsers:        allowedUsers,
		Location:            loc,
		WarningLead:         lead,
		ReminderLag:         lag,
		CleanupTime:         cleanup,
		CheckoutSummaryTime: checkout,
		WeeklySummaryDay:    weekday,
		WeeklySummaryTime:   weeklyTime,
		DayOffPhrase:        envOrDefault("DAY_OFF_PHRASE", "day off"),
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func minutes(key string, def int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(def) * time.Minute, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	// Offsets shorter than a day reach at most the adjacent occurrence.
	if err != nil || n < 0 || n >= 24*60 {
		return 0, fmt.Errorf("invalid %s %q: want minutes between 0 and 1439", key, raw)
	}
	return time.Duration(n) * time.Minute, nil
}

func timeOfDay(key, def string) (model.TimeOfDay, error) {
	t, err := model.ParseTimeOfDay(envOrDefault(key, def))
	if err != nil {
		return t, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid WEEKLY_SUMMARY_DAY %q", s)
}
