package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that fails validation
var ErrInvalid = errors.New("invalid configuration")

// MealConfig is one meal slot as written in the calendar file
type MealConfig struct {
	Name      string `yaml:"name"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time,omitempty"`
	Filter    string `yaml:"filter,omitempty"`
}

// CalendarConfig is the calendar file: which archive to plan from and how
type CalendarConfig struct {
	Name          string       `yaml:"name"`
	Path          string       `yaml:"path"`
	ResetDay      string       `yaml:"reset_day"`
	ArchiveMember string       `yaml:"archive_member,omitempty"`
	Meals         []MealConfig `yaml:"meals"`
}

// Config holds all configuration for the application
type Config struct {
	Calendar CalendarConfig

	// Application configuration
	CalendarFile   string
	DataDir        string
	ListenAddr     string
	ExportPath     string
	Location       *time.Location
	UpdateInterval time.Duration
	EnforceFilters bool
	LogLevel       logger.Level

	// Telegram Bot configuration, optional
	BotToken string
}

// LoadFromEnv loads configuration from environment variables and the
// calendar file they point to
func LoadFromEnv() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Global.Warn("Error loading .env file: %v", err)
	}

	cfg := &Config{}

	// Required configurations
	cfg.CalendarFile = os.Getenv("CALENDAR_CONFIG")
	if cfg.CalendarFile == "" {
		return nil, fmt.Errorf("CALENDAR_CONFIG environment variable is required")
	}

	calendar, err := LoadCalendar(cfg.CalendarFile)
	if err != nil {
		return nil, err
	}
	cfg.Calendar = *calendar

	// Optional configurations with defaults
	cfg.DataDir = getEnvWithDefault("DATA_DIR", "")
	cfg.ListenAddr = getEnvWithDefault("LISTEN_ADDR", ":8080")
	cfg.ExportPath = getEnvWithDefault("EXPORT_PATH", "")
	cfg.BotToken = os.Getenv("BOT_TOKEN")
	cfg.LogLevel = logger.ParseLevel(getEnvWithDefault("LOG_LEVEL", "info"))

	cfg.Location, err = time.LoadLocation(getEnvWithDefault("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("%w: TIMEZONE: %v", ErrInvalid, err)
	}

	cfg.UpdateInterval, err = time.ParseDuration(getEnvWithDefault("UPDATE_INTERVAL", "15m"))
	if err != nil || cfg.UpdateInterval <= 0 {
		return nil, fmt.Errorf("%w: UPDATE_INTERVAL must be a positive duration", ErrInvalid)
	}

	cfg.EnforceFilters, err = strconv.ParseBool(getEnvWithDefault("ENFORCE_FILTERS", "false"))
	if err != nil {
		return nil, fmt.Errorf("%w: ENFORCE_FILTERS: %v", ErrInvalid, err)
	}

	// Log configuration with sensitive data redacted
	botToken := "(none)"
	if len(cfg.BotToken) > 8 {
		botToken = cfg.BotToken[:8] + "...REDACTED..."
	}
	logger.Global.Info("Configuration loaded: calendar=%s archive=%s meals=%d data=%q export=%q bot=%s",
		cfg.Calendar.Name, cfg.Calendar.Path, len(cfg.Calendar.Meals), cfg.DataDir, cfg.ExportPath, botToken)
	return cfg, nil
}

// LoadCalendar reads and validates a calendar file. A relative archive path
// is resolved against the file's directory.
func LoadCalendar(path string) (*CalendarConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calendar config: %w", err)
	}
	defer f.Close()

	var cal CalendarConfig
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cal); err != nil {
		return nil, fmt.Errorf("failed to parse calendar config %s: %w", path, err)
	}

	if err := cal.Validate(); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cal.Path) {
		cal.Path = filepath.Join(filepath.Dir(path), cal.Path)
	}
	return &cal, nil
}

// Validate checks required fields, the reset day and every meal slot
func (c *CalendarConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalid)
	}
	if strings.TrimSpace(c.ResetDay) == "" {
		return fmt.Errorf("%w: reset_day is required", ErrInvalid)
	}
	if _, err := c.Weekday(); err != nil {
		return err
	}
	_, err := c.Slots()
	return err
}

// Weekday returns the parsed reset day
func (c *CalendarConfig) Weekday() (time.Weekday, error) {
	day, err := models.ParseWeekday(c.ResetDay)
	if err != nil {
		return day, fmt.Errorf("%w: reset_day: %v", ErrInvalid, err)
	}
	return day, nil
}

// Slots converts the meal entries into meal slots, keeping their order.
// A missing end time defaults to the start time.
func (c *CalendarConfig) Slots() ([]models.MealSlot, error) {
	seen := make(map[string]bool, len(c.Meals))
	slots := make([]models.MealSlot, 0, len(c.Meals))

	for i, m := range c.Meals {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: meals[%d]: name is required", ErrInvalid, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: meals[%d]: duplicate meal %q", ErrInvalid, i, name)
		}
		seen[name] = true

		if strings.TrimSpace(m.StartTime) == "" {
			return nil, fmt.Errorf("%w: meal %q: start_time is required", ErrInvalid, name)
		}
		start, err := models.ParseTimeOfDay(m.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: meal %q: %v", ErrInvalid, name, err)
		}

		end := start
		if strings.TrimSpace(m.EndTime) != "" {
			end, err = models.ParseTimeOfDay(m.EndTime)
			if err != nil {
				return nil, fmt.Errorf("%w: meal %q: %v", ErrInvalid, name, err)
			}
		}

		slots = append(slots, models.MealSlot{
			Name:   name,
			Start:  start,
			End:    end,
			Filter: strings.TrimSpace(m.Filter),
		})
	}

	return slots, nil
}

// Member returns the document name to read from the archive
func (c *CalendarConfig) Member() string {
	if c.ArchiveMember != "" {
		return c.ArchiveMember
	}
	return recipe.DefaultMember
}

// getEnvWithDefault returns the value of the environment variable or the default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
