// Package config reads tracker settings from the environment, with an
// optional .env file for local use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/grocerytracker/internal/backup"
)

type Config struct {
	DBPath    string
	Port      string
	LogLevel  string
	LogFormat string

	BackupDir        string
	BackupPassphrase string
	BackupInterval   time.Duration
	BackupKeep       int
	S3               backup.S3Config

	// Write requests allowed per client per minute.
	WriteLimit int
}

// Load reads .env (if present) and the environment. Variables already set
// in the environment win over .env entries.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBPath:    getEnv("GROCERY_DB_PATH", "grocery_tracker.db"),
		Port:      getEnv("GROCERY_PORT", "8080"),
		LogLevel:  getEnv("GROCERY_LOG_LEVEL", "info"),
		LogFormat: getEnv("GROCERY_LOG_FORMAT", "text"),

		BackupDir:        getEnv("GROCERY_BACKUP_DIR", "backups"),
		BackupPassphrase: os.Getenv("GROCERY_BACKUP_PASSPHRASE"),
		BackupInterval:   getEnvDuration("GROCERY_BACKUP_INTERVAL", 0),
		BackupKeep:       getEnvInt("GROCERY_BACKUP_KEEP", 7),
		S3: backup.S3Config{
			Endpoint:  os.Getenv("GROCERY_S3_ENDPOINT"),
			Bucket:    os.Getenv("GROCERY_S3_BUCKET"),
			Region:    getEnv("GROCERY_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("GROCERY_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("GROCERY_S3_SECRET_KEY"),
		},

		WriteLimit: getEnvInt("GROCERY_WRITE_LIMIT", 120),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "database path cannot be empty")
	}
	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}
	if c.BackupInterval < 0 {
		problems = append(problems, fmt.Sprintf("invalid backup interval %v: must not be negative", c.BackupInterval))
	} else if c.BackupInterval > 0 {
		if c.BackupInterval < time.Minute {
			problems = append(problems, fmt.Sprintf("invalid backup interval %v: must be at least 1 minute", c.BackupInterval))
		}
		if c.BackupPassphrase == "" {
			problems = append(problems, "scheduled backups need GROCERY_BACKUP_PASSPHRASE")
		}
	}
	if c.BackupKeep < 0 {
		problems = append(problems, fmt.Sprintf("invalid backup keep %d: must not be negative", c.BackupKeep))
	}
	if c.S3.Bucket != "" && !c.S3.Enabled() {
		problems = append(problems, "S3 bucket set without GROCERY_S3_ACCESS_KEY and GROCERY_S3_SECRET_KEY")
	}
	if c.WriteLimit < 1 {
		problems = append(problems, fmt.Sprintf("invalid write limit %d: must be at least 1", c.WriteLimit))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
