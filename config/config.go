// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GetString retrieves an environment variable or returns a fallback when unset or empty.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
// Invalid values also return fallback; use LookupInt to see the error.
func GetInt(key string, fallback int) int {
	v, _ := LookupInt(key, fallback)
	return v
}

// LookupInt is GetInt reporting values that do not parse.
func LookupInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

// LookupSeconds reads an integer number of seconds as a duration.
func LookupSeconds(key string, fallback time.Duration) (time.Duration, error) {
	secs, err := LookupInt(key, -1)
	if err != nil || secs < 0 {
		return fallback, err
	}
	return time.Duration(secs) * time.Second, nil
}

// GetList splits a comma separated variable.
func GetList(key string) []string {
	var out []string
	for _, part := range strings.Split(GetString(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Config is the server configuration.
type Config struct {
	Host          string
	Port          int
	WebhookSecret string
	PublicURL     string

	HomeDir       string // project paths are resolved under this directory
	BaseDir       string // deployment_logs/ lives here
	DataDir       string // sqlite database
	ProjectsFile  string
	DefaultScript string
	Shell         string
	KillGrace     time.Duration
	MaxJobs       int

	SMTPServer    string
	SMTPPort      int
	EmailAddress  string
	EmailPassword string
	NotifyTo      []string

	LogLevel string
}

// loader collects parse errors while reading the environment.
type loader struct {
	errs []error
}

func (l *loader) int(key string, fallback int) int {
	v, err := LookupInt(key, fallback)
	if err != nil {
		l.errs = append(l.errs, err)
	}
	return v
}

func (l *loader) seconds(key string, fallback time.Duration) time.Duration {
	v, err := LookupSeconds(key, fallback)
	if err != nil {
		l.errs = append(l.errs, err)
	}
	return v
}

// Load builds a Config from the environment. Values that do not parse keep
// their defaults and are reported in the returned error.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	var l loader
	cfg := Config{
		Host:          GetString("HOST", "0.0.0.0"),
		Port:          l.int("PORT", 5001),
		WebhookSecret: GetString("GITHUB_WEBHOOK_SECRET", ""),
		PublicURL:     GetString("PUBLIC_URL", ""),
		HomeDir:       GetString("DEPLOY_HOME", home),
		BaseDir:       GetString("DEPLOY_BASE_DIR", cwd),
		DefaultScript: GetString("DEPLOY_SCRIPT", "deploy.sh"),
		Shell:         GetString("DEPLOY_SHELL", "sh"),
		KillGrace:     l.seconds("DEPLOY_KILL_GRACE_SECONDS", 5*time.Second),
		MaxJobs:       l.int("DEPLOY_MAX_JOBS", 0),
		SMTPServer:    GetString("SMTP_SERVER", ""),
		SMTPPort:      l.int("SMTP_PORT", 465),
		EmailAddress:  GetString("EMAIL_ADDRESS", ""),
		EmailPassword: GetString("EMAIL_PASSWORD", ""),
		NotifyTo:      GetList("NOTIFY_TO"),
		LogLevel:      GetString("LOG_LEVEL", "info"),
	}
	cfg.DataDir = GetString("DEPLOY_DATA_DIR", filepath.Join(cfg.BaseDir, "data"))
	cfg.ProjectsFile = GetString("PROJECTS_FILE", filepath.Join(cfg.BaseDir, "projects.yml"))
	return cfg, errors.Join(l.errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DatabasePath is the sqlite file holding deployment history.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "hookdeploy.db")
}
