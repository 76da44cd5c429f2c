// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Server holds configuration for pm_chart_server.
type Server struct {
	BackendURL       string
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
	RequestTimeoutMS int

	LogLevel string
	LogFile  string

	SnapshotDir       string
	LabelsFile        string
	AssetsHost        string
	JournalDir        string
	JournalMaxSizeMB  int
	FeedEnabled       bool
	CDPAddress        string
	CDPPort           int
	LaunchBrowser     bool
	SnapshotTimeoutMS int
	AlertURL          string
	AlertLimit        float64
}

// CLI holds the subset used by the pm_chart command. Flags override these.
type CLI struct {
	BackendURL       string
	RequestTimeoutMS int
	LabelsFile       string
	LogLevel         string
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
}

// LoadServer reads server configuration from environment variables and optional .env file.
func LoadServer() (*Server, error) {
	loadDotEnv()

	cfg := &Server{
		BackendURL:        getEnvOrDefault("PMCHART_BACKEND_URL", "http://127.0.0.1:8080"),
		BindAddr:          getEnvOrDefault("PMCHART_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:    splitList(getEnvOrDefault("PMCHART_PORT_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192,127.0.0.1:8193")),
		PortAutoFallback:  getEnvBoolOrDefault("PMCHART_PORT_AUTO_FALLBACK", true),
		RequestTimeoutMS:  getEnvIntOrDefault("PMCHART_REQUEST_TIMEOUT_MS", 10000),
		LogLevel:          strings.ToLower(getEnvOrDefault("PMCHART_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("PMCHART_LOG_FILE", "logs/pm_chart_server.log"),
		SnapshotDir:       getEnvOrDefault("PMCHART_SNAPSHOT_DIR", "./snapshots"),
		LabelsFile:        os.Getenv("PMCHART_LABELS_FILE"),
		AssetsHost:        os.Getenv("PMCHART_ASSETS_HOST"),
		JournalDir:        os.Getenv("PMCHART_JOURNAL_DIR"),
		JournalMaxSizeMB:  getEnvIntOrDefault("PMCHART_JOURNAL_MAX_SIZE_MB", 50),
		FeedEnabled:       getEnvBoolOrDefault("PMCHART_FEED_ENABLED", true),
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		LaunchBrowser:     getEnvBoolOrDefault("PMCHART_LAUNCH_BROWSER", false),
		SnapshotTimeoutMS: getEnvIntOrDefault("PMCHART_SNAPSHOT_TIMEOUT_MS", 20000),
		AlertURL:          os.Getenv("PMCHART_ALERT_URL"),
		AlertLimit:        getEnvFloatOrDefault("PMCHART_ALERT_LIMIT", 50),
	}
	if cfg.RequestTimeoutMS < 100 {
		cfg.RequestTimeoutMS = 100
	}
	if cfg.SnapshotTimeoutMS < 1000 {
		cfg.SnapshotTimeoutMS = 1000
	}
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return nil, fmt.Errorf("PMCHART_BACKEND_URL must not be empty")
	}
	return cfg, nil
}

// LoadCLI reads defaults for the pm_chart command.
func LoadCLI() *CLI {
	loadDotEnv()
	return &CLI{
		BackendURL:       os.Getenv("PMCHART_BACKEND_URL"),
		RequestTimeoutMS: getEnvIntOrDefault("PMCHART_REQUEST_TIMEOUT_MS", 10000),
		LabelsFile:       os.Getenv("PMCHART_LABELS_FILE"),
		LogLevel:         strings.ToLower(getEnvOrDefault("PMCHART_LOG_LEVEL", "warn")),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
