// Package config resolves the runtime configuration from the data
// directory's .env file and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const defaultDataDir = "/etc/betterclaw"

// Config is the resolved runtime configuration.
type Config struct {
	// Core triage options
	LLMModel          string // "provider/model"
	LLMAPIKey         string
	LLMBaseURL        string // optional OpenAI-compatible endpoint override
	PushBudgetPerDay  int
	PatternWindowDays int
	ProactiveEnabled  bool

	// Outbound delivery
	AgentCommand    string // host binary invoked with the agent subcommand
	SessionID       string
	DeliveryChannel string

	// Server
	ListenHost string
	ListenPort int

	// Ambient
	DataDir   string
	LogLevel  string
	LogFormat string
	LogFile   string

	JudgmentTimeout time.Duration
	DeliveryTimeout time.Duration
}

// Load reads configuration from the data directory and environment.
// Missing or unreadable .env files are not an error; defaults apply.
// The .env files are parsed on every call without mutating the process
// environment, so a reload sees fresh file contents while real environment
// variables keep the highest precedence.
func Load() (*Config, error) {
	dataDir := defaultDataDir
	if dir := os.Getenv("BETTERCLAW_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	cfg := &Config{
		LLMModel:          "openai/gpt-4o-mini",
		PushBudgetPerDay:  10,
		PatternWindowDays: 14,
		ProactiveEnabled:  true,
		AgentCommand:      "openclaw",
		SessionID:         "main",
		DeliveryChannel:   "telegram",
		ListenHost:        "127.0.0.1",
		ListenPort:        7611,
		DataDir:           dataDir,
		LogLevel:          "info",
		LogFormat:         "auto",
		JudgmentTimeout:   15 * time.Second,
		DeliveryTimeout:   30 * time.Second,
	}

	// Working-directory .env first (development setups), then the data
	// directory's, then the process environment.
	if values, err := godotenv.Read(); err == nil {
		applyOverrides(cfg, func(key string) string { return values[key] })
		log.Debug().Msg("Loaded .env from current directory")
	}

	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		values, err := godotenv.Read(envFile)
		if err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			applyOverrides(cfg, func(key string) string { return values[key] })
			log.Info().Str("file", envFile).Msg("Loaded .env file")
		}
	}

	applyOverrides(cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *Config, lookup func(string) string) {
	setString(&cfg.LLMModel, "BETTERCLAW_LLM_MODEL", lookup)
	setString(&cfg.LLMAPIKey, "BETTERCLAW_LLM_API_KEY", lookup)
	setString(&cfg.LLMBaseURL, "BETTERCLAW_LLM_BASE_URL", lookup)
	setInt(&cfg.PushBudgetPerDay, "BETTERCLAW_PUSH_BUDGET_PER_DAY", lookup)
	setInt(&cfg.PatternWindowDays, "BETTERCLAW_PATTERN_WINDOW_DAYS", lookup)
	setBool(&cfg.ProactiveEnabled, "BETTERCLAW_PROACTIVE_ENABLED", lookup)
	setString(&cfg.AgentCommand, "BETTERCLAW_AGENT_COMMAND", lookup)
	setString(&cfg.SessionID, "BETTERCLAW_SESSION_ID", lookup)
	setString(&cfg.DeliveryChannel, "BETTERCLAW_DELIVERY_CHANNEL", lookup)
	setString(&cfg.ListenHost, "BETTERCLAW_LISTEN_HOST", lookup)
	setInt(&cfg.ListenPort, "BETTERCLAW_LISTEN_PORT", lookup)
	setString(&cfg.LogLevel, "BETTERCLAW_LOG_LEVEL", lookup)
	setString(&cfg.LogFormat, "BETTERCLAW_LOG_FORMAT", lookup)
	setString(&cfg.LogFile, "BETTERCLAW_LOG_FILE", lookup)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.PushBudgetPerDay <= 0 {
		return fmt.Errorf("pushBudgetPerDay must be positive, got %d", c.PushBudgetPerDay)
	}
	if c.PatternWindowDays <= 0 {
		return fmt.Errorf("patternWindowDays must be positive, got %d", c.PatternWindowDays)
	}
	if !strings.Contains(c.LLMModel, "/") {
		return fmt.Errorf("llmModel must be provider/model, got %q", c.LLMModel)
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port %d", c.ListenPort)
	}
	return nil
}

// ContextFile is the path of the persisted device context snapshot.
func (c *Config) ContextFile() string {
	return filepath.Join(c.DataDir, "context.json")
}

// PatternsFile is the path of the persisted patterns document.
func (c *Config) PatternsFile() string {
	return filepath.Join(c.DataDir, "patterns.json")
}

// EventLogFile is the path of the append-only event journal.
func (c *Config) EventLogFile() string {
	return filepath.Join(c.DataDir, "events.jsonl")
}

func setString(dst *string, key string, lookup func(string) string) {
	if v := strings.TrimSpace(lookup(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, lookup func(string) string) {
	v := strings.TrimSpace(lookup(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-numeric override")
		return
	}
	*dst = n
}

func setBool(dst *bool, key string, lookup func(string) string) {
	v := strings.TrimSpace(lookup(key))
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-boolean override")
		return
	}
	*dst = b
}
