// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrorPolicy controls what the batch driver does when an acquisition fails
// with anything other than a flood wait.
type ErrorPolicy string

const (
	// ErrorPolicyAbort stops the whole process on the first unrecoverable failure.
	ErrorPolicyAbort ErrorPolicy = "abort"
	// ErrorPolicySkip logs the failure and continues with the remaining sessions.
	ErrorPolicySkip ErrorPolicy = "skip"
)

// botNamePattern matches a single Telegram bot username.
var botNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config holds the application configuration loaded from environment variables.
// It is built once at startup and never mutated afterwards.
type Config struct {
	APIID   int
	APIHash string
	Bots    []string

	SessionsDir string
	ProxyFile   string
	DBPath      string
	ListenAddr  string

	ProbeURL     string
	ProbeTimeout time.Duration
	FloodJitter  time.Duration

	RefreshInterval time.Duration
	RefreshRPS      float64
	OnError         ErrorPolicy

	WebAppPlatform string
	StartParam     string
	AppShortName   string

	ProtocolDebug bool
}

// HasBot reports whether bot is one of the configured target bots.
func (c *Config) HasBot(bot string) bool {
	for _, b := range c.Bots {
		if b == bot {
			return true
		}
	}
	return false
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present; variables already
// set in the process environment win over the file.
//
// Required: MINIAPPQ_API_ID, MINIAPPQ_API_HASH, MINIAPPQ_BOTS.
// The proxy list file (MINIAPPQ_PROXY_FILE, default proxies.txt) must exist but may be empty.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	rawID := strings.TrimSpace(os.Getenv("MINIAPPQ_API_ID"))
	if rawID == "" {
		return nil, errors.New("MINIAPPQ_API_ID is required")
	}
	apiID, err := strconv.Atoi(rawID)
	if err != nil || apiID <= 0 {
		return nil, fmt.Errorf("MINIAPPQ_API_ID must be a positive integer, got %q", rawID)
	}

	apiHash := strings.TrimSpace(os.Getenv("MINIAPPQ_API_HASH"))
	if apiHash == "" {
		return nil, errors.New("MINIAPPQ_API_HASH is required")
	}

	bots, err := parseBots(os.Getenv("MINIAPPQ_BOTS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIID:          apiID,
		APIHash:        apiHash,
		Bots:           bots,
		SessionsDir:    envOr("MINIAPPQ_SESSIONS_DIR", "sessions"),
		ProxyFile:      envOr("MINIAPPQ_PROXY_FILE", "proxies.txt"),
		DBPath:         envOr("MINIAPPQ_DB_PATH", "queries.db"),
		ListenAddr:     envOr("MINIAPPQ_LISTEN_ADDR", "127.0.0.1:3000"),
		ProbeURL:       envOr("MINIAPPQ_PROBE_URL", "https://api.ipify.org?format=json"),
		WebAppPlatform: envOr("MINIAPPQ_WEBAPP_PLATFORM", "ios"),
		StartParam:     envOr("MINIAPPQ_START_PARAM", "6094625904"),
		AppShortName:   envOr("MINIAPPQ_APP_SHORT_NAME", "app"),
		OnError:        ErrorPolicyAbort,
		RefreshRPS:     1,
	}

	if cfg.ProbeTimeout, err = durationEnv("MINIAPPQ_PROBE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FloodJitter, err = durationEnv("MINIAPPQ_FLOOD_JITTER", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = durationEnv("MINIAPPQ_REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("MINIAPPQ_REFRESH_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("MINIAPPQ_REFRESH_RPS must be a positive number, got %q", v)
		}
		cfg.RefreshRPS = rps
	}

	if v, ok := os.LookupEnv("MINIAPPQ_ON_ERROR"); ok {
		switch p := ErrorPolicy(strings.ToLower(strings.TrimSpace(v))); p {
		case ErrorPolicyAbort, ErrorPolicySkip:
			cfg.OnError = p
		default:
			return nil, fmt.Errorf("MINIAPPQ_ON_ERROR must be %q or %q, got %q", ErrorPolicyAbort, ErrorPolicySkip, v)
		}
	}

	if v, ok := os.LookupEnv("MINIAPPQ_PROTOCOL_DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MINIAPPQ_PROTOCOL_DEBUG has invalid boolean %q: %w", v, err)
		}
		cfg.ProtocolDebug = debug
	}

	info, err := os.Stat(cfg.ProxyFile)
	if err != nil {
		return nil, fmt.Errorf("MINIAPPQ_PROXY_FILE %q: %w", cfg.ProxyFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("MINIAPPQ_PROXY_FILE %q is a directory", cfg.ProxyFile)
	}

	return cfg, nil
}

// parseBots splits a comma-separated bot list, e.g. "gamebot, otherbot".
func parseBots(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("MINIAPPQ_BOTS is required")
	}

	var bots []string
	seen := make(map[string]bool)
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if !botNamePattern.MatchString(name) {
			return nil, fmt.Errorf("MINIAPPQ_BOTS has invalid bot username %q: expected 'username1, username2'", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		bots = append(bots, name)
	}

	return bots, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %q", key, v)
	}
	return d, nil
}
