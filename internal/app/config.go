package app

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/utils"
)

type Config struct {
	Port           string
	Environment    string
	Version        string
	JWTSecretKey   string
	AllowedOrigins []string

	AuthStoreURL   string
	AuthStorePaths []string
	DeviceInfo     string

	SyncMaxAttempts int
	SyncBaseDelay   time.Duration
	SyncInterval    time.Duration
	SyncAutoDrain   bool

	RedisAddr    string
	RedisChannel string
}

// fileConfig is the optional YAML overlay pointed at by HERBTRACE_CONFIG.
// Environment variables still win for everything they set; the file mainly
// carries the list-valued settings that are awkward as env vars.
type fileConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthStore      struct {
		BaseURL string   `yaml:"base_url"`
		Paths   []string `yaml:"paths"`
	} `yaml:"auth_store"`
	Sync struct {
		MaxAttempts      int `yaml:"max_attempts"`
		BaseDelaySeconds int `yaml:"base_delay_seconds"`
		IntervalSeconds  int `yaml:"interval_seconds"`
	} `yaml:"sync"`
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:            utils.GetEnv("PORT", "8080", log),
		Environment:     utils.GetEnv("ENVIRONMENT", "development", log),
		Version:         utils.GetEnv("SERVICE_VERSION", "dev", log),
		JWTSecretKey:    utils.GetEnv("JWT_SECRET_KEY", "", log),
		AuthStoreURL:    utils.GetEnv("AUTH_STORE_URL", "", log),
		DeviceInfo:      utils.GetEnv("DEVICE_INFO", "", log),
		SyncMaxAttempts: utils.GetEnvAsInt("SYNC_MAX_ATTEMPTS", 3, log),
		SyncBaseDelay:   time.Duration(utils.GetEnvAsInt("SYNC_BASE_DELAY_SECONDS", 5, log)) * time.Second,
		SyncInterval:    time.Duration(utils.GetEnvAsInt("SYNC_INTERVAL_SECONDS", 60, log)) * time.Second,
		SyncAutoDrain:   utils.GetEnvAsBool("SYNC_AUTO_DRAIN", true, log),
		RedisAddr:       utils.GetEnv("REDIS_ADDR", "", log),
		RedisChannel:    utils.GetEnv("REDIS_CHANNEL", "herbtrace.batches", log),
	}
	if origins := utils.GetEnv("ALLOWED_ORIGINS", "", log); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}

	path := utils.GetEnv("HERBTRACE_CONFIG", "", log)
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("config file unreadable, using env only", "path", path, "error", err)
		return cfg
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		log.Warn("config file unparsable, using env only", "path", path, "error", err)
		return cfg
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if cfg.AuthStoreURL == "" {
		cfg.AuthStoreURL = fc.AuthStore.BaseURL
	}
	if len(fc.AuthStore.Paths) > 0 {
		cfg.AuthStorePaths = fc.AuthStore.Paths
	}
	if fc.Sync.MaxAttempts > 0 {
		cfg.SyncMaxAttempts = fc.Sync.MaxAttempts
	}
	if fc.Sync.BaseDelaySeconds > 0 {
		cfg.SyncBaseDelay = time.Duration(fc.Sync.BaseDelaySeconds) * time.Second
	}
	if fc.Sync.IntervalSeconds > 0 {
		cfg.SyncInterval = time.Duration(fc.Sync.IntervalSeconds) * time.Second
	}
	log.Info("config file loaded", "path", path)
	return cfg
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
