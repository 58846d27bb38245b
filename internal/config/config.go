// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package config loads and validates Baktainer's immutable runtime
// settings from defaults, an optional YAML file, and BT_-prefixed
// environment variables, in that order of increasing precedence.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/baktainer/baktainer/internal/validation"
)

// ConfigPathEnvVar overrides the searched default config file locations.
const ConfigPathEnvVar = "BT_CONFIG_PATH"

// DefaultConfigPaths lists the paths searched, in order, when
// BT_CONFIG_PATH is unset. The first file found is used.
var DefaultConfigPaths = []string{
	"baktainer.yaml",
	"baktainer.yml",
	"/etc/baktainer/baktainer.yaml",
	"/etc/baktainer/baktainer.yml",
}

// Config is the frozen, validated set of runtime settings.
type Config struct {
	RuntimeURL      string `koanf:"runtime_url" validate:"required"`
	CronSchedule    string `koanf:"cron_schedule" validate:"required"`
	Threads         int    `koanf:"threads" validate:"min=1,max=50"`
	LogLevel        string `koanf:"log_level" validate:"oneof=debug info warn error"`
	BackupDir       string `koanf:"backup_dir" validate:"required"`
	Compress        bool   `koanf:"compress"`
	RotationEnabled bool   `koanf:"rotation_enabled"`
	RetentionDays   int    `koanf:"retention_days" validate:"min=0,max=365"`
	RetentionCount  int    `koanf:"retention_count" validate:"min=0,max=1000"`
	MinFreeSpaceGB  int    `koanf:"min_free_space_gb" validate:"min=0,max=1000"`

	TLSEnabled bool   `koanf:"tls_enabled"`
	CA         string `koanf:"ca"`
	Cert       string `koanf:"cert"`
	Key        string `koanf:"key"`

	EncryptionEnabled    bool   `koanf:"encryption_enabled"`
	EncryptionKey        string `koanf:"encryption_key"`
	EncryptionKeyFile    string `koanf:"encryption_key_file"`
	EncryptionPassphrase string `koanf:"encryption_passphrase"`

	HealthServerEnabled bool   `koanf:"health_server_enabled"`
	HealthPort          int    `koanf:"health_port" validate:"min=1,max=65535"`
	HealthBind          string `koanf:"health_bind"`

	Notify NotifyConfig `koanf:"notify"`
}

// NotifyConfig mirrors internal/notifier.Config's shape, loaded as part of
// the same layered configuration.
type NotifyConfig struct {
	Channels          []string `koanf:"channels"`
	NotifySuccess     bool     `koanf:"success"`
	NotifyFailures    bool     `koanf:"failures"`
	NotifyWarnings    bool     `koanf:"warnings"`
	NotifyHealth      bool     `koanf:"health"`
	NotifySummary     bool     `koanf:"summary"`
	WebhookURL        string   `koanf:"webhook_url"`
	SlackWebhookURL   string   `koanf:"slack_webhook_url"`
	DiscordWebhookURL string   `koanf:"discord_webhook_url"`
	TeamsWebhookURL   string   `koanf:"teams_webhook_url"`
}

// ConfigError reports a configuration validation failure.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func defaultConfig() *Config {
	return &Config{
		RuntimeURL:          "unix:///var/run/docker.sock",
		CronSchedule:        "0 0 * * *",
		Threads:             4,
		LogLevel:            "info",
		BackupDir:           "/backups",
		Compress:            true,
		RotationEnabled:     true,
		RetentionDays:       30,
		RetentionCount:      0,
		MinFreeSpaceGB:      10,
		HealthServerEnabled: true,
		HealthPort:          8080,
		HealthBind:          "0.0.0.0",
		Notify: NotifyConfig{
			NotifyFailures: true,
			NotifyWarnings: true,
			NotifyHealth:   true,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file and BT_-
// prefixed environment variables (ENV > file > defaults), then validates
// it. The returned Config is never mutated afterward.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("BT_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processChannelsField(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if cfg.EncryptionKey == "" && cfg.EncryptionKeyFile != "" {
		data, err := os.ReadFile(cfg.EncryptionKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read encryption_key_file: %w", err)
		}
		cfg.EncryptionKey = strings.TrimRight(string(data), "\r\n")
		cfg.EncryptionKeyFile = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processChannelsField splits BT_NOTIFY_CHANNELS's comma-separated value
// into a slice, mirroring how env vars arrive as flat strings.
func processChannelsField(k *koanf.Koanf) error {
	val := k.Get("notify.channels")
	if val == nil {
		return nil
	}
	strVal, ok := val.(string)
	if !ok {
		return nil
	}
	if strVal == "" {
		return nil
	}
	parts := strings.Split(strVal, ",")
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return k.Set("notify.channels", trimmed)
}

// envTransformFunc maps the authoritative BT_* environment variable names
// from the recognized-options table to koanf dot-paths, e.g. BT_DOCKER_URL
// -> runtime_url, BT_SSL -> tls_enabled, BT_NOTIFICATION_CHANNELS ->
// notify.channels. Anything not in this table is left out of the
// configuration entirely rather than polluting it with a guessed path.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "bt_"))

	mappings := map[string]string{
		"docker_url":            "runtime_url",
		"cron":                  "cron_schedule",
		"threads":               "threads",
		"log_level":             "log_level",
		"backup_dir":            "backup_dir",
		"compress":              "compress",
		"ssl":                   "tls_enabled",
		"ca":                    "ca",
		"cert":                  "cert",
		"key":                   "key",
		"rotation_enabled":      "rotation_enabled",
		"retention_days":        "retention_days",
		"retention_count":       "retention_count",
		"min_free_space_gb":     "min_free_space_gb",
		"encryption_enabled":    "encryption_enabled",
		"encryption_key":        "encryption_key",
		"encryption_key_file":   "encryption_key_file",
		"encryption_passphrase": "encryption_passphrase",
		"notification_channels": "notify.channels",
		"notify_success":        "notify.success",
		"notify_failures":       "notify.failures",
		"notify_warnings":       "notify.warnings",
		"notify_health":         "notify.health",
		"notify_summary":        "notify.summary",
		"webhook_url":           "notify.webhook_url",
		"slack_webhook_url":     "notify.slack_webhook_url",
		"discord_webhook_url":   "notify.discord_webhook_url",
		"teams_webhook_url":     "notify.teams_webhook_url",
		"health_server_enabled": "health_server_enabled",
		"health_port":           "health_port",
		"health_bind":           "health_bind",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}

// Validate enforces every constraint from the recognized-options table.
// The first violation found is returned as a ConfigError.
func (c *Config) Validate() error {
	if !hasAnyPrefix(c.RuntimeURL, "unix://", "tcp://", "http://", "https://") {
		return &ConfigError{"runtime_url", "must begin with unix://, tcp://, http:// or https://"}
	}
	if len(strings.Fields(c.CronSchedule)) != 5 {
		return &ConfigError{"cron_schedule", "must have exactly 5 whitespace-separated fields"}
	}
	if c.Threads < 1 || c.Threads > 50 {
		return &ConfigError{"threads", "must be in [1,50]"}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{"log_level", "must be one of debug|info|warn|error"}
	}
	if !strings.HasPrefix(c.BackupDir, "/") {
		return &ConfigError{"backup_dir", "must be an absolute path"}
	}
	if c.RetentionDays < 0 || c.RetentionDays > 365 {
		return &ConfigError{"retention_days", "must be in [0,365]"}
	}
	if c.RetentionCount < 0 || c.RetentionCount > 1000 {
		return &ConfigError{"retention_count", "must be in [0,1000]"}
	}
	if c.MinFreeSpaceGB < 0 || c.MinFreeSpaceGB > 1000 {
		return &ConfigError{"min_free_space_gb", "must be in [0,1000]"}
	}

	if c.TLSEnabled {
		if c.CA == "" || c.Cert == "" || c.Key == "" {
			return &ConfigError{"tls", "ca, cert and key must all be non-empty when tls_enabled"}
		}
		if err := validateTLSMaterial(c.CA, c.Cert, c.Key); err != nil {
			return &ConfigError{"tls", err.Error()}
		}
	}

	if c.EncryptionEnabled {
		present := 0
		if c.EncryptionKey != "" {
			present++
		}
		if c.EncryptionKeyFile != "" {
			present++
		}
		if c.EncryptionPassphrase != "" {
			present++
		}
		if present != 1 {
			return &ConfigError{"encryption", "exactly one of encryption_key, encryption_key_file or encryption_passphrase must be set when encryption_enabled"}
		}
	}

	if verr := validation.ValidateStruct(c); verr != nil {
		return &ConfigError{"struct", verr.Error()}
	}

	return nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// validateTLSMaterial confirms the cert/key pair loads and the certificate
// is within its validity window. ca/cert/key may be inline PEM or file
// paths; loadPEM resolves either.
func validateTLSMaterial(ca, certPEM, keyPEM string) error {
	certData, err := loadPEM(certPEM)
	if err != nil {
		return fmt.Errorf("cert: %w", err)
	}
	keyData, err := loadPEM(keyPEM)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	caData, err := loadPEM(ca)
	if err != nil {
		return fmt.Errorf("ca: %w", err)
	}

	pair, err := tls.X509KeyPair(certData, keyData)
	if err != nil {
		return fmt.Errorf("cert/key mismatch: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return fmt.Errorf("ca: no certificates found")
	}

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}
	now := time.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate is not within its validity window")
	}

	return nil
}

// loadPEM treats value as inline PEM if it looks like one, otherwise reads
// it as a file path.
func loadPEM(value string) ([]byte, error) {
	if strings.Contains(value, "-----BEGIN") {
		return []byte(value), nil
	}
	return os.ReadFile(value)
}

// EffectiveThreads is a small convenience used by cmd/baktainer to size the
// worker pool consistently with the parsed configuration.
func (c *Config) EffectiveThreads() int {
	return c.Threads
}
