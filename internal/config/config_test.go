// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if len(kv) > 3 && kv[:3] == "BT_" {
			key := kv[:indexByte(kv, '=')]
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return len(s)
}

func TestLoadDefaultsAreValid(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0 0 * * *", cfg.CronSchedule)
	assert.Equal(t, 4, cfg.Threads)
	assert.True(t, cfg.Compress)
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("BT_THREADS", "8")
	t.Setenv("BT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadParsesNotifyChannels(t *testing.T) {
	clearEnv(t)
	t.Setenv("BT_NOTIFICATION_CHANNELS", "log, webhook ,slack")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "webhook", "slack"}, cfg.Notify.Channels)
}

func TestLoadDefaultsIncludeHealthServer(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.HealthServerEnabled)
	assert.Equal(t, 8080, cfg.HealthPort)
	assert.Equal(t, "0.0.0.0", cfg.HealthBind)
}

func TestLoadAppliesHealthServerEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("BT_HEALTH_SERVER_ENABLED", "false")
	t.Setenv("BT_HEALTH_PORT", "9090")
	t.Setenv("BT_HEALTH_BIND", "127.0.0.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.HealthServerEnabled)
	assert.Equal(t, 9090, cfg.HealthPort)
	assert.Equal(t, "127.0.0.1", cfg.HealthBind)
}

func TestLoadReadsEncryptionKeyFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	keyPath := dir + "/enc.key"
	require.NoError(t, os.WriteFile(keyPath, []byte("super-secret-key\n"), 0o600))
	t.Setenv("BT_ENCRYPTION_KEY_FILE", keyPath)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "super-secret-key", cfg.EncryptionKey)
	assert.Empty(t, cfg.EncryptionKeyFile)
}

func TestValidateRejectsBadThreads(t *testing.T) {
	cfg := defaultConfig()
	cfg.Threads = 0
	err := cfg.Validate()
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "threads", cerr.Field)
}

func TestValidateRejectsBadRuntimeURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.RuntimeURL = "ftp://example.com"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadCronSchedule(t *testing.T) {
	cfg := defaultConfig()
	cfg.CronSchedule = "* * *"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRelativeBackupDir(t *testing.T) {
	cfg := defaultConfig()
	cfg.BackupDir = "relative/path"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsTLSEnabledWithoutMaterial(t *testing.T) {
	cfg := defaultConfig()
	cfg.TLSEnabled = true
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEncryptionWithBothKeySources(t *testing.T) {
	cfg := defaultConfig()
	cfg.EncryptionEnabled = true
	cfg.EncryptionKey = "x"
	cfg.EncryptionPassphrase = "y"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEncryptionWithNoKeySource(t *testing.T) {
	cfg := defaultConfig()
	cfg.EncryptionEnabled = true
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsEncryptionWithOneKeySource(t *testing.T) {
	cfg := defaultConfig()
	cfg.EncryptionEnabled = true
	cfg.EncryptionKey = "x"
	assert.NoError(t, cfg.Validate())
}
