// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/config"
	"github.com/baktainer/baktainer/internal/notifier"
)

func TestResolveEncryptionKeyReturnsNilWhenDisabled(t *testing.T) {
	cfg := &config.Config{EncryptionEnabled: false, EncryptionKey: "irrelevant"}
	key, err := resolveEncryptionKey(cfg)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestResolveEncryptionKeyUsesRawKeyMaterial(t *testing.T) {
	cfg := &config.Config{
		EncryptionEnabled: true,
		EncryptionKey:     "01234567890123456789012345678901", // 32 bytes
	}
	key, err := resolveEncryptionKey(cfg)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestResolveEncryptionKeyFallsBackToPassphrase(t *testing.T) {
	cfg := &config.Config{
		EncryptionEnabled:    true,
		EncryptionPassphrase: "correct horse battery staple",
	}
	key, err := resolveEncryptionKey(cfg)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestResolveEncryptionKeyReturnsNilWhenNeitherSourceSet(t *testing.T) {
	cfg := &config.Config{EncryptionEnabled: true}
	key, err := resolveEncryptionKey(cfg)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestParseChannelsConvertsStrings(t *testing.T) {
	got := parseChannels([]string{"log", "webhook", "slack"})
	assert.Equal(t, []notifier.Channel{"log", "webhook", "slack"}, got)
}

func TestParseChannelsHandlesEmpty(t *testing.T) {
	got := parseChannels(nil)
	assert.Empty(t, got)
}
