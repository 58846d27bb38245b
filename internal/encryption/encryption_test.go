// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package encryption

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, keySize)
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.sql")
	enc := filepath.Join(dir, "hello.sql.encrypted")
	dec := filepath.Join(dir, "hello.sql.dec")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o640))
	require.NoError(t, Encrypt(key, src, enc))

	data, err := os.ReadFile(enc)
	require.NoError(t, err)
	assert.Equal(t, "BAKT", string(data[0:4]))
	assert.Equal(t, byte(1), data[4])
	assert.Equal(t, byte(len(algorithmName)), data[5])
	assert.Equal(t, algorithmName, string(data[6:6+len(algorithmName)]))

	require.NoError(t, Decrypt(key, enc, dec))
	plaintext, err := os.ReadFile(dec)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plaintext))
}

func TestDecryptFailsOnFlippedByte(t *testing.T) {
	key := make([]byte, keySize)
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.sql")
	enc := filepath.Join(dir, "hello.sql.encrypted")
	dec := filepath.Join(dir, "hello.sql.dec")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o640))
	require.NoError(t, Encrypt(key, src, enc))

	data, err := os.ReadFile(enc)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(enc, data, 0o640))

	err = Decrypt(key, enc, dec)
	require.Error(t, err)
	_, statErr := os.Stat(dec)
	assert.True(t, os.IsNotExist(statErr))
}

func TestResolveKeyRawBytes(t *testing.T) {
	raw := string(make([]byte, 32))
	key, err := ResolveKey(raw)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestResolveKeyHex(t *testing.T) {
	hex64 := ""
	for i := 0; i < 64; i++ {
		hex64 += "a"
	}
	key, err := ResolveKey(hex64)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestResolveKeyPBKDF2Fallback(t *testing.T) {
	key, err := ResolveKey("an arbitrary passphrase-like string")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	key2, err := ResolveKey("an arbitrary passphrase-like string")
	require.NoError(t, err)
	assert.Equal(t, key, key2, "derivation must be deterministic")
}

func TestVerifyKeyRoundTrip(t *testing.T) {
	key := make([]byte, keySize)
	assert.NoError(t, VerifyKey(key))
}

func TestKeyFingerprintLength(t *testing.T) {
	key := make([]byte, keySize)
	assert.Len(t, KeyFingerprint(key), 16)
}
