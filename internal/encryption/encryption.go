// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package encryption implements AES-256-GCM at-rest encryption of backup
// artifacts, using a small framed header so a decrypting reader can confirm
// the algorithm before trusting any plaintext it produces.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/baktainer/baktainer/internal/apperrors"
)

const (
	magic        = "BAKT"
	formatVersion byte = 1
	algorithmName = "aes-256-gcm"
	ivSize        = 12
	tagSize       = 16
	keySize       = 32

	pbkdf2Iterations  = 100_000
	keySalt           = "baktainer-default-salt"
	passphraseSalt    = "baktainer-backup-encryption-salt"
)

// Algorithm identifies the AEAD scheme this package implements, for sidecar
// metadata and operator-facing output.
const Algorithm = algorithmName

// Sidecar is the extra metadata written beside an encrypted artifact.
type Sidecar struct {
	Algorithm      string `json:"algorithm"`
	OriginalFile   string `json:"original_file"`
	OriginalSize   int64  `json:"original_size"`
	EncryptedSize  int64  `json:"encrypted_size"`
	EncryptedAt    string `json:"encrypted_at"`
	KeyFingerprint string `json:"key_fingerprint"`
}

// ResolveKey implements the key-material resolution order from the data
// model: raw 32 bytes, then 64 hex chars, then a "base64:"-prefixed 32-byte
// payload, then PBKDF2-HMAC-SHA256 derivation from any other string.
func ResolveKey(material string) ([]byte, error) {
	if len(material) == keySize {
		return []byte(material), nil
	}
	if len(material) == 64 {
		if raw, err := hex.DecodeString(material); err == nil && len(raw) == keySize {
			return raw, nil
		}
	}
	if after, ok := cutPrefix(material, "base64:"); ok {
		raw, err := base64.StdEncoding.DecodeString(after)
		if err == nil && len(raw) == keySize {
			return raw, nil
		}
	}
	return pbkdf2.Key([]byte(material), []byte(keySalt), pbkdf2Iterations, keySize, sha256.New), nil
}

// ResolveKeyFromPassphrase derives a key from a passphrase using the
// passphrase-specific salt.
func ResolveKeyFromPassphrase(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(passphraseSalt), pbkdf2Iterations, keySize, sha256.New)
}

// KeyFingerprint returns the first 16 hex characters of sha256(key), used to
// let operators confirm which key encrypted an artifact without exposing it.
func KeyFingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])[:16]
}

// Encrypt reads plaintext from srcPath, writes the framed ciphertext to
// dstPath, and overwrites+unlinks srcPath on success. On any failure the
// partial ciphertext at dstPath is removed.
func Encrypt(key []byte, srcPath, dstPath string) error {
	plaintext, err := os.ReadFile(srcPath)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("read %s", srcPath), err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return apperrors.Wrap(apperrors.KindEncryption, "init cipher", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return apperrors.Wrap(apperrors.KindEncryption, "generate iv", err)
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	if err := writeEncrypted(dstPath, iv, ciphertext); err != nil {
		os.Remove(dstPath)
		return err
	}

	secureDelete(srcPath, int64(len(plaintext)))
	return nil
}

func writeEncrypted(dstPath string, iv, ciphertext []byte) error {
	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("create %s", dstPath), err)
	}
	defer f.Close()

	header := buildHeader()
	if _, err := f.Write(header); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "write header", err)
	}
	if _, err := f.Write(iv); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "write iv", err)
	}
	if _, err := f.Write(ciphertext); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "write ciphertext", err)
	}
	return nil
}

func buildHeader() []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(len(algorithmName)))
	buf.WriteString(algorithmName)
	return buf.Bytes()
}

// Decrypt reads the framed ciphertext at srcPath, validates the header,
// decrypts and authenticates it, and writes the recovered plaintext to
// dstPath. A tag mismatch returns an EncryptionError and removes dstPath.
func Decrypt(key []byte, srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("read %s", srcPath), err)
	}

	iv, ciphertext, err := parseHeader(data)
	if err != nil {
		return err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return apperrors.Wrap(apperrors.KindEncryption, "init cipher", err)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		os.Remove(dstPath)
		return apperrors.Wrap(apperrors.KindEncryption, "authentication failed", err)
	}

	if err := os.WriteFile(dstPath, plaintext, 0o640); err != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("write %s", dstPath), err)
	}
	return nil
}

func parseHeader(data []byte) (iv, ciphertext []byte, err error) {
	if len(data) < 6 {
		return nil, nil, apperrors.New(apperrors.KindEncryption, "truncated header")
	}
	if string(data[0:4]) != magic {
		return nil, nil, apperrors.New(apperrors.KindEncryption, "bad magic")
	}
	if data[4] != formatVersion {
		return nil, nil, apperrors.New(apperrors.KindEncryption, fmt.Sprintf("unsupported version %d", data[4]))
	}
	algLen := int(data[5])
	headerEnd := 6 + algLen
	if len(data) < headerEnd+ivSize+tagSize {
		return nil, nil, apperrors.New(apperrors.KindEncryption, "truncated payload")
	}
	if string(data[6:headerEnd]) != algorithmName {
		return nil, nil, apperrors.New(apperrors.KindEncryption, fmt.Sprintf("unsupported algorithm %q", data[6:headerEnd]))
	}

	iv = data[headerEnd : headerEnd+ivSize]
	ciphertext = data[headerEnd+ivSize:]
	return iv, ciphertext, nil
}

// VerifyKey round-trips a scratch payload through Encrypt/Decrypt to confirm
// key is usable, without touching any real artifact.
func VerifyKey(key []byte) error {
	dir, err := os.MkdirTemp("", "baktainer-keycheck-*")
	if err != nil {
		return apperrors.Wrap(apperrors.KindEncryption, "create scratch dir", err)
	}
	defer os.RemoveAll(dir)

	plainPath := dir + "/scratch.sql"
	cipherPath := dir + "/scratch.sql.encrypted"
	decryptedPath := dir + "/scratch.sql.dec"

	if err := os.WriteFile(plainPath, []byte("baktainer-key-verification"), 0o640); err != nil {
		return apperrors.Wrap(apperrors.KindEncryption, "write scratch plaintext", err)
	}
	if err := Encrypt(key, plainPath, cipherPath); err != nil {
		return err
	}
	return Decrypt(key, cipherPath, decryptedPath)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// secureDelete overwrites path with size random bytes, fsyncs, then unlinks
// it, on a best-effort basis: any failure here is ignored and not reported,
// since the ciphertext has already been durably written.
func secureDelete(path string, size int64) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o640)
	if err != nil {
		return
	}
	defer f.Close()

	randomData := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, randomData); err == nil {
		f.WriteAt(randomData, 0)
		f.Sync()
	}
	f.Close()
	os.Remove(path)
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return s, false
}
