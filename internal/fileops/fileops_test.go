// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package fileops

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileOps() *FileOps {
	return New(zerolog.Nop())
}

func TestWriteAndVerifyCreated(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.sql")

	err := f.Write(path, func(w io.Writer) error {
		_, err := w.Write([]byte("hello world"))
		return err
	})
	require.NoError(t, err)

	size, err := f.VerifyCreated(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len("hello world")), size)
}

func TestVerifyCreatedRejectsEmpty(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.sql")
	require.NoError(t, os.WriteFile(path, nil, 0o640))

	_, err := f.VerifyCreated(path)
	assert.Error(t, err)
}

func TestCompressRoundTrip(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	src := filepath.Join(dir, "dump.sql")
	dst := filepath.Join(dir, "dump.sql.gz")
	content := []byte("-- PostgreSQL database dump\nCREATE TABLE t();\n")
	require.NoError(t, os.WriteFile(src, content, 0o640))

	require.NoError(t, f.Compress(src, dst))
	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source should be unlinked after compression")

	info, err := f.VerifyIntegrity(dst, true)
	require.NoError(t, err)
	assert.True(t, info.Size > 0)
	assert.NotEmpty(t, info.Checksum)
}

func TestChecksumDeterministic(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.sql")
	require.NoError(t, os.WriteFile(path, []byte("same content"), 0o640))

	sum1, err := f.Checksum(path)
	require.NoError(t, err)
	sum2, err := f.Checksum(path)
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2)
}

func TestVerifyIntegrityRejectsBelowMinimum(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.sql")
	require.NoError(t, os.WriteFile(path, []byte("123456789"), 0o640)) // 9 bytes < 10

	_, err := f.VerifyIntegrity(path, false)
	assert.Error(t, err)
}

func TestCleanupIsBestEffort(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists.sql")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o640))
	missing := filepath.Join(dir, "missing.sql")

	f.Cleanup([]string{existing, missing})
	_, err := os.Stat(existing)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteMetadataNeverFails(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.sql.meta")

	f.WriteMetadata(path, map[string]string{"container_name": "myapp"})
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "myapp")
}

func TestFreeSpaceReturnsPositive(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.True(t, free > 0)
}

func TestRenameAtomic(t *testing.T) {
	f := newTestFileOps()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o640))

	require.NoError(t, f.Rename(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, []byte("payload")))
}
