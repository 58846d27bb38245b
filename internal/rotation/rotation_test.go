// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package rotation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0o640))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestRotationByAge(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))

	recent := writeArtifact(t, dateDir, "app-1706745600.sql", 24*time.Hour)
	old := writeArtifact(t, dateDir, "app-1706054400.sql", 8*24*time.Hour)

	r := New(root, zerolog.Nop())
	result := r.Run(Policy{RetentionDays: 7})

	assert.Equal(t, 1, result.DeletedCount)
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recent)
	assert.NoError(t, err)
}

func TestRotationByCount(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))

	writeArtifact(t, dateDir, "app-1706745600.sql", 1*time.Hour)
	writeArtifact(t, dateDir, "app-1706742000.sql", 2*time.Hour)
	writeArtifact(t, dateDir, "app-1706738400.sql", 3*time.Hour)

	r := New(root, zerolog.Nop())
	result := r.Run(Policy{RetentionCount: 2})

	assert.Equal(t, 1, result.DeletedCount)
}

func TestRotationCountSkippedWhenZero(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))

	writeArtifact(t, dateDir, "app-1706745600.sql", 1*time.Hour)
	writeArtifact(t, dateDir, "app-1706742000.sql", 2*time.Hour)

	r := New(root, zerolog.Nop())
	result := r.Run(Policy{RetentionCount: 0})

	assert.Equal(t, 0, result.DeletedCount)
}

func TestRotationDeletesSidecar(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))

	path := writeArtifact(t, dateDir, "app-1706054400.sql", 8*24*time.Hour)
	meta := path + ".meta"
	require.NoError(t, os.WriteFile(meta, []byte("{}"), 0o640))

	r := New(root, zerolog.Nop())
	r.Run(Policy{RetentionDays: 7})

	_, err := os.Stat(meta)
	assert.True(t, os.IsNotExist(err))
}

func TestRotationEmptyDirSweep(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))
	writeArtifact(t, dateDir, "app-1706054400.sql", 8*24*time.Hour)

	r := New(root, zerolog.Nop())
	r.Run(Policy{RetentionDays: 7})

	_, err := os.Stat(dateDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRotationIgnoresNonMatchingFilenames(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))
	writeArtifact(t, dateDir, "app.tmp", 30*24*time.Hour)

	r := New(root, zerolog.Nop())
	result := r.Run(Policy{RetentionDays: 7})

	assert.Equal(t, 0, result.DeletedCount)
	_, err := os.Stat(filepath.Join(dateDir, "app.tmp"))
	assert.NoError(t, err)
}

func TestRotationNoPoliciesIsNoop(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))
	writeArtifact(t, dateDir, "app-1706054400.sql", 100*24*time.Hour)

	r := New(root, zerolog.Nop())
	result := r.Run(Policy{})

	assert.Equal(t, 0, result.DeletedCount)
}

func TestStatisticsAggregatesPerContainerAndDate(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))
	writeArtifact(t, dateDir, "app-1706745600.sql", 1*time.Hour)
	writeArtifact(t, dateDir, "other-1706745600.sql", 1*time.Hour)

	r := New(root, zerolog.Nop())
	containers, dates, err := r.Statistics()
	require.NoError(t, err)

	assert.Len(t, containers, 2)
	assert.Len(t, dates, 1)
	assert.Equal(t, 2, dates[0].Count)
}

func TestScanOnMissingDirReturnsEmpty(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "does-not-exist"), zerolog.Nop())
	result := r.Run(Policy{RetentionDays: 1})
	assert.Equal(t, 0, result.DeletedCount)
	assert.Empty(t, result.Errors)
}

func TestRunWithoutOverridesBehavesLikeGlobalOnly(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))
	old := writeArtifact(t, dateDir, "app-1706054400.sql", 8*24*time.Hour)

	r := New(root, zerolog.Nop())
	result := r.Run(Policy{RetentionDays: 7}, nil)

	assert.Equal(t, 1, result.DeletedCount)
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}

func TestPerContainerRetentionDaysOverrideExemptsContainer(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))

	exempt := writeArtifact(t, dateDir, "critical-1706054400.sql", 8*24*time.Hour)
	subject := writeArtifact(t, dateDir, "scratch-1706054400.sql", 8*24*time.Hour)

	r := New(root, zerolog.Nop())
	overrides := map[string]Policy{
		"critical": {RetentionDays: 30},
	}
	result := r.Run(Policy{RetentionDays: 7}, overrides)

	assert.Equal(t, 1, result.DeletedCount)
	_, err := os.Stat(exempt)
	assert.NoError(t, err, "critical's longer override should have kept it")
	_, err = os.Stat(subject)
	assert.True(t, os.IsNotExist(err), "scratch should still fall under the global policy")
}

func TestPerContainerRetentionCountOverrideIsHonored(t *testing.T) {
	root := t.TempDir()
	dateDir := filepath.Join(root, "2026-07-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o750))

	writeArtifact(t, dateDir, "app-1706745600.sql", 1*time.Hour)
	writeArtifact(t, dateDir, "app-1706742000.sql", 2*time.Hour)
	writeArtifact(t, dateDir, "app-1706738400.sql", 3*time.Hour)

	r := New(root, zerolog.Nop())
	overrides := map[string]Policy{
		"app": {RetentionCount: 1},
	}
	result := r.Run(Policy{RetentionCount: 2}, overrides)

	assert.Equal(t, 2, result.DeletedCount, "the override's count of 1 should win over the global 2")
}
