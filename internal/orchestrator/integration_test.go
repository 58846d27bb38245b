// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

//go:build integration

package orchestrator_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/baktainer/baktainer/internal/container"
	"github.com/baktainer/baktainer/internal/discovery"
	"github.com/baktainer/baktainer/internal/fileops"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/orchestrator"
	"github.com/baktainer/baktainer/internal/runtime"
	"github.com/baktainer/baktainer/internal/strategy"
	"github.com/baktainer/baktainer/internal/testinfra"
)

// TestDiscoveryOrchestratorAgainstRealPostgres exercises the full pipeline
// (runtime enumeration -> discovery -> orchestrator dump) against a real
// Postgres container, rather than the fake runtime.Client the unit tests use
// everywhere else in this package.
func TestDiscoveryOrchestratorAgainstRealPostgres(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "baktainer",
			"POSTGRES_PASSWORD": "baktainer",
			"POSTGRES_DB":       "appdb",
		},
		Labels: map[string]string{
			"baktainer.backup":      "true",
			"baktainer.name":        "integration-postgres",
			"baktainer.db.engine":   "postgres",
			"baktainer.db.name":     "appdb",
			"baktainer.db.user":     "baktainer",
			"baktainer.db.password": "baktainer",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		Logger:           testinfra.NewContainerLogger(t),
	})
	require.NoError(t, err)
	defer testinfra.CleanupContainer(t, ctx, pgContainer)

	runtimeClient, err := runtime.New("unix:///var/run/docker.sock", nil)
	require.NoError(t, err)

	logger := zerolog.Nop()
	disc := discovery.New(runtimeClient, logger, false)

	containers, err := disc.Scan(ctx)
	require.NoError(t, err)

	var target *container.Container
	for i := range containers {
		if containers[i].Labels["baktainer.name"] == "integration-postgres" {
			target = &containers[i]
			break
		}
	}
	require.NotNil(t, target, "discovery did not surface the test container")

	backupDir := t.TempDir()
	mon := monitor.New()
	orch := orchestrator.New(backupDir, orchestrator.Config{
		CompressDefault: false,
		EncryptDefault:  false,
	}, fileops.New(logger), strategy.NewRegistry(), runtimeClient, mon, logger)

	result, err := orch.Run(ctx, *target)
	require.NoError(t, err, "expected the backup pipeline to succeed against a live postgres container")
	require.NotEmpty(t, result.Path, "expected a written artifact path")
	require.Greater(t, result.Size, int64(0), "expected a non-empty dump")

	_, statErr := os.Stat(result.Path)
	require.NoError(t, statErr, "artifact file should exist on disk")

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries, "expected at least one artifact entry under the backup dir")
}
