// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package discovery enumerates the container runtime once per cycle,
// filters for containers with baktainer.backup enabled, and wraps each one
// in a container.Container descriptor the rest of the pipeline consumes.
package discovery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baktainer/baktainer/internal/container"
	"github.com/baktainer/baktainer/internal/labelschema"
	"github.com/baktainer/baktainer/internal/metrics"
	"github.com/baktainer/baktainer/internal/runtime"
)

// Discovery enumerates backup-eligible containers on demand.
type Discovery struct {
	client               runtime.Client
	logger               zerolog.Logger
	encryptionConfigured bool
}

// New builds a Discovery backed by client. encryptionConfigured is forwarded
// to labelschema.Validate so baktainer.backup.encrypt=true without a
// configured key source is rejected as an error rather than silently
// accepted.
func New(client runtime.Client, logger zerolog.Logger, encryptionConfigured bool) *Discovery {
	return &Discovery{client: client, logger: logger, encryptionConfigured: encryptionConfigured}
}

// Scan enumerates every container the runtime knows about, keeps only those
// with baktainer.backup == true, and returns a Container descriptor for
// each. A per-container labelschema failure never aborts the scan: its
// errors are logged and the descriptor is still returned, with the schema's
// warnings in ValidationWarnings; the schema verdict itself is not carried
// on the descriptor. A runtime-level failure (the enumeration call itself
// failing) aborts the whole scan and returns the client's error unchanged.
func (d *Discovery) Scan(ctx context.Context) ([]container.Container, error) {
	infos, err := d.client.ListContainers(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("runtime enumeration failed")
		return nil, err
	}

	var out []container.Container
	for _, info := range infos {
		candidate, skip := d.wrap(info)
		if skip {
			continue
		}
		out = append(out, candidate)
	}

	metrics.DiscoveredContainers.Set(float64(len(out)))
	d.logger.Debug().Int("count", len(out)).Msg("discovery cycle complete")
	return out, nil
}

// wrap safely reads info's labels and applies the label schema. It never
// panics or returns an error for a single bad container: a container
// without baktainer.backup=true is skipped, and a container whose labels
// fail the schema is logged and still returned, per the "never abort the
// whole scan on one container" rule.
func (d *Discovery) wrap(info runtime.ContainerInfo) (container.Container, bool) {
	labels := info.Labels
	if labels == nil {
		return container.Container{}, true
	}

	backupVal, ok := labels["baktainer.backup"]
	if !ok || (backupVal != "true" && backupVal != "1" && backupVal != "yes" && backupVal != "on") {
		return container.Container{}, true
	}

	result := labelschema.Validate(info.Name, labels, d.encryptionConfigured)
	state := stateFromRuntime(info.State)
	c := container.FromLabelSchema(info.ID, info.Name, labels, state, result)

	if !result.Valid {
		d.logger.Warn().
			Str("container", info.Name).
			Strs("errors", result.Errors).
			Msg("discovered container fails label validation, will be rejected downstream")
	}
	for _, w := range result.Warnings {
		d.logger.Info().Str("container", info.Name).Str("warning", w).Msg("label schema warning")
	}

	return c, false
}

func stateFromRuntime(s string) container.State {
	switch s {
	case "running":
		return container.StateRunning
	case "stopped":
		return container.StateStopped
	default:
		return container.StateOther
	}
}
