// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package backupvalidator gates a discovered container descriptor before it
// is handed to the Orchestrator: the descriptor must be non-null, running,
// carry labels, and pass either the LabelSchema verdict or, for legacy
// callers that never ran LabelSchema, a minimal set of checks.
package backupvalidator

import (
	"strings"

	"github.com/baktainer/baktainer/internal/container"
	"github.com/baktainer/baktainer/internal/labelschema"
)

// ValidationError bundles every failure found for one container into a
// single error so the caller can log or report them together.
type ValidationError struct {
	ContainerName string
	Failures      []string
}

func (e *ValidationError) Error() string {
	return "validation failed for " + e.ContainerName + ": " + strings.Join(e.Failures, "; ")
}

// legacySupportedEngines is labelschema.SupportedEngines plus mongodb, for
// callers that bypass LabelSchema entirely (pre-normalized descriptors).
var legacySupportedEngines = map[string]bool{
	"mysql":      true,
	"mariadb":    true,
	"postgres":   true,
	"postgresql": true,
	"sqlite":     true,
	"mongodb":    true,
}

// Validate gates c. When schemaResult is non-nil, its verdict is
// authoritative; otherwise the minimal legacy checks run directly against
// c's already-derived fields.
func Validate(c *container.Container, schemaResult *labelschema.Result) error {
	var failures []string

	if c == nil {
		return &ValidationError{ContainerName: "<unknown>", Failures: []string{"descriptor is nil"}}
	}

	if c.State != container.StateRunning {
		failures = append(failures, "container is not running")
	}
	if len(c.Labels) == 0 {
		failures = append(failures, "container has no labels")
	}

	if schemaResult != nil {
		if !schemaResult.Valid {
			failures = append(failures, schemaResult.Errors...)
		}
	} else {
		failures = append(failures, legacyChecks(c)...)
	}

	if len(failures) > 0 {
		return &ValidationError{ContainerName: c.Name, Failures: failures}
	}
	return nil
}

// legacyChecks applies the minimal checks a caller must pass when
// LabelSchema was never run: backup enabled, engine defined and supported,
// and user+password present for every engine but sqlite.
func legacyChecks(c *container.Container) []string {
	var failures []string

	if v, ok := c.Labels["baktainer.backup"]; !ok || strings.ToLower(strings.TrimSpace(v)) != "true" {
		failures = append(failures, "baktainer.backup is not enabled")
	}

	engine := strings.ToLower(strings.TrimSpace(c.Engine))
	if engine == "" {
		failures = append(failures, "engine is not defined")
	} else if !legacySupportedEngines[engine] {
		failures = append(failures, "engine "+engine+" is not supported")
	}

	if engine != "sqlite" {
		if c.User == "" {
			failures = append(failures, "user is required")
		}
		if c.Password == "" {
			failures = append(failures, "password is required")
		}
	}

	return failures
}
