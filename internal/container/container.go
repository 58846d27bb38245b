// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package container defines the Container descriptor, the immutable value
// Discovery materializes for every backup-eligible peer container and that
// flows unchanged through Validator, Orchestrator and Monitor.
package container

import "github.com/baktainer/baktainer/internal/labelschema"

// State is the coarse runtime state of a container at discovery time.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateOther   State = "other"
)

// Container is an immutable descriptor of one backup candidate, combining
// the raw runtime facts (ID, name, labels, state) with the derived fields
// produced by labelschema.Validate.
type Container struct {
	ID     string
	Name   string
	Labels map[string]string
	State  State

	Engine                 string
	Database               string
	User                   string
	Password               string
	BackupName             string
	AllDatabases           bool
	CompressOverride       *bool
	EncryptOverride        *bool
	RetentionDaysOverride  *int
	RetentionCountOverride *int
	Priority               labelschema.Priority

	// ValidationWarnings carries any non-fatal LabelSchema warnings, surfaced
	// by the Validator and logged but never cause rejection on their own.
	ValidationWarnings []string
}

// FromLabelSchema builds a Container from the raw runtime facts and a
// labelschema.Result already computed for this container's labels.
// result.Valid and result.Errors are not recorded on the descriptor;
// Discovery logs a failed verdict and returns the descriptor regardless.
func FromLabelSchema(id, name string, labels map[string]string, state State, result labelschema.Result) Container {
	n := result.Normalized
	return Container{
		ID:                     id,
		Name:                   name,
		Labels:                 labels,
		State:                  state,
		Engine:                 n.Engine,
		Database:               n.Database,
		User:                   n.User,
		Password:               n.Password,
		BackupName:             n.Name,
		AllDatabases:           n.AllDatabases,
		CompressOverride:       n.CompressOverride,
		EncryptOverride:        n.EncryptOverride,
		RetentionDaysOverride:  n.RetentionDaysOverride,
		RetentionCountOverride: n.RetentionCountOverride,
		Priority:               n.Priority,
		ValidationWarnings:     result.Warnings,
	}
}
