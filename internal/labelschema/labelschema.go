// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package labelschema declares the baktainer.* container label surface and
// validates/normalizes a raw label map into a typed, defaulted descriptor.
package labelschema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	labelBackup          = "baktainer.backup"
	labelName            = "baktainer.name"
	labelEngine          = "baktainer.db.engine"
	labelDatabase        = "baktainer.db.name"
	labelUser            = "baktainer.db.user"
	labelPassword        = "baktainer.db.password"
	labelAll             = "baktainer.db.all"
	labelCompress        = "baktainer.backup.compress"
	labelEncrypt         = "baktainer.backup.encrypt"
	labelRetentionDays   = "baktainer.backup.retention.days"
	labelRetentionCount  = "baktainer.backup.retention.count"
	labelPriority        = "baktainer.backup.priority"
	labelNamespacePrefix = "baktainer."
)

// SupportedEngines is the set of database engines the label schema accepts.
var SupportedEngines = map[string]bool{
	"mysql":      true,
	"mariadb":    true,
	"postgres":   true,
	"postgresql": true,
	"sqlite":     true,
}

var priorities = map[string]bool{
	"low":      true,
	"normal":   true,
	"high":     true,
	"critical": true,
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Priority is the informational scheduling priority attached to a descriptor.
// No prioritization is actually implemented by the worker pool; it is
// surfaced for operators and future use only.
type Priority string

// Normalized is the typed, defaulted view of a container's backup labels.
type Normalized struct {
	Backup                 bool
	Name                   string
	Engine                 string
	Database               string
	User                   string
	Password               string
	AllDatabases           bool
	CompressOverride       *bool
	EncryptOverride        *bool
	RetentionDaysOverride  *int
	RetentionCountOverride *int
	Priority               Priority
}

// Result is the outcome of validating one container's label map.
type Result struct {
	Valid      bool
	Errors     []string
	Warnings   []string
	Normalized Normalized
}

// Validate applies the declarative label schema to labels, producing a
// Result with normalized values and a valid/errors/warnings verdict.
// containerName is used as the default for baktainer.name when absent.
// encryptionConfigured tells the schema whether backup.encrypt=true without a
// configured key source should be rejected as an error.
func Validate(containerName string, labels map[string]string, encryptionConfigured bool) Result {
	var errs, warnings []string
	norm := Normalized{Priority: "normal"}

	backupVal, backupPresent := labels[labelBackup]
	backup, err := coerceBool(backupVal)
	if !backupPresent {
		errs = append(errs, fmt.Sprintf("%s is required", labelBackup))
	} else if err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", labelBackup, err))
	}
	norm.Backup = backup

	engine := strings.ToLower(strings.TrimSpace(labels[labelEngine]))
	if engine == "" {
		errs = append(errs, fmt.Sprintf("%s is required", labelEngine))
	} else if !SupportedEngines[engine] {
		errs = append(errs, fmt.Sprintf("%s: unsupported engine %q", labelEngine, engine))
	}
	norm.Engine = engine

	database := labels[labelDatabase]
	if len(database) < 1 || len(database) > 64 || !namePattern.MatchString(database) {
		errs = append(errs, fmt.Sprintf("%s must be 1-64 chars of [A-Za-z0-9_-]", labelDatabase))
	}
	norm.Database = database

	requiresCredentials := engine != "sqlite"
	norm.User = labels[labelUser]
	norm.Password = labels[labelPassword]
	if requiresCredentials {
		if norm.User == "" {
			errs = append(errs, fmt.Sprintf("%s is required for engine %q", labelUser, engine))
		}
		if norm.Password == "" {
			errs = append(errs, fmt.Sprintf("%s is required for engine %q", labelPassword, engine))
		}
	}

	norm.Name = containerName
	if v, ok := labels[labelName]; ok && v != "" {
		if !namePattern.MatchString(v) || len(v) > 64 {
			errs = append(errs, fmt.Sprintf("%s must be 1-64 chars of [A-Za-z0-9_-]", labelName))
		} else {
			norm.Name = v
		}
	}

	if v, ok := labels[labelAll]; ok {
		all, err := coerceBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", labelAll, err))
		}
		norm.AllDatabases = all
		if engine == "sqlite" {
			warnings = append(warnings, "baktainer.db.all has no effect for sqlite")
		}
		if all && database != "*" {
			warnings = append(warnings, fmt.Sprintf("%s=true but %s=%q; engine will still dump only the named database unless it supports a dump-all mode", labelAll, labelDatabase, database))
		}
	}
	if engine == "sqlite" && (norm.User != "" || norm.Password != "") {
		warnings = append(warnings, "user/password labels have no effect for sqlite")
	}

	if v, ok := labels[labelCompress]; ok {
		b, err := coerceBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", labelCompress, err))
		} else {
			norm.CompressOverride = &b
		}
	}

	if v, ok := labels[labelEncrypt]; ok {
		b, err := coerceBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", labelEncrypt, err))
		} else {
			norm.EncryptOverride = &b
			if b && !encryptionConfigured {
				errs = append(errs, fmt.Sprintf("%s=true but no encryption key is configured", labelEncrypt))
			}
		}
	}

	if v, ok := labels[labelRetentionDays]; ok {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 || days > 3650 {
			errs = append(errs, fmt.Sprintf("%s must be an integer in [1,3650]", labelRetentionDays))
		} else {
			norm.RetentionDaysOverride = &days
			if days < 7 {
				warnings = append(warnings, fmt.Sprintf("%s=%d is unusually short", labelRetentionDays, days))
			}
		}
	}

	if v, ok := labels[labelRetentionCount]; ok {
		count, err := strconv.Atoi(v)
		if err != nil || count < 0 || count > 1000 {
			errs = append(errs, fmt.Sprintf("%s must be an integer in [0,1000]", labelRetentionCount))
		} else {
			norm.RetentionCountOverride = &count
		}
	}

	if v, ok := labels[labelPriority]; ok {
		p := strings.ToLower(strings.TrimSpace(v))
		if !priorities[p] {
			errs = append(errs, fmt.Sprintf("%s must be one of low|normal|high|critical", labelPriority))
		} else {
			norm.Priority = Priority(p)
		}
	}

	for key := range labels {
		if strings.HasPrefix(key, labelNamespacePrefix) && !knownLabels[key] {
			warnings = append(warnings, fmt.Sprintf("unknown label %q", key))
		}
	}

	return Result{
		Valid:      len(errs) == 0,
		Errors:     errs,
		Warnings:   warnings,
		Normalized: norm,
	}
}

var knownLabels = map[string]bool{
	labelBackup: true, labelName: true, labelEngine: true, labelDatabase: true,
	labelUser: true, labelPassword: true, labelAll: true, labelCompress: true,
	labelEncrypt: true, labelRetentionDays: true, labelRetentionCount: true,
	labelPriority: true,
}

// coerceBool implements the schema's boolean coercion: true|1|yes|on -> true;
// false|0|no|off -> false; anything else is an error.
func coerceBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", v)
	}
}
