// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package strategy generates the engine-appropriate dump command for a
// backup-eligible container and sniffs its output for sanity, without ever
// spawning a process itself — that's the container runtime client's job.
package strategy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/baktainer/baktainer/internal/apperrors"
)

// executableWhitelist is the complete set of dump executables any Strategy
// may ever name as argv[0].
var executableWhitelist = map[string]bool{
	"mysqldump": true,
	"pg_dump":   true,
	"pg_dumpall": true,
	"sqlite3":   true,
	"mongodump": true,
}

const forbiddenChars = ";&|`$(){}[]<>"

// Command is an ordered, validated dump-command shape: an environment
// (ordered "KEY=VALUE" strings) and an argv (first element the executable).
type Command struct {
	Env []string
	Cmd []string
}

// Options carries the descriptor fields a Strategy needs to build a Command.
type Options struct {
	User         string
	Password     string
	Database     string
	AllDatabases bool
}

// Strategy generates a dump Command for one database engine and sniffs its
// output for a sanity check.
type Strategy interface {
	// Command builds the dump command for opts, validating the result
	// against the global whitelist and forbidden-character rules before
	// returning it.
	Command(opts Options) (Command, error)

	// Sniff reports whether any of the engine's expected content tokens
	// appear in lines (already lowercased). It is a warning-only check;
	// callers never treat a false result as fatal.
	Sniff(lines []string) bool
}

// Registry maps engine name to Strategy. The zero value is ready to use;
// Register is idempotent per name.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a Registry pre-populated with the built-in engines:
// mysql, mariadb, postgres, postgresql, sqlite, mongodb. The "custom" engine
// is deliberately not registered by default.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register("mysql", mysqlStrategy{})
	r.Register("mariadb", mariadbStrategy{})
	r.Register("postgres", postgresStrategy{})
	r.Register("postgresql", postgresStrategy{})
	r.Register("sqlite", sqliteStrategy{})
	r.Register("mongodb", mongodbStrategy{})
	return r
}

// Register adds or replaces the strategy for engine name.
func (r *Registry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.strategies == nil {
		r.strategies = make(map[string]Strategy)
	}
	r.strategies[name] = s
}

// ErrUnsupportedEngine is returned (wrapped) by Get for an unregistered engine.
var ErrUnsupportedEngine = fmt.Errorf("unsupported engine")

// Get returns the Strategy registered for engine, or a wrapped
// ErrUnsupportedEngine if none is registered.
func (r *Registry) Get(engine string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[engine]
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindSecurity, fmt.Sprintf("engine %q", engine), ErrUnsupportedEngine)
	}
	return s, nil
}

// validate enforces the BackupCommand invariants from the data model: argv[0]
// is whitelisted, and no argument contains a forbidden character, begins
// with "/", contains "..", or holds a control byte.
func validate(cmd Command) error {
	if len(cmd.Cmd) == 0 {
		return apperrors.New(apperrors.KindSecurity, "empty command")
	}
	exe := cmd.Cmd[0]
	if !executableWhitelist[exe] {
		return apperrors.New(apperrors.KindSecurity, fmt.Sprintf("command %q is not allowed", exe))
	}
	for _, arg := range cmd.Cmd {
		if err := validateArg(arg); err != nil {
			return err
		}
	}
	return nil
}

func validateArg(arg string) error {
	if strings.ContainsAny(arg, forbiddenChars) {
		return apperrors.New(apperrors.KindSecurity, fmt.Sprintf("argument %q contains a forbidden character", arg))
	}
	if strings.HasPrefix(arg, "/") {
		return apperrors.New(apperrors.KindSecurity, fmt.Sprintf("argument %q must not be an absolute path", arg))
	}
	if strings.Contains(arg, "..") {
		return apperrors.New(apperrors.KindSecurity, fmt.Sprintf("argument %q must not contain '..'", arg))
	}
	for _, b := range []byte(arg) {
		if b <= 0x1F || b == 0x7F {
			return apperrors.New(apperrors.KindSecurity, fmt.Sprintf("argument %q contains a control character", arg))
		}
	}
	return nil
}

// sniffTokens reports whether any token appears as a substring of any line.
func sniffTokens(lines []string, tokens []string) bool {
	for _, line := range lines {
		l := strings.ToLower(line)
		for _, tok := range tokens {
			if strings.Contains(l, tok) {
				return true
			}
		}
	}
	return false
}
