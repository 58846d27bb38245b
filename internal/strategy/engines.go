// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package strategy

import (
	"fmt"

	"github.com/baktainer/baktainer/internal/apperrors"
)

var mysqlTokens = []string{"mysql dump", "mysqldump", "create", "insert"}
var postgresTokens = []string{"postgresql database dump", "pg_dump", "create", "copy"}
var sqliteTokens = []string{"sqlite", "pragma", "create", "insert"}
var mongoTokens = []string{"mongodump", "bson", "collection"}

func requireOpts(opts Options, fields ...string) error {
	for _, f := range fields {
		var v string
		switch f {
		case "user":
			v = opts.User
		case "password":
			v = opts.Password
		case "database":
			v = opts.Database
		}
		if v == "" {
			return apperrors.New(apperrors.KindValidation, fmt.Sprintf("missing required option %q", f))
		}
	}
	return nil
}

type mysqlStrategy struct{}

func (mysqlStrategy) Command(opts Options) (Command, error) {
	if err := requireOpts(opts, "user", "password", "database"); err != nil {
		return Command{}, err
	}
	cmd := Command{
		Env: []string{},
		Cmd: []string{"mysqldump", "-u", opts.User, "-p" + opts.Password, opts.Database},
	}
	if err := validate(cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func (mysqlStrategy) Sniff(lines []string) bool {
	return sniffTokens(lines, mysqlTokens)
}

type mariadbStrategy struct{ mysqlStrategy }

func (mariadbStrategy) Sniff(lines []string) bool {
	return sniffTokens(lines, append(mysqlTokens, "mariadb dump"))
}

type postgresStrategy struct{}

func (postgresStrategy) Command(opts Options) (Command, error) {
	if opts.AllDatabases {
		if err := requireOpts(opts, "user", "password"); err != nil {
			return Command{}, err
		}
		cmd := Command{
			Env: []string{"PGPASSWORD=" + opts.Password},
			Cmd: []string{"pg_dumpall", "-U", opts.User},
		}
		if err := validate(cmd); err != nil {
			return Command{}, err
		}
		return cmd, nil
	}

	if err := requireOpts(opts, "user", "password", "database"); err != nil {
		return Command{}, err
	}
	cmd := Command{
		Env: []string{"PGPASSWORD=" + opts.Password},
		Cmd: []string{"pg_dump", "-U", opts.User, "-d", opts.Database},
	}
	if err := validate(cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func (postgresStrategy) Sniff(lines []string) bool {
	return sniffTokens(lines, postgresTokens)
}

type sqliteStrategy struct{}

func (sqliteStrategy) Command(opts Options) (Command, error) {
	if err := requireOpts(opts, "database"); err != nil {
		return Command{}, err
	}
	cmd := Command{
		Env: []string{},
		Cmd: []string{"sqlite3", opts.Database, ".dump"},
	}
	if err := validate(cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func (sqliteStrategy) Sniff(lines []string) bool {
	return sniffTokens(lines, sqliteTokens)
}

type mongodbStrategy struct{}

func (mongodbStrategy) Command(opts Options) (Command, error) {
	if err := requireOpts(opts, "database"); err != nil {
		return Command{}, err
	}
	argv := []string{"mongodump", "--db", opts.Database}
	if opts.User != "" && opts.Password != "" {
		argv = append(argv, "--username", opts.User, "--password", opts.Password)
	}
	cmd := Command{Env: []string{}, Cmd: argv}
	if err := validate(cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func (mongodbStrategy) Sniff(lines []string) bool {
	return sniffTokens(lines, mongoTokens)
}
