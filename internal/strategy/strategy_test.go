// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLCommandShape(t *testing.T) {
	s := mysqlStrategy{}
	cmd, err := s.Command(Options{User: "u", Password: "p", Database: "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mysqldump", "-u", "u", "-pp", "d"}, cmd.Cmd)
	assert.Empty(t, cmd.Env)
}

func TestPostgresAllCommandShape(t *testing.T) {
	s := postgresStrategy{}
	cmd, err := s.Command(Options{User: "pg", Password: "pw", AllDatabases: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"PGPASSWORD=pw"}, cmd.Env)
	assert.Equal(t, []string{"pg_dumpall", "-U", "pg"}, cmd.Cmd)
}

func TestPostgresSingleDatabase(t *testing.T) {
	s := postgresStrategy{}
	cmd, err := s.Command(Options{User: "postgres", Password: "pw", Database: "appdb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pg_dump", "-U", "postgres", "-d", "appdb"}, cmd.Cmd)
}

func TestRegistryUnsupportedEngine(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("custom")
	assert.ErrorIs(t, err, ErrUnsupportedEngine)
}

func TestRegistryExtensible(t *testing.T) {
	r := NewRegistry()
	r.Register("mysql", mysqlStrategy{})
	s, err := r.Get("mysql")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestValidateRejectsDangerousCommand(t *testing.T) {
	err := validate(Command{Cmd: []string{"rm", "-rf", "/"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestValidateRejectsForbiddenCharacters(t *testing.T) {
	err := validate(Command{Cmd: []string{"mysqldump", "-u", "u", "-pp", "d; rm -rf /"}})
	require.Error(t, err)
}

func TestSniffIsWarningOnly(t *testing.T) {
	s := postgresStrategy{}
	assert.True(t, s.Sniff([]string{"-- PostgreSQL database dump"}))
	assert.False(t, s.Sniff([]string{"totally unrelated content"}))
}

func TestSQLiteCommandShape(t *testing.T) {
	s := sqliteStrategy{}
	cmd, err := s.Command(Options{Database: "appdb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sqlite3", "appdb", ".dump"}, cmd.Cmd)
}

func TestMongoCommandWithCredentials(t *testing.T) {
	s := mongodbStrategy{}
	cmd, err := s.Command(Options{Database: "appdb", User: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mongodump", "--db", "appdb", "--username", "u", "--password", "p"}, cmd.Cmd)
}
