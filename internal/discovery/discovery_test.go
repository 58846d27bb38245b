// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/runtime"
)

type fakeClient struct {
	infos []runtime.ContainerInfo
	err   error
}

func (f *fakeClient) ListContainers(ctx context.Context) ([]runtime.ContainerInfo, error) {
	return f.infos, f.err
}

func (f *fakeClient) Exec(ctx context.Context, containerID string, cmd []string, env []string, out runtime.ExecOutput) error {
	return nil
}

func (f *fakeClient) Version(ctx context.Context) error {
	return nil
}

func validLabels() map[string]string {
	return map[string]string{
		"baktainer.backup":   "true",
		"baktainer.db.engine": "mysql",
		"baktainer.db.name":  "app",
		"baktainer.db.user":  "root",
		"baktainer.db.password": "secret",
	}
}

func TestScanFiltersByBackupLabel(t *testing.T) {
	client := &fakeClient{infos: []runtime.ContainerInfo{
		{ID: "1", Name: "backed-up", Labels: validLabels(), State: "running"},
		{ID: "2", Name: "ignored", Labels: map[string]string{"baktainer.backup": "false"}, State: "running"},
		{ID: "3", Name: "no-labels", Labels: nil, State: "running"},
	}}

	d := New(client, zerolog.Nop(), true)
	containers, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "backed-up", containers[0].Name)
	assert.Equal(t, "mysql", containers[0].Engine)
}

func TestScanKeepsInvalidDescriptorsForDownstreamRejection(t *testing.T) {
	labels := map[string]string{"baktainer.backup": "true"}
	client := &fakeClient{infos: []runtime.ContainerInfo{
		{ID: "1", Name: "broken", Labels: labels, State: "running"},
	}}

	d := New(client, zerolog.Nop(), true)
	containers, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Empty(t, containers[0].Engine)
}

func TestScanPropagatesRuntimeFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("daemon unreachable")}

	d := New(client, zerolog.Nop(), true)
	_, err := d.Scan(context.Background())
	require.Error(t, err)
}

func TestScanAcceptsAlternateBooleanSpellings(t *testing.T) {
	labels := validLabels()
	labels["baktainer.backup"] = "1"
	client := &fakeClient{infos: []runtime.ContainerInfo{
		{ID: "1", Name: "app", Labels: labels, State: "running"},
	}}

	d := New(client, zerolog.Nop(), true)
	containers, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
}

func TestScanNormalizesState(t *testing.T) {
	client := &fakeClient{infos: []runtime.ContainerInfo{
		{ID: "1", Name: "app", Labels: validLabels(), State: "stopped"},
	}}

	d := New(client, zerolog.Nop(), true)
	containers, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "stopped", string(containers[0].State))
}
