// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteRecordsSuccess(t *testing.T) {
	m := New()
	m.Start("myapp", "postgres")
	m.Complete(context.Background(), "myapp", "/backups/myapp.sql.gz", 2048)

	s := m.Summary()
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, float64(100), s.SuccessRate)
}

func TestFailRecordsFailure(t *testing.T) {
	m := New()
	m.Start("myapp", "postgres")
	m.Fail(context.Background(), "myapp", errors.New("boom"))

	s := m.Summary()
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, float64(0), s.SuccessRate)
}

func TestSuccessfulPlusFailedEqualsTotal(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Start("a", "mysql")
		m.Complete(context.Background(), "a", "/x", 100)
	}
	for i := 0; i < 3; i++ {
		m.Start("a", "mysql")
		m.Fail(context.Background(), "a", errors.New("x"))
	}
	s := m.Summary()
	assert.Equal(t, s.Total, s.Successful+s.Failed)
	assert.Equal(t, 8, s.Total)
}

func TestSmallBackupAlert(t *testing.T) {
	m := New()
	m.Start("myapp", "mysql")
	m.Complete(context.Background(), "myapp", "/x", 10)

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSmallBackup, alerts[0].Type)
}

func TestRepeatedFailuresAlert(t *testing.T) {
	m := New()
	for i := 0; i < 3; i++ {
		m.Start("myapp", "mysql")
		m.Fail(context.Background(), "myapp", errors.New("connection refused"))
	}
	alerts := m.Alerts()
	var found bool
	for _, a := range alerts {
		if a.Type == AlertRepeatedFailures {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRingBufferBounded(t *testing.T) {
	m := New()
	for i := 0; i < recordsCapacity+10; i++ {
		m.Start("a", "mysql")
		m.Complete(context.Background(), "a", "/x", 4096)
	}
	recent := m.Recent(recordsCapacity + 10)
	assert.Len(t, recent, recordsCapacity)
}

type fakeNotifier struct {
	events []Event
}

func (f *fakeNotifier) Dispatch(_ context.Context, event Event) {
	f.events = append(f.events, event)
}

func TestNotifierReceivesEvents(t *testing.T) {
	m := New()
	n := &fakeNotifier{}
	m.SetNotifier(n)

	m.Start("myapp", "postgres")
	m.Complete(context.Background(), "myapp", "/x", 4096)

	require.Len(t, n.events, 1)
	assert.Equal(t, "success", n.events[0].Kind)
}

func TestExportJSON(t *testing.T) {
	m := New()
	m.Start("myapp", "postgres")
	m.Complete(context.Background(), "myapp", "/x", 4096)

	data, err := m.Export(FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), "myapp")
}

func TestPerContainerFiltersByName(t *testing.T) {
	m := New()
	m.Start("a", "mysql")
	m.Complete(context.Background(), "a", "/a", 4096)
	m.Start("b", "mysql")
	m.Complete(context.Background(), "b", "/b", 4096)

	records := m.PerContainer("a")
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ContainerName)
}

func TestSlowBackupAlertNotTriggeredBelowThreshold(t *testing.T) {
	m := New()
	m.inFlight.Store("myapp", startInfo{engine: "mysql", start: time.Now()})
	m.Complete(context.Background(), "myapp", "/x", 4096)

	for _, a := range m.Alerts() {
		assert.NotEqual(t, AlertSlowBackup, a.Type)
	}
}
