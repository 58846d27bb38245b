// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package monitor records the outcome of every backup attempt in a
// thread-safe bounded ring, derives alerts and a rolling summary from it,
// feeds the Prometheus collectors in internal/metrics, and notifies an
// attached Notifier of each outcome.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/baktainer/baktainer/internal/metrics"
)

const (
	recordsCapacity = 1000
	alertsCapacity  = 100

	slowBackupThreshold  = 600 * time.Second
	smallBackupThreshold = 1024 // bytes
	repeatedFailureWindow = 10
	repeatedFailureCount  = 3
)

// Status is the outcome of one backup attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// AlertType identifies which alerting rule raised an Alert.
type AlertType string

const (
	AlertSlowBackup        AlertType = "slow_backup"
	AlertSmallBackup       AlertType = "small_backup"
	AlertRepeatedFailures  AlertType = "repeated_failures"
)

// Record is one append-only entry in the backup history ring.
type Record struct {
	ContainerName   string    `json:"container_name"`
	Engine          string    `json:"engine"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
	FileSizeBytes   int64     `json:"file_size_bytes"`
	FilePath        string    `json:"file_path,omitempty"`
	Status          Status    `json:"status"`
	Error           string    `json:"error,omitempty"`
}

// Alert is a derived condition surfaced to operators and the Notifier.
type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is the derived rolling view returned by Summary().
type Summary struct {
	Total         int       `json:"total"`
	Successful    int       `json:"successful"`
	Failed        int       `json:"failed"`
	SuccessRate   float64   `json:"success_rate"`
	AvgDuration   float64   `json:"avg_duration"`
	AvgSize       float64   `json:"avg_size"`
	TotalData     int64     `json:"total_data"`
	ActiveAlerts  int       `json:"active_alerts"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Event is what Monitor hands to an attached Notifier on complete/fail.
type Event struct {
	Kind          string // "success" | "failure"
	ContainerName string
	Record        Record
	Alert         *Alert
}

// Notifier is the subset of internal/notifier.Notifier Monitor depends on.
type Notifier interface {
	Dispatch(ctx context.Context, event Event)
}

// Monitor tracks in-flight attempts and a bounded history of completed ones.
type Monitor struct {
	inFlight sync.Map // container name -> startInfo

	mu      sync.Mutex
	records []Record
	head    int
	count   int

	alerts     []Alert
	alertsHead int
	alertCount int

	notifier Notifier
}

type startInfo struct {
	engine string
	start  time.Time
}

// New creates an empty Monitor with the bounded ring capacities spec'd in
// the data model (1000 records, 100 alerts).
func New() *Monitor {
	return &Monitor{
		records: make([]Record, recordsCapacity),
		alerts:  make([]Alert, alertsCapacity),
	}
}

// SetNotifier attaches n so Monitor can emit events on complete/fail. Nil is
// valid and disables notification.
func (m *Monitor) SetNotifier(n Notifier) {
	m.notifier = n
}

// Start records that a backup attempt for name has begun.
func (m *Monitor) Start(name, engine string) {
	m.inFlight.Store(name, startInfo{engine: engine, start: time.Now()})
	metrics.BackupsInFlight.Inc()
}

// Complete records a successful attempt, computing duration from the
// matching Start call.
func (m *Monitor) Complete(ctx context.Context, name, path string, size int64) {
	info, duration := m.takeInFlight(name)

	rec := Record{
		ContainerName:   name,
		Engine:          info.engine,
		Timestamp:       time.Now(),
		DurationSeconds: duration.Seconds(),
		FileSizeBytes:   size,
		FilePath:        path,
		Status:          StatusSuccess,
	}
	m.append(rec)

	metrics.BackupsTotal.WithLabelValues(name, info.engine, "success").Inc()
	metrics.BackupDuration.WithLabelValues(name, info.engine).Observe(duration.Seconds())
	metrics.BackupArtifactBytes.WithLabelValues(name, info.engine).Observe(float64(size))
	metrics.BackupLastSuccessTimestamp.WithLabelValues(name).Set(float64(rec.Timestamp.Unix()))

	alert := m.evaluateAlerts(rec)
	m.notify(ctx, Event{Kind: "success", ContainerName: name, Record: rec, Alert: alert})
}

// Fail records a failed attempt.
func (m *Monitor) Fail(ctx context.Context, name string, cause error) {
	info, duration := m.takeInFlight(name)

	rec := Record{
		ContainerName:   name,
		Engine:          info.engine,
		Timestamp:       time.Now(),
		DurationSeconds: duration.Seconds(),
		Status:          StatusFailed,
		Error:           cause.Error(),
	}
	m.append(rec)

	metrics.BackupsTotal.WithLabelValues(name, info.engine, "failed").Inc()

	alert := m.evaluateAlerts(rec)
	m.notify(ctx, Event{Kind: "failure", ContainerName: name, Record: rec, Alert: alert})
}

func (m *Monitor) takeInFlight(name string) (startInfo, time.Duration) {
	metrics.BackupsInFlight.Dec()
	v, ok := m.inFlight.LoadAndDelete(name)
	if !ok {
		return startInfo{}, 0
	}
	info := v.(startInfo)
	return info, time.Since(info.start)
}

func (m *Monitor) append(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[m.head] = rec
	m.head = (m.head + 1) % recordsCapacity
	if m.count < recordsCapacity {
		m.count++
	}
}

func (m *Monitor) addAlert(a Alert) {
	m.alerts[m.alertsHead] = a
	m.alertsHead = (m.alertsHead + 1) % alertsCapacity
	if m.alertCount < alertsCapacity {
		m.alertCount++
	}
	metrics.AlertsRaisedTotal.WithLabelValues("warning", string(a.Type)).Inc()
}

// evaluateAlerts applies the three alerting rules and raises at most one
// alert per call. Caller must not hold m.mu.
func (m *Monitor) evaluateAlerts(rec Record) *Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.DurationSeconds > slowBackupThreshold.Seconds() {
		a := m.newAlert(AlertSlowBackup, "backup for "+rec.ContainerName+" took longer than 600s")
		m.addAlert(a)
		return &a
	}
	if rec.Status == StatusSuccess && rec.FileSizeBytes < smallBackupThreshold {
		a := m.newAlert(AlertSmallBackup, "backup for "+rec.ContainerName+" produced a suspiciously small artifact")
		m.addAlert(a)
		return &a
	}
	if rec.Status == StatusFailed && m.recentFailureCountLocked(rec.ContainerName) >= repeatedFailureCount {
		a := m.newAlert(AlertRepeatedFailures, "repeated failures for "+rec.ContainerName)
		m.addAlert(a)
		return &a
	}
	return nil
}

func (m *Monitor) newAlert(t AlertType, msg string) Alert {
	return Alert{ID: uuid.NewString(), Type: t, Message: msg, Timestamp: time.Now()}
}

// recentFailureCountLocked counts failures for name among the last 10
// records. Caller must hold m.mu.
func (m *Monitor) recentFailureCountLocked(name string) int {
	n := 0
	recent := m.recentLocked(repeatedFailureWindow)
	for _, r := range recent {
		if r.ContainerName == name && r.Status == StatusFailed {
			n++
		}
	}
	return n
}

func (m *Monitor) notify(ctx context.Context, event Event) {
	if m.notifier != nil {
		m.notifier.Dispatch(ctx, event)
	}
}

// Summary returns the derived rolling view: success rate is computed over
// at most the last 100 records.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.recentLocked(100)
	var successful, failed int
	var durationSum, sizeSum float64
	var totalData int64
	for _, r := range window {
		if r.Status == StatusSuccess {
			successful++
			durationSum += r.DurationSeconds
			sizeSum += float64(r.FileSizeBytes)
			totalData += r.FileSizeBytes
		} else {
			failed++
		}
	}

	total := successful + failed
	s := Summary{
		Total:        total,
		Successful:   successful,
		Failed:       failed,
		TotalData:    totalData,
		ActiveAlerts: m.alertCount,
		LastUpdated:  time.Now(),
	}
	if total > 0 {
		s.SuccessRate = float64(successful) / float64(total) * 100
	}
	if successful > 0 {
		s.AvgDuration = durationSum / float64(successful)
		s.AvgSize = sizeSum / float64(successful)
	}
	return s
}

// PerContainer returns every record for name, oldest first.
func (m *Monitor) PerContainer(name string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.allLocked() {
		if r.ContainerName == name {
			out = append(out, r)
		}
	}
	return out
}

// Recent returns the n most recent records, newest first.
func (m *Monitor) Recent(n int) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recentLocked(n)
}

// Failures returns the n most recent failed records, newest first.
func (m *Monitor) Failures(n int) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.recentLocked(m.count) {
		if len(out) >= n {
			break
		}
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Alerts returns the most recent alerts, newest first.
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, m.alertCount)
	for i := 0; i < m.alertCount; i++ {
		idx := (m.alertsHead - 1 - i + alertsCapacity) % alertsCapacity
		out = append(out, m.alerts[idx])
	}
	return out
}

// recentLocked returns the n most recent records newest-first. Caller must
// hold m.mu.
func (m *Monitor) recentLocked(n int) []Record {
	if n > m.count {
		n = m.count
	}
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		idx := (m.head - 1 - i + recordsCapacity) % recordsCapacity
		out = append(out, m.records[idx])
	}
	return out
}

func (m *Monitor) allLocked() []Record {
	return m.recentLocked(m.count)
}

// Format selects the encoding Export produces.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Export serializes the full record history in the requested format.
func (m *Monitor) Export(format Format) ([]byte, error) {
	m.mu.Lock()
	records := m.recentLocked(m.count)
	m.mu.Unlock()

	switch format {
	case FormatCSV:
		return exportCSV(records), nil
	default:
		return json.Marshal(records)
	}
}

func exportCSV(records []Record) []byte {
	var buf []byte
	buf = append(buf, "container_name,timestamp,duration_seconds,file_size_bytes,status,error\n"...)
	for _, r := range records {
		buf = append(buf, r.ContainerName+","+
			r.Timestamp.Format(time.RFC3339)+","+
			formatFloat(r.DurationSeconds)+","+
			formatInt(r.FileSizeBytes)+","+
			string(r.Status)+","+
			r.Error+"\n"...)
	}
	return buf
}
