// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package healthserver

import (
	"net/http"
	"strconv"
	"time"
)

// healthResponse is the shape returned by /health.
type healthResponse struct {
	Status  string  `json:"status"`
	Runtime bool    `json:"runtime_connected"`
	Uptime  float64 `json:"uptime_seconds"`
}

// handleHealth reports overall health: the process is alive and the
// container runtime is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	runtimeOK := s.runtime != nil && s.runtime.Version(r.Context()) == nil

	status := "healthy"
	code := http.StatusOK
	if !runtimeOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, healthResponse{
		Status:  status,
		Runtime: runtimeOK,
		Uptime:  time.Since(s.startTime).Seconds(),
	})
}

// handleLive is a liveness probe: 200 if the process can answer HTTP at
// all, regardless of the runtime's reachability.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// handleReady is a readiness probe: 200 only once the runtime responds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.runtime == nil || s.runtime.Version(r.Context()) != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ready": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

// handleStatus returns Monitor's rolling summary.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.mon.Summary())
}

// dashboardResponse combines Monitor's summary with Rotation's aggregates
// for a single-call dashboard payload.
type dashboardResponse struct {
	Summary    interface{}             `json:"summary"`
	Containers []rotationContainerStat `json:"containers,omitempty"`
	Dates      []rotationDateStat      `json:"dates,omitempty"`
}

type rotationContainerStat struct {
	Container string    `json:"container"`
	Count     int       `json:"count"`
	TotalSize int64     `json:"total_size"`
	Oldest    time.Time `json:"oldest"`
	Newest    time.Time `json:"newest"`
}

type rotationDateStat struct {
	Date      string `json:"date"`
	Count     int    `json:"count"`
	TotalSize int64  `json:"total_size"`
}

// handleDashboard projects both Monitor and Rotation state for an
// operator-facing view. Rotation statistics are omitted if no Rotation is
// attached or the scan fails.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	resp := dashboardResponse{Summary: s.mon.Summary()}

	if s.rotation != nil {
		if containerStats, dateStats, err := s.rotation.Statistics(); err == nil {
			for _, cs := range containerStats {
				resp.Containers = append(resp.Containers, rotationContainerStat{
					Container: cs.Container,
					Count:     cs.Count,
					TotalSize: cs.TotalSize,
					Oldest:    cs.Oldest,
					Newest:    cs.Newest,
				})
			}
			for _, ds := range dateStats {
				resp.Dates = append(resp.Dates, rotationDateStat{
					Date:      ds.Date,
					Count:     ds.Count,
					TotalSize: ds.TotalSize,
				})
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleBackups lists the most recent backup records. ?limit= caps the
// count (default 100, max 1000).
func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 1000)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"backups": s.mon.Recent(limit),
	})
}

// handleAlerts lists the most recent alerts, newest first.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": s.mon.Alerts(),
	})
}

// parseLimit reads ?limit= with a default and a hard cap, tolerating a
// missing or malformed value by falling back to def.
func parseLimit(r *http.Request, def, max int) int {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
