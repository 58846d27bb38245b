// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package monitor

import "strconv"

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
