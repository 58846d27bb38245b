// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package notifier

import "strconv"

func formatIntField(i int64) string {
	return strconv.FormatInt(i, 10)
}

func formatFloatField(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
