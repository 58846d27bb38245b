// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package rotation applies the age, count, free-space and empty-directory
// passes to the backup directory once per cycle.
package rotation

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/baktainer/baktainer/internal/fileops"
	"github.com/baktainer/baktainer/internal/metrics"
)

// filenamePattern extracts the container name and unix timestamp from a
// published artifact name, e.g. "myapp-1706745600.sql.gz".
var filenamePattern = regexp.MustCompile(`^(.+)-(\d{10})\.(sql|sql\.gz)$`)

// Policy configures a rotation pass.
type Policy struct {
	RetentionDays  int
	RetentionCount int
	MinFreeSpaceGB int
}

// artifact is one discovered backup file with its parsed metadata.
type artifact struct {
	path      string
	dateDir   string
	container string
	unixTS    int64
	modTime   time.Time
	size      int64
}

// Result is the cycle-level outcome reported by Run.
type Result struct {
	DeletedCount int
	DeletedSize  int64
	Errors       []string
}

// Rotation walks backupDir applying the passes in order: age, count,
// free-space, empty-dir sweep.
type Rotation struct {
	backupDir string
	logger    zerolog.Logger
}

// New creates a Rotation rooted at backupDir.
func New(backupDir string, logger zerolog.Logger) *Rotation {
	return &Rotation{backupDir: backupDir, logger: logger}
}

// resolveContainerPolicy returns the effective policy for containerName: the
// per-container override if one is present in overrides, the global policy
// otherwise. Only the first overrides map is consulted; the parameter is
// variadic so callers that have no per-container knobs can omit it entirely.
func resolveContainerPolicy(global Policy, overrides []map[string]Policy, containerName string) Policy {
	if len(overrides) == 0 || overrides[0] == nil {
		return global
	}
	if p, ok := overrides[0][containerName]; ok {
		return p
	}
	return global
}

// Run executes one rotation cycle under policy and reports the outcome.
// overrides, if supplied, maps a container's backup name to a Policy that
// takes precedence over policy for that container's age and count passes;
// free-space remains global since there is no per-container disk budget.
// Deletion failures are counted and reported but never abort the pass.
func (r *Rotation) Run(policy Policy, overrides ...map[string]Policy) Result {
	var result Result

	artifacts, err := r.scan()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	toDelete := make(map[string]artifact)
	reason := make(map[string]string)

	for _, a := range r.selectByAge(artifacts, policy, overrides) {
		toDelete[a.path] = a
		reason[a.path] = "age"
	}

	for _, a := range r.selectByCount(artifacts, toDelete, policy, overrides) {
		toDelete[a.path] = a
		reason[a.path] = "count"
	}

	if policy.MinFreeSpaceGB > 0 {
		for _, a := range r.selectByFreeSpace(artifacts, toDelete, policy.MinFreeSpaceGB) {
			toDelete[a.path] = a
			reason[a.path] = "free_space"
		}
	}

	for _, a := range toDelete {
		if err := r.deleteArtifact(a); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.DeletedCount++
		result.DeletedSize += a.size
		metrics.RotationArtifactsRemoved.WithLabelValues(a.container, reason[a.path]).Inc()
		metrics.RotationBytesReclaimed.WithLabelValues(a.container).Add(float64(a.size))
	}

	emptyDirs := r.sweepEmptyDirs(artifacts, toDelete)

	outcome := "success"
	if len(result.Errors) > 0 {
		outcome = "partial_error"
	}
	metrics.RotationRunsTotal.WithLabelValues(outcome).Inc()

	if result.DeletedCount > 0 || len(emptyDirs) > 0 {
		r.logger.Info().
			Int("deleted_count", result.DeletedCount).
			Float64("deleted_mb", float64(result.DeletedSize)/(1024*1024)).
			Int("empty_dirs_removed", len(emptyDirs)).
			Msg("rotation cycle complete")
	}

	return result
}

// scan walks backupDir's date subdirectories and parses every artifact
// filename; files that do not match the naming convention are ignored.
func (r *Rotation) scan() ([]artifact, error) {
	var out []artifact

	entries, err := os.ReadDir(r.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, dateEntry := range entries {
		if !dateEntry.IsDir() {
			continue
		}
		dateDir := filepath.Join(r.backupDir, dateEntry.Name())

		files, err := os.ReadDir(dateDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			a, ok := parseArtifact(dateDir, f.Name())
			if !ok {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			a.modTime = info.ModTime()
			a.size = info.Size()
			out = append(out, a)
		}
	}
	return out, nil
}

func parseArtifact(dateDir, name string) (artifact, bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return artifact{}, false
	}
	ts, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return artifact{}, false
	}
	return artifact{
		path:      filepath.Join(dateDir, name),
		dateDir:   dateDir,
		container: m[1],
		unixTS:    ts,
	}, true
}

// selectByAge returns every artifact whose mtime is older than now minus its
// container's effective RetentionDays (global policy, or a per-container
// override from overrides). A container whose effective RetentionDays is 0
// is exempt from the age pass.
func (r *Rotation) selectByAge(artifacts []artifact, policy Policy, overrides []map[string]Policy) []artifact {
	var out []artifact
	for _, a := range artifacts {
		effective := resolveContainerPolicy(policy, overrides, a.container)
		if effective.RetentionDays <= 0 {
			continue
		}
		cutoff := time.Now().Add(-time.Duration(effective.RetentionDays) * 24 * time.Hour)
		if a.modTime.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// selectByCount groups survivors (those not already marked for deletion) by
// container, sorts each group newest-first, and selects everything from
// index RetentionCount onward, using each container's effective
// RetentionCount (global policy, or a per-container override from
// overrides). A container whose effective RetentionCount is 0 is exempt.
func (r *Rotation) selectByCount(artifacts []artifact, alreadyMarked map[string]artifact, policy Policy, overrides []map[string]Policy) []artifact {
	byContainer := make(map[string][]artifact)
	for _, a := range artifacts {
		if _, marked := alreadyMarked[a.path]; marked {
			continue
		}
		byContainer[a.container] = append(byContainer[a.container], a)
	}

	var out []artifact
	for name, group := range byContainer {
		effective := resolveContainerPolicy(policy, overrides, name)
		if effective.RetentionCount <= 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].modTime.After(group[j].modTime)
		})
		if len(group) <= effective.RetentionCount {
			continue
		}
		out = append(out, group[effective.RetentionCount:]...)
	}
	return out
}

// selectByFreeSpace enumerates survivors oldest-first and keeps marking
// them for deletion until the free-space probe reports enough headroom, or
// survivors run out. Probe failures are treated as "plenty" and logged.
func (r *Rotation) selectByFreeSpace(artifacts []artifact, alreadyMarked map[string]artifact, minFreeGB int) []artifact {
	required := int64(minFreeGB) << 30

	freeBytes, err := fileops.FreeSpace(r.backupDir)
	if err != nil {
		r.logger.Warn().Err(err).Msg("free space probe failed, assuming plenty")
		return nil
	}
	free := int64(freeBytes)
	if free >= required {
		return nil
	}

	var survivors []artifact
	for _, a := range artifacts {
		if _, marked := alreadyMarked[a.path]; marked {
			continue
		}
		survivors = append(survivors, a)
	}
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].modTime.Before(survivors[j].modTime)
	})

	var out []artifact
	for _, a := range survivors {
		if free >= required {
			break
		}
		out = append(out, a)
		free += a.size
	}
	return out
}

func (r *Rotation) deleteArtifact(a artifact) error {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(a.path + ".meta")
	return nil
}

// sweepEmptyDirs removes any date directory left with no surviving
// artifact after deletion.
func (r *Rotation) sweepEmptyDirs(artifacts []artifact, deleted map[string]artifact) []string {
	survivingDirs := make(map[string]bool)
	for _, a := range artifacts {
		if _, gone := deleted[a.path]; gone {
			continue
		}
		survivingDirs[a.dateDir] = true
	}

	allDirs := make(map[string]bool)
	for _, a := range artifacts {
		allDirs[a.dateDir] = true
	}

	var removed []string
	for dir := range allDirs {
		if survivingDirs[dir] {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed = append(removed, dir)
		}
	}
	return removed
}

// ContainerStats is the per-container aggregate returned by Statistics.
type ContainerStats struct {
	Container string
	Count     int
	TotalSize int64
	Oldest    time.Time
	Newest    time.Time
}

// DateStats is the per-date aggregate returned by Statistics.
type DateStats struct {
	Date      string
	Count     int
	TotalSize int64
}

// Statistics returns per-container and per-date aggregates for dashboards.
func (r *Rotation) Statistics() ([]ContainerStats, []DateStats, error) {
	artifacts, err := r.scan()
	if err != nil {
		return nil, nil, err
	}

	byContainer := make(map[string]*ContainerStats)
	byDate := make(map[string]*DateStats)

	for _, a := range artifacts {
		cs, ok := byContainer[a.container]
		if !ok {
			cs = &ContainerStats{Container: a.container, Oldest: a.modTime, Newest: a.modTime}
			byContainer[a.container] = cs
		}
		cs.Count++
		cs.TotalSize += a.size
		if a.modTime.Before(cs.Oldest) {
			cs.Oldest = a.modTime
		}
		if a.modTime.After(cs.Newest) {
			cs.Newest = a.modTime
		}

		date := filepath.Base(a.dateDir)
		ds, ok := byDate[date]
		if !ok {
			ds = &DateStats{Date: date}
			byDate[date] = ds
		}
		ds.Count++
		ds.TotalSize += a.size
	}

	containerOut := make([]ContainerStats, 0, len(byContainer))
	for _, cs := range byContainer {
		containerOut = append(containerOut, *cs)
	}
	sort.Slice(containerOut, func(i, j int) bool { return containerOut[i].Container < containerOut[j].Container })

	dateOut := make([]DateStats, 0, len(byDate))
	for _, ds := range byDate {
		dateOut = append(dateOut, *ds)
	}
	sort.Slice(dateOut, func(i, j int) bool { return dateOut[i].Date < dateOut[j].Date })

	return containerOut, dateOut, nil
}
