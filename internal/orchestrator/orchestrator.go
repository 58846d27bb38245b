// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package orchestrator runs the per-container backup pipeline: build the
// dump command, stream it out of the container, verify, compress, encrypt,
// and publish the artifact, reporting every outcome to Monitor.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/baktainer/baktainer/internal/apperrors"
	"github.com/baktainer/baktainer/internal/backupvalidator"
	"github.com/baktainer/baktainer/internal/container"
	"github.com/baktainer/baktainer/internal/encryption"
	"github.com/baktainer/baktainer/internal/fileops"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/runtime"
	"github.com/baktainer/baktainer/internal/strategy"
)

const stderrLogThreshold = 64 << 10 // 64 KiB

var retryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Config carries the global defaults the orchestrator falls back to when a
// container's label overrides are absent.
type Config struct {
	CompressDefault bool
	EncryptDefault  bool
	EncryptionKey   []byte // nil when encryption is not configured at all
}

// Orchestrator runs the pipeline for one container at a time; callers
// (typically the Scheduler, via the WorkerPool) invoke Run concurrently
// across containers.
type Orchestrator struct {
	backupDir string
	cfg       Config
	fileOps   *fileops.FileOps
	registry  *strategy.Registry
	runtime   runtime.Client
	mon       *monitor.Monitor
	logger    zerolog.Logger
}

// New builds an Orchestrator. mon may be nil only in tests that don't care
// about recorded outcomes.
func New(backupDir string, cfg Config, fileOps *fileops.FileOps, registry *strategy.Registry, runtimeClient runtime.Client, mon *monitor.Monitor, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		backupDir: backupDir,
		cfg:       cfg,
		fileOps:   fileOps,
		registry:  registry,
		runtime:   runtimeClient,
		mon:       mon,
		logger:    logger,
	}
}

// Result is what Run returns on success: the published artifact's path and
// size.
type Result struct {
	Path string
	Size int64
}

// Run executes the full pipeline for c, wrapped in retry_with_backoff.
func (o *Orchestrator) Run(ctx context.Context, c container.Container) (Result, error) {
	if o.mon != nil {
		o.mon.Start(c.Name, c.Engine)
	}

	result, err := o.runWithRetry(ctx, c)

	if o.mon != nil {
		if err != nil {
			o.mon.Fail(ctx, c.Name, err)
		} else {
			o.mon.Complete(ctx, c.Name, result.Path, result.Size)
		}
	}
	return result, err
}

func (o *Orchestrator) runWithRetry(ctx context.Context, c container.Container) (Result, error) {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			o.logger.Warn().Str("container", c.Name).Int("attempt", attempt+1).Err(lastErr).Msg("retrying backup")
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(retryDelays[attempt-1]):
			}
		}

		result, err := o.runOnce(ctx, c)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !apperrors.Retryable(err) {
			return Result{}, err
		}
	}
	return Result{}, lastErr
}

// runOnce gates c through the Validator, then runs the 11-step pipeline,
// steps numbered per its design.
func (o *Orchestrator) runOnce(ctx context.Context, c container.Container) (result Result, err error) {
	if err := backupvalidator.Validate(&c, nil); err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindValidation, "container failed validation", err)
	}

	strat, err := o.registry.Get(c.Engine)
	if err != nil {
		return Result{}, err
	}

	// 1. date_dir
	dateDir := filepath.Join(o.backupDir, time.Now().Format("2006-01-02"))
	if err := o.fileOps.CreateBackupDir(dateDir); err != nil {
		return Result{}, err
	}

	// 2. base/temp/final paths
	base := fmt.Sprintf("%s-%d", c.BackupName, time.Now().Unix())
	temp := filepath.Join(dateDir, "."+base+".sql.tmp")
	compress := o.effectiveCompress(c)
	encrypt := o.effectiveEncrypt(c)
	ext := ".sql"
	if compress {
		ext = ".sql.gz"
	}
	final := filepath.Join(dateDir, base+ext)

	cleanupPaths := []string{temp, final, final + ".gz", final + ".meta", temp + ".meta", final + ".encrypted", final + ".encrypted.enc.meta"}
	defer func() {
		if err != nil {
			o.fileOps.Cleanup(cleanupPaths)
		}
	}()

	// 3. build command
	cmd, err := strat.Command(strategy.Options{
		User:         c.User,
		Password:     c.Password,
		Database:     c.Database,
		AllDatabases: c.AllDatabases,
	})
	if err != nil {
		return Result{}, err
	}

	// 4. exec streaming into temp, stderr accumulated, first lines of stdout
	// kept aside for the content sniff
	stderrBuf := &bytes.Buffer{}
	sniffBuf := &bytes.Buffer{}
	out := &streamWriter{fileOps: o.fileOps, path: temp, stderr: stderrBuf, sniff: sniffBuf, logger: o.logger, containerName: c.Name}
	execErr := out.withFile(func() error {
		if err := o.runtime.Exec(ctx, c.ID, cmd.Cmd, cmd.Env, out); err != nil {
			return err
		}
		return out.writeErr
	})
	if execErr != nil {
		return Result{}, execErr
	}

	// 5. (mapping happens inside runtime.classifyError before we see it)

	// 6. verify temp non-empty
	if _, err := o.fileOps.VerifyCreated(temp); err != nil {
		return Result{}, err
	}

	// 7. compress or rename
	if compress {
		if err := o.fileOps.Compress(temp, final); err != nil {
			return Result{}, err
		}
	} else {
		if err := o.fileOps.Rename(temp, final); err != nil {
			return Result{}, err
		}
	}
	published := final

	// 8. optional encryption
	if encrypt {
		if len(o.cfg.EncryptionKey) == 0 {
			return Result{}, apperrors.New(apperrors.KindEncryption, "encryption requested but no key is configured")
		}
		encrypted := final + ".encrypted"
		originalInfo, statErr := os.Stat(final)
		if statErr != nil {
			return Result{}, apperrors.Wrap(apperrors.KindIO, "stat artifact before encryption", statErr)
		}
		if err := encryption.Encrypt(o.cfg.EncryptionKey, final, encrypted); err != nil {
			return Result{}, err
		}
		encryptedInfo, statErr := os.Stat(encrypted)
		if statErr != nil {
			return Result{}, apperrors.Wrap(apperrors.KindIO, "stat artifact after encryption", statErr)
		}
		o.fileOps.WriteMetadata(encrypted+".enc.meta", encryption.Sidecar{
			Algorithm:      encryption.Algorithm,
			OriginalFile:   filepath.Base(final),
			OriginalSize:   originalInfo.Size(),
			EncryptedSize:  encryptedInfo.Size(),
			EncryptedAt:    time.Now().UTC().Format(time.RFC3339),
			KeyFingerprint: encryption.KeyFingerprint(o.cfg.EncryptionKey),
		})
		published = encrypted
	}

	// 9. verify integrity + sniff (warning only)
	integrity, err := o.fileOps.VerifyIntegrity(published, compress)
	if err != nil {
		return Result{}, err
	}
	if !strat.Sniff(sniffLines(sniffBuf.String())) {
		o.logger.Warn().Str("container", c.Name).Msg("dump content sniff found no expected tokens")
	}

	// 10. sidecar metadata
	var compressionType interface{}
	if compress {
		compressionType = "gzip"
	}
	o.fileOps.WriteMetadata(published+".meta", map[string]interface{}{
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"container_name":   c.Name,
		"engine":           c.Engine,
		"database":         c.Database,
		"file_size":        integrity.Size,
		"checksum":         integrity.Checksum,
		"backup_file":      filepath.Base(published),
		"compressed":       compress,
		"compression_type": compressionType,
		"encrypted":        encrypt,
	})

	// 11. return published path
	return Result{Path: published, Size: integrity.Size}, nil
}

func (o *Orchestrator) effectiveCompress(c container.Container) bool {
	if c.CompressOverride != nil {
		return *c.CompressOverride
	}
	return o.cfg.CompressDefault
}

func (o *Orchestrator) effectiveEncrypt(c container.Container) bool {
	if c.EncryptOverride != nil {
		return *c.EncryptOverride
	}
	return o.cfg.EncryptDefault
}

const sniffMaxLines = 5

// sniffLines returns the first 5 lowercased lines of the dump content, the
// slice strategy.Strategy.Sniff checks for engine-specific markers.
func sniffLines(dump string) []string {
	lines := strings.Split(strings.ToLower(dump), "\n")
	if len(lines) > sniffMaxLines {
		lines = lines[:sniffMaxLines]
	}
	return lines
}

// streamWriter adapts runtime.ExecOutput to FileOps.Write: stdout chunks are
// written straight to the open temp file (and their first few lines mirrored
// into sniff for the post-dump content check), stderr is accumulated in a
// bounded buffer and flushed to the log once it crosses 64 KiB.
type streamWriter struct {
	fileOps       *fileops.FileOps
	path          string
	stderr        *bytes.Buffer
	sniff         *bytes.Buffer
	logger        zerolog.Logger
	containerName string

	writeErr error
	file     io.Writer
}

func (s *streamWriter) withFile(run func() error) error {
	return s.fileOps.Write(s.path, func(w io.Writer) error {
		s.file = w
		return run()
	})
}

const sniffBufCap = 8 << 10 // 8 KiB, comfortably more than 5 lines of any dump header

func (s *streamWriter) Stdout(chunk []byte) {
	if s.file == nil || s.writeErr != nil {
		return
	}
	if _, err := s.file.Write(chunk); err != nil {
		s.writeErr = err
	}
	if s.sniff.Len() < sniffBufCap {
		s.sniff.Write(chunk)
	}
}

func (s *streamWriter) Stderr(chunk []byte) {
	s.stderr.Write(chunk)
	if s.stderr.Len() > stderrLogThreshold {
		s.logger.Warn().Str("container", s.containerName).Str("stderr", s.stderr.String()).Msg("exec stderr exceeded buffer threshold")
		s.stderr.Reset()
	}
}
