// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package fileops implements the atomic, best-effort filesystem primitives
// the orchestrator's pipeline composes: directory creation, scoped writes,
// atomic rename with a cross-device fallback, gzip compression, checksums,
// integrity verification, JSON sidecar metadata, and a disk free-space probe.
package fileops

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/baktainer/baktainer/internal/apperrors"
)

const minFreeSpaceBytes = 100 << 20 // 100 MiB

// FileOps bundles a logger with the filesystem primitives below. It carries
// no other state; every method is safe for concurrent use across containers.
type FileOps struct {
	logger zerolog.Logger
}

// New creates a FileOps that logs best-effort warnings through logger.
func New(logger zerolog.Logger) *FileOps {
	return &FileOps{logger: logger}
}

// CreateBackupDir creates path (and parents) recursively and verifies at
// least 100 MiB of free space is available, logging a warning rather than
// failing when the space probe itself cannot be satisfied.
func (f *FileOps) CreateBackupDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("create backup dir %s", path), err)
	}

	probe := filepath.Dir(path)
	free, err := FreeSpace(probe)
	if err != nil {
		f.logger.Warn().Err(err).Str("path", probe).Msg("disk space probe failed; assuming sufficient space")
		return nil
	}
	if free < minFreeSpaceBytes {
		return apperrors.New(apperrors.KindIO, fmt.Sprintf("only %d bytes free at %s, need %d", free, probe, minFreeSpaceBytes))
	}
	return nil
}

// Write opens path for writing, creating it or truncating an existing file,
// and calls fn with the resulting writer, guaranteeing Close (and therefore
// flush) on every exit path, including when fn returns an error. An error
// from fn that already carries an apperrors Kind is returned unchanged; any
// other is wrapped as KindIO.
func (f *FileOps) Write(path string, fn func(io.Writer) error) (err error) {
	file, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if openErr != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("open %s", path), openErr)
	}
	defer func() {
		closeErr := file.Close()
		if err == nil && closeErr != nil {
			err = apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("close %s", path), closeErr)
		}
	}()

	if err = fn(file); err != nil {
		if _, classified := apperrors.KindOf(err); classified {
			return err
		}
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("write %s", path), err)
	}
	return nil
}

// VerifyCreated checks path exists and is non-empty, returning its size.
func (f *FileOps) VerifyCreated(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindIntegrity, fmt.Sprintf("stat %s", path), err)
	}
	if info.Size() == 0 {
		return 0, apperrors.New(apperrors.KindIntegrity, fmt.Sprintf("%s is empty", path))
	}
	return info.Size(), nil
}

// Rename moves src to dst atomically within a filesystem; on a cross-device
// error it falls back to copy-then-unlink, preserving the same visible
// result to readers who only ever see the final name.
func (f *FileOps) Rename(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("rename %s -> %s", src, dst), err)
	}

	if copyErr := copyFile(src, dst); copyErr != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("cross-device copy %s -> %s", src, dst), copyErr)
	}
	if rmErr := os.Remove(src); rmErr != nil {
		f.logger.Warn().Err(rmErr).Str("path", src).Msg("failed to remove source after cross-device copy")
	}
	return nil
}

func isCrossDevice(err error) bool {
	return strings.Contains(err.Error(), "cross-device") || strings.Contains(err.Error(), "invalid cross-device link")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Compress streams src into dst through gzip and unlinks src on success.
func (f *FileOps) Compress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("open %s", src), err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("create %s", dst), err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return apperrors.Wrap(apperrors.KindIO, "gzip stream", err)
	}
	if err := gz.Close(); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "gzip flush", err)
	}

	if err := os.Remove(src); err != nil {
		f.logger.Warn().Err(err).Str("path", src).Msg("failed to remove uncompressed source")
	}
	return nil
}

// Checksum returns the lowercase hex SHA-256 digest of path's contents.
func (f *FileOps) Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", apperrors.Wrap(apperrors.KindIO, "checksum", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IntegrityInfo is the result of VerifyIntegrity.
type IntegrityInfo struct {
	Size       int64
	Checksum   string
	Compressed bool
}

// VerifyIntegrity rejects artifacts below the minimum size (10 B plain, 20 B
// gzipped) and returns their size and checksum.
func (f *FileOps) VerifyIntegrity(path string, compressed bool) (IntegrityInfo, error) {
	minSize := int64(10)
	if compressed {
		minSize = 20
	}

	info, err := os.Stat(path)
	if err != nil {
		return IntegrityInfo{}, apperrors.Wrap(apperrors.KindIntegrity, fmt.Sprintf("stat %s", path), err)
	}
	if info.Size() < minSize {
		return IntegrityInfo{}, apperrors.New(apperrors.KindIntegrity, fmt.Sprintf("%s is %d bytes, below minimum %d", path, info.Size(), minSize))
	}

	checksum, err := f.Checksum(path)
	if err != nil {
		return IntegrityInfo{}, err
	}
	return IntegrityInfo{Size: info.Size(), Checksum: checksum, Compressed: compressed}, nil
}

// Cleanup best-effort removes every path in paths, logging (never failing)
// on individual errors other than "not exist".
func (f *FileOps) Cleanup(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			f.logger.Warn().Err(err).Str("path", p).Msg("cleanup failed")
		}
	}
}

// WriteMetadata marshals obj as JSON to path (typically "<artifact>.meta").
// Failure is a warning, never a fatal error, matching the sidecar's
// best-effort status in the pipeline.
func (f *FileOps) WriteMetadata(path string, obj interface{}) {
	data, err := json.Marshal(obj)
	if err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("failed to marshal sidecar metadata")
		return
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("failed to write sidecar metadata")
	}
}

// FreeSpace reports the bytes available to an unprivileged user on the
// filesystem containing path. It first tries a direct statfs syscall and
// falls back to shelling out to `df` if that fails (e.g. unsupported
// platform), matching the spec's two-implementation probe design.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err == nil {
		// #nosec G115 -- block counts/sizes are always non-negative in practice
		return uint64(stat.Bavail) * uint64(stat.Bsize), nil
	}

	out, err := exec.Command("df", "-Pk", path).Output()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindIO, "disk space probe", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return 0, apperrors.New(apperrors.KindIO, "unexpected df output")
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 4 {
		return 0, apperrors.New(apperrors.KindIO, "unexpected df field count")
	}
	availKB, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindIO, "parse df output", err)
	}
	return availKB * 1024, nil
}
