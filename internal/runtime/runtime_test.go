// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package runtime

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimLeadingSlash(t *testing.T) {
	assert.Equal(t, "myapp", trimLeadingSlash("/myapp"))
	assert.Equal(t, "myapp", trimLeadingSlash("myapp"))
	assert.Equal(t, "", trimLeadingSlash(""))
}

func TestNormalizeState(t *testing.T) {
	assert.Equal(t, "running", normalizeState("running"))
	assert.Equal(t, "stopped", normalizeState("exited"))
	assert.Equal(t, "stopped", normalizeState("created"))
	assert.Equal(t, "stopped", normalizeState("paused"))
	assert.Equal(t, "other", normalizeState("restarting"))
	assert.Equal(t, "other", normalizeState("dead"))
}

type recordingOutput struct {
	stdout [][]byte
	stderr [][]byte
}

func (r *recordingOutput) Stdout(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	r.stdout = append(r.stdout, cp)
}

func (r *recordingOutput) Stderr(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	r.stderr = append(r.stderr, cp)
}

func frame(streamType byte, payload []byte) []byte {
	header := make([]byte, 8)
	header[0] = streamType
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return append(header, payload...)
}

func TestDemuxRoutesStdoutAndStderr(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(frame(1, []byte("hello ")))
	buf.Write(frame(1, []byte("world")))
	buf.Write(frame(2, []byte("oops")))

	out := &recordingOutput{}
	err := demux(context.Background(), &buf, out)
	require.NoError(t, err)

	assert.Equal(t, [][]byte{[]byte("hello "), []byte("world")}, out.stdout)
	assert.Equal(t, [][]byte{[]byte("oops")}, out.stderr)
}

func TestDemuxStopsCleanlyOnEOF(t *testing.T) {
	out := &recordingOutput{}
	err := demux(context.Background(), &bytes.Buffer{}, out)
	require.NoError(t, err)
	assert.Empty(t, out.stdout)
	assert.Empty(t, out.stderr)
}

func TestDemuxHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	buf.Write(frame(1, []byte("late")))

	out := &recordingOutput{}
	err := demux(ctx, &buf, out)
	require.Error(t, err)
}

func TestClassifyErrorNilIsNil(t *testing.T) {
	assert.NoError(t, classifyError(nil))
}

func TestClassifyErrorDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := classifyError(ctx.Err())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClassifyErrorWrapsOther(t *testing.T) {
	err := classifyError(errors.New("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoadPEMMaterialInline(t *testing.T) {
	data, err := loadPEMMaterial("-----BEGIN CERTIFICATE-----\nMII...\n-----END CERTIFICATE-----")
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN CERTIFICATE")
}

func TestLoadPEMMaterialMissingFile(t *testing.T) {
	_, err := loadPEMMaterial("/nonexistent/path/to/cert.pem")
	assert.Error(t, err)
}
