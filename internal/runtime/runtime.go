// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package runtime is the container runtime client contract and its Docker
// Engine API implementation: list containers, read their labels/state, and
// run a command inside one while streaming stdout/stderr.
package runtime

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/baktainer/baktainer/internal/apperrors"
)

// ContainerInfo is the raw fact set Discovery reads per container, before
// any labelschema normalization.
type ContainerInfo struct {
	ID     string
	Name   string
	Labels map[string]string
	State  string // "running" | "stopped" | "other"
}

// ExecOutput receives streamed bytes from a running Exec call.
type ExecOutput interface {
	Stdout(chunk []byte)
	Stderr(chunk []byte)
}

// Client is the contract Discovery and the Orchestrator depend on; tests
// substitute a fake implementing this interface.
type Client interface {
	ListContainers(ctx context.Context) ([]ContainerInfo, error)
	Exec(ctx context.Context, containerID string, cmd []string, env []string, out ExecOutput) error
	Version(ctx context.Context) error
}

// TLSConfig carries optional client-certificate material for connecting to
// a TLS-protected Docker Engine API endpoint.
type TLSConfig struct {
	CA   string
	Cert string
	Key  string
}

// DockerClient implements Client against the Docker Engine API.
type DockerClient struct {
	cli *client.Client
}

// New dials runtimeURL (a unix://, tcp://, http:// or https:// endpoint).
// When tlsCfg is non-nil, the connection is secured with the given
// CA/cert/key material.
func New(runtimeURL string, tlsCfg *TLSConfig) (*DockerClient, error) {
	opts := []client.Opt{
		client.WithHost(runtimeURL),
		client.WithAPIVersionNegotiation(),
	}

	if tlsCfg != nil {
		httpClient, err := newTLSHTTPClient(*tlsCfg)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindConfig, "build TLS client for runtime", err)
		}
		opts = append(opts, client.WithHTTPClient(httpClient))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "connect to container runtime", err)
	}
	return &DockerClient{cli: cli}, nil
}

// newTLSHTTPClient builds an *http.Client whose transport presents the
// given client certificate and trusts the given CA when dialing the
// runtime endpoint. ca/cert/key may be inline PEM or file paths.
func newTLSHTTPClient(cfg TLSConfig) (*http.Client, error) {
	certPEM, err := loadPEMMaterial(cfg.Cert)
	if err != nil {
		return nil, fmt.Errorf("read cert: %w", err)
	}
	keyPEM, err := loadPEMMaterial(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	caPEM, err := loadPEMMaterial(cfg.CA)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no CA certificates found")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func loadPEMMaterial(value string) ([]byte, error) {
	if len(value) > 10 && value[:10] == "-----BEGIN" {
		return []byte(value), nil
	}
	return os.ReadFile(value)
}

// Version performs the cheap health probe the Scheduler runs before each
// cycle: confirm the daemon answers and a trivial list call succeeds.
func (d *DockerClient) Version(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := d.cli.ServerVersion(ctx); err != nil {
		return classifyError(err)
	}
	if _, err := d.cli.ContainerList(ctx, container.ListOptions{Limit: 1}); err != nil {
		return classifyError(err)
	}
	return nil
}

// ListContainers enumerates every container the daemon knows about,
// running or not, so Discovery can filter by state and labels itself.
func (d *DockerClient) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, classifyError(err)
	}

	out := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := c.ID
		if len(c.Names) > 0 {
			name = trimLeadingSlash(c.Names[0])
		}
		out = append(out, ContainerInfo{
			ID:     c.ID,
			Name:   name,
			Labels: c.Labels,
			State:  normalizeState(c.State),
		})
	}
	return out, nil
}

func trimLeadingSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}

func normalizeState(dockerState string) string {
	if dockerState == "running" {
		return "running"
	}
	if dockerState == "exited" || dockerState == "created" || dockerState == "paused" {
		return "stopped"
	}
	return "other"
}

// Exec runs cmd inside containerID with the given extra environment
// variables, streaming stdout/stderr to out as it arrives.
func (d *DockerClient) Exec(ctx context.Context, containerID string, cmd []string, env []string, out ExecOutput) error {
	execCfg := container.ExecOptions{
		Cmd:          cmd,
		Env:          env,
		AttachStdout: true,
		AttachStderr: true,
	}

	created, err := d.cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return classifyError(err)
	}

	attached, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return classifyError(err)
	}
	defer attached.Close()

	if err := demux(ctx, attached.Reader, out); err != nil {
		return err
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return classifyError(err)
	}
	if inspect.ExitCode != 0 {
		return apperrors.New(apperrors.KindRuntime, fmt.Sprintf("exec exited with status %d", inspect.ExitCode))
	}
	return nil
}

// demux reads the Docker multiplexed stdout/stderr stream format (an
// 8-byte header per frame: 1 stream-type byte, 3 reserved, 4 length) and
// routes each frame to the matching ExecOutput method.
func demux(ctx context.Context, r io.Reader, out ExecOutput) error {
	reader := bufio.NewReaderSize(r, 32*1024)
	header := make([]byte, 8)

	for {
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.KindRuntimeTimeout, "exec stream", ctx.Err())
		default:
		}

		if _, err := io.ReadFull(reader, header); err != nil {
			if err == io.EOF {
				return nil
			}
			return apperrors.Wrap(apperrors.KindRuntime, "read exec stream header", err)
		}

		length := int(header[4])<<24 | int(header[5])<<16 | int(header[6])<<8 | int(header[7])
		chunk := make([]byte, length)
		if _, err := io.ReadFull(reader, chunk); err != nil {
			return apperrors.Wrap(apperrors.KindRuntime, "read exec stream body", err)
		}

		switch header[0] {
		case 2:
			out.Stderr(chunk)
		default:
			out.Stdout(chunk)
		}
	}
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindRuntimeTimeout, "runtime call timed out", err)
	}
	if client.IsErrConnectionFailed(err) {
		return apperrors.Wrap(apperrors.KindRuntime, "runtime connection failed", err)
	}
	return apperrors.Wrap(apperrors.KindRuntime, "runtime call failed", err)
}
