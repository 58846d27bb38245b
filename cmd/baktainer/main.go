// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Command baktainer is the entry point for the backup daemon: it loads
// configuration, wires every collaborator (runtime client, strategies,
// file operations, encryption, monitor, notifier, rotation, worker pool,
// discovery, orchestrator, scheduler, health server), and runs them under
// a Suture supervisor tree until terminated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baktainer/baktainer/internal/config"
	"github.com/baktainer/baktainer/internal/discovery"
	"github.com/baktainer/baktainer/internal/encryption"
	"github.com/baktainer/baktainer/internal/fileops"
	"github.com/baktainer/baktainer/internal/healthserver"
	"github.com/baktainer/baktainer/internal/logging"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/notifier"
	"github.com/baktainer/baktainer/internal/orchestrator"
	"github.com/baktainer/baktainer/internal/rotation"
	"github.com/baktainer/baktainer/internal/runtime"
	"github.com/baktainer/baktainer/internal/scheduler"
	"github.com/baktainer/baktainer/internal/strategy"
	"github.com/baktainer/baktainer/internal/supervisor"
	"github.com/baktainer/baktainer/internal/workerpool"
)

func main() {
	runOnce := flag.Bool("now", false, "run a single backup cycle immediately and exit")
	flag.BoolVar(runOnce, "N", false, "shorthand for -now")
	validateOnly := flag.Bool("validate-config", false, "load and validate configuration, print the effective settings, and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "baktainer: invalid configuration:", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "json"})
	logger := logging.Logger()

	if *validateOnly {
		printEffectiveConfig(cfg)
		os.Exit(0)
	}

	encryptionKey, err := resolveEncryptionKey(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve encryption key")
	}

	var tlsCfg *runtime.TLSConfig
	if cfg.TLSEnabled {
		tlsCfg = &runtime.TLSConfig{CA: cfg.CA, Cert: cfg.Cert, Key: cfg.Key}
	}

	runtimeClient, err := runtime.New(cfg.RuntimeURL, tlsCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to container runtime")
	}

	registry := strategy.NewRegistry()
	fileOps := fileops.New(logger)
	mon := monitor.New()

	notifyCfg := notifier.Config{
		Channels:          parseChannels(cfg.Notify.Channels),
		NotifySuccess:     cfg.Notify.NotifySuccess,
		NotifyFailures:    cfg.Notify.NotifyFailures,
		NotifyWarnings:    cfg.Notify.NotifyWarnings,
		NotifyHealth:      cfg.Notify.NotifyHealth,
		NotifySummary:     cfg.Notify.NotifySummary,
		WebhookURL:        cfg.Notify.WebhookURL,
		SlackWebhookURL:   cfg.Notify.SlackWebhookURL,
		DiscordWebhookURL: cfg.Notify.DiscordWebhookURL,
		TeamsWebhookURL:   cfg.Notify.TeamsWebhookURL,
	}
	notify := notifier.New(notifyCfg, logger)
	mon.SetNotifier(notify.AsMonitorNotifier())

	orch := orchestrator.New(cfg.BackupDir, orchestrator.Config{
		CompressDefault: cfg.Compress,
		EncryptDefault:  cfg.EncryptionEnabled,
		EncryptionKey:   encryptionKey,
	}, fileOps, registry, runtimeClient, mon, logger)

	disc := discovery.New(runtimeClient, logger, len(encryptionKey) > 0)
	pool := workerpool.New(cfg.EffectiveThreads(), cfg.EffectiveThreads()*4)
	rot := rotation.New(cfg.BackupDir, logger)

	sched := scheduler.New(scheduler.Config{
		CronSchedule:    cfg.CronSchedule,
		RotationEnabled: cfg.RotationEnabled,
		RotationPolicy: rotation.Policy{
			RetentionDays:  cfg.RetentionDays,
			RetentionCount: cfg.RetentionCount,
			MinFreeSpaceGB: cfg.MinFreeSpaceGB,
		},
	}, runtimeClient, disc, orch, pool, rot, mon, notify, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce {
		result := sched.RunOnce(ctx)
		if result.Aborted {
			logger.Error().Str("reason", result.AbortReason).Msg("cycle aborted")
			os.Exit(1)
		}
		if result.Failed > 0 {
			os.Exit(1)
		}
		os.Exit(0)
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	tree.AddSchedulingService(sched)

	if cfg.HealthServerEnabled {
		hs := healthserver.New(healthserver.Config{
			Bind:              cfg.HealthBind,
			Port:              cfg.HealthPort,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		}, runtimeClient, mon, rot, logger)
		tree.AddObservabilityService(hs)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logger.Info().Msg("baktainer starting")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	logger.Info().Msg("baktainer stopped")
}

// resolveEncryptionKey implements the three-source precedence from the
// configuration: encryption_key, encryption_key_file (already merged into
// EncryptionKey by config.Load), or encryption_passphrase. Returns nil when
// encryption is not configured at all.
func resolveEncryptionKey(cfg *config.Config) ([]byte, error) {
	if !cfg.EncryptionEnabled {
		return nil, nil
	}
	if cfg.EncryptionKey != "" {
		return encryption.ResolveKey(cfg.EncryptionKey)
	}
	if cfg.EncryptionPassphrase != "" {
		return encryption.ResolveKeyFromPassphrase(cfg.EncryptionPassphrase), nil
	}
	return nil, nil
}

func parseChannels(in []string) []notifier.Channel {
	out := make([]notifier.Channel, 0, len(in))
	for _, c := range in {
		out = append(out, notifier.Channel(c))
	}
	return out
}

// printEffectiveConfig prints the loaded configuration with secret fields
// redacted, for the --validate-config operational mode.
func printEffectiveConfig(cfg *config.Config) {
	fmt.Println("configuration valid")
	fmt.Println("runtime_url:", cfg.RuntimeURL)
	fmt.Println("cron_schedule:", cfg.CronSchedule)
	fmt.Println("threads:", cfg.Threads)
	fmt.Println("log_level:", cfg.LogLevel)
	fmt.Println("backup_dir:", cfg.BackupDir)
	fmt.Println("compress:", cfg.Compress)
	fmt.Println("rotation_enabled:", cfg.RotationEnabled)
	fmt.Println("retention_days:", cfg.RetentionDays)
	fmt.Println("retention_count:", cfg.RetentionCount)
	fmt.Println("min_free_space_gb:", cfg.MinFreeSpaceGB)
	fmt.Println("tls_enabled:", cfg.TLSEnabled)
	fmt.Println("encryption_enabled:", cfg.EncryptionEnabled)
	fmt.Println("encryption_key_configured:", cfg.EncryptionKey != "" || cfg.EncryptionPassphrase != "")
	fmt.Println("health_server_enabled:", cfg.HealthServerEnabled)
	fmt.Println("health_bind:", cfg.HealthBind)
	fmt.Println("health_port:", cfg.HealthPort)
	fmt.Println("notify_channels:", cfg.Notify.Channels)
}
