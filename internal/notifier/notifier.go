// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package notifier fans events out to the enabled channels (log, webhook,
// Slack, Discord, Teams) with per-event gates and per-channel
// failure isolation: a wedged endpoint never stalls the others and never
// aborts the caller. "email" is accepted as a channel name, but Dispatch
// sends nothing for it. This is deliberately a simple loop with per-channel
// try/log, not a publish/subscribe bus.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/baktainer/baktainer/internal/monitor"
)

// Channel identifies one outbound notification sink.
type Channel string

const (
	ChannelLog     Channel = "log"
	ChannelWebhook Channel = "webhook"
	ChannelSlack   Channel = "slack"
	ChannelDiscord Channel = "discord"
	ChannelTeams   Channel = "teams"
	ChannelEmail   Channel = "email"
)

// Kind identifies the category of event being dispatched.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
	KindWarning Kind = "warning"
	KindHealth  Kind = "health"
	KindSummary Kind = "summary"
)

// Event is the canonical payload dispatched to every channel. Fields not
// applicable to a given Kind are left zero.
type Event struct {
	Kind           Kind
	Container      string
	Timestamp      time.Time
	Status         string
	Message        string
	SizeBytes      int64
	DurationSecond float64
	Path           string
	Error          string
	AvailableSpace int64
	Directory      string
}

// Config controls which channels are enabled and which event kinds each
// channel gate allows through.
type Config struct {
	Channels []Channel

	NotifySuccess  bool
	NotifyFailures bool
	NotifyWarnings bool
	NotifyHealth   bool
	NotifySummary  bool

	WebhookURL        string
	SlackWebhookURL   string
	DiscordWebhookURL string
	TeamsWebhookURL   string
}

// DefaultConfig mirrors the spec's default event gates: failure, warning and
// health on; success and summary off.
func DefaultConfig() Config {
	return Config{
		NotifyFailures: true,
		NotifyWarnings: true,
		NotifyHealth:   true,
	}
}

// Notifier dispatches Events to every enabled channel, in a simple loop with
// per-channel try/log semantics.
type Notifier struct {
	cfg      Config
	logger   zerolog.Logger
	client   *http.Client
	breakers map[Channel]*gobreaker.CircuitBreaker[*http.Response]
	limiters map[Channel]*rate.Limiter
}

// New builds a Notifier from cfg. Each HTTP-backed channel gets its own
// circuit breaker (so a wedged endpoint opens independently of the others)
// and its own rate limiter (5 requests/second, burst 5).
func New(cfg Config, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: (&dialerWithConnectTimeout{connectTimeout: 5 * time.Second}).DialContext,
			},
		},
		breakers: make(map[Channel]*gobreaker.CircuitBreaker[*http.Response]),
		limiters: make(map[Channel]*rate.Limiter),
	}

	for _, ch := range []Channel{ChannelWebhook, ChannelSlack, ChannelDiscord, ChannelTeams} {
		settings := gobreaker.Settings{
			Name:        string(ch),
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
		}
		n.breakers[ch] = gobreaker.NewCircuitBreaker[*http.Response](settings)
		n.limiters[ch] = rate.NewLimiter(rate.Limit(5), 5)
	}
	return n
}

func (n *Notifier) enabled(ch Channel) bool {
	for _, c := range n.cfg.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

func (n *Notifier) gated(kind Kind) bool {
	switch kind {
	case KindSuccess:
		return n.cfg.NotifySuccess
	case KindFailure:
		return n.cfg.NotifyFailures
	case KindWarning:
		return n.cfg.NotifyWarnings
	case KindHealth:
		return n.cfg.NotifyHealth
	case KindSummary:
		return n.cfg.NotifySummary
	default:
		return false
	}
}

// Dispatch sends event to every enabled channel whose event gate allows
// this Kind. A per-channel failure is logged and never aborts the others.
func (n *Notifier) Dispatch(ctx context.Context, event Event) {
	if !n.gated(event.Kind) {
		return
	}

	if n.enabled(ChannelLog) {
		n.dispatchLog(event)
	}
	if n.enabled(ChannelWebhook) && n.cfg.WebhookURL != "" {
		n.tryDispatch(ctx, ChannelWebhook, func() error { return n.dispatchGenericWebhook(ctx, n.cfg.WebhookURL, event) })
	}
	if n.enabled(ChannelSlack) && n.cfg.SlackWebhookURL != "" {
		n.tryDispatch(ctx, ChannelSlack, func() error { return n.dispatchSlack(ctx, event) })
	}
	if n.enabled(ChannelDiscord) && n.cfg.DiscordWebhookURL != "" {
		n.tryDispatch(ctx, ChannelDiscord, func() error { return n.dispatchDiscord(ctx, event) })
	}
	if n.enabled(ChannelTeams) && n.cfg.TeamsWebhookURL != "" {
		n.tryDispatch(ctx, ChannelTeams, func() error { return n.dispatchTeams(ctx, event) })
	}
}

func (n *Notifier) dispatchLog(event Event) {
	log := n.logger.Info()
	if event.Kind == KindFailure {
		log = n.logger.Error()
	} else if event.Kind == KindWarning {
		log = n.logger.Warn()
	}
	log.Str("kind", string(event.Kind)).
		Str("container", event.Container).
		Str("status", event.Status).
		Msg(event.Message)
}

func (n *Notifier) tryDispatch(ctx context.Context, ch Channel, fn func() error) {
	if err := n.limiters[ch].Wait(ctx); err != nil {
		n.logger.Error().Err(err).Str("channel", string(ch)).Msg("notification rate limiter error")
		return
	}
	_, err := n.breakers[ch].Execute(func() (*http.Response, error) {
		return nil, fn()
	})
	if err != nil {
		n.logger.Error().Err(err).Str("channel", string(ch)).Msg("notification dispatch failed")
	}
}

func statusColor(status string) string {
	switch status {
	case "success":
		return "green"
	case "failure", "error":
		return "red"
	case "warning":
		return "orange"
	default:
		return "blue"
	}
}

func (n *Notifier) postJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) dispatchGenericWebhook(ctx context.Context, url string, event Event) error {
	return n.postJSON(ctx, url, eventPayload(event))
}

func eventPayload(event Event) map[string]interface{} {
	payload := map[string]interface{}{
		"kind":      event.Kind,
		"timestamp": event.Timestamp.Format(time.RFC3339),
		"status":    event.Status,
		"message":   event.Message,
	}
	if event.Container != "" {
		payload["container"] = event.Container
	}
	if event.SizeBytes > 0 {
		payload["size"] = event.SizeBytes
	}
	if event.DurationSecond > 0 {
		payload["duration"] = event.DurationSecond
	}
	if event.Path != "" {
		payload["path"] = event.Path
	}
	if event.Error != "" {
		payload["error"] = event.Error
	}
	if event.Directory != "" {
		payload["directory"] = event.Directory
		payload["available_space"] = event.AvailableSpace
	}
	return payload
}

// monitorAdapter implements monitor.Notifier by converting monitor.Event
// into notifier.Event and routing it through the same Notifier.
type monitorAdapter struct {
	n *Notifier
}

// AsMonitorNotifier returns a monitor.Notifier backed by n, so
// internal/monitor can dispatch events without importing this package.
func (n *Notifier) AsMonitorNotifier() monitor.Notifier {
	return monitorAdapter{n: n}
}

func (a monitorAdapter) Dispatch(ctx context.Context, event monitor.Event) {
	kind := KindSuccess
	if event.Kind == "failure" {
		kind = KindFailure
	}

	ev := Event{
		Kind:           kind,
		Container:      event.ContainerName,
		Timestamp:      event.Record.Timestamp,
		Status:         string(event.Record.Status),
		SizeBytes:      event.Record.FileSizeBytes,
		DurationSecond: event.Record.DurationSeconds,
		Path:           event.Record.FilePath,
		Error:          event.Record.Error,
	}
	if event.Kind == "success" {
		ev.Message = fmt.Sprintf("backup of %s completed", event.ContainerName)
	} else {
		ev.Message = fmt.Sprintf("backup of %s failed: %s", event.ContainerName, event.Record.Error)
	}

	a.n.Dispatch(ctx, ev)

	if event.Alert != nil {
		a.n.Dispatch(ctx, Event{
			Kind:      KindWarning,
			Container: event.ContainerName,
			Timestamp: event.Alert.Timestamp,
			Status:    "warning",
			Message:   event.Alert.Message,
		})
	}
}
