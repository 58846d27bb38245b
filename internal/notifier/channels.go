// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package notifier

import (
	"context"
	"net"
	"time"
)

// dialerWithConnectTimeout caps the TCP connect phase independently of the
// overall request timeout carried by http.Client.Timeout.
type dialerWithConnectTimeout struct {
	connectTimeout time.Duration
}

func (d *dialerWithConnectTimeout) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.connectTimeout}
	return dialer.DialContext(ctx, network, addr)
}

// slackAttachment mirrors Slack's legacy incoming-webhook attachment shape.
type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (n *Notifier) dispatchSlack(ctx context.Context, event Event) error {
	payload := slackPayload{
		Attachments: []slackAttachment{
			{
				Color:  statusColor(event.Status),
				Title:  "Baktainer: " + string(event.Kind),
				Text:   event.Message,
				Fields: eventFields(event),
				Ts:     event.Timestamp.Unix(),
			},
		},
	}
	return n.postJSON(ctx, n.cfg.SlackWebhookURL, payload)
}

// discordEmbed mirrors Discord's webhook embed object.
type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func discordColor(status string) int {
	switch status {
	case "success":
		return 0x2ECC71
	case "failure", "error":
		return 0xE74C3C
	case "warning":
		return 0xE67E22
	default:
		return 0x3498DB
	}
}

func (n *Notifier) dispatchDiscord(ctx context.Context, event Event) error {
	fields := make([]discordField, 0, len(eventFields(event)))
	for _, f := range eventFields(event) {
		fields = append(fields, discordField{Name: f.Title, Value: f.Value, Inline: true})
	}
	payload := discordPayload{
		Embeds: []discordEmbed{
			{
				Title:       "Baktainer: " + string(event.Kind),
				Description: event.Message,
				Color:       discordColor(event.Status),
				Timestamp:   event.Timestamp.Format(time.RFC3339),
				Fields:      fields,
			},
		},
	}
	return n.postJSON(ctx, n.cfg.DiscordWebhookURL, payload)
}

// teamsPayload mirrors the legacy Office 365 connector MessageCard shape.
type teamsPayload struct {
	Type       string       `json:"@type"`
	Context    string       `json:"@context"`
	ThemeColor string       `json:"themeColor"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	Sections   []teamsFacts `json:"sections,omitempty"`
}

type teamsFacts struct {
	Facts []teamsFact `json:"facts"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func teamsColor(status string) string {
	switch status {
	case "success":
		return "28A745"
	case "failure", "error":
		return "DC3545"
	case "warning":
		return "FD7E14"
	default:
		return "17A2B8"
	}
}

func (n *Notifier) dispatchTeams(ctx context.Context, event Event) error {
	facts := make([]teamsFact, 0, len(eventFields(event)))
	for _, f := range eventFields(event) {
		facts = append(facts, teamsFact{Name: f.Title, Value: f.Value})
	}
	payload := teamsPayload{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: teamsColor(event.Status),
		Title:      "Baktainer: " + string(event.Kind),
		Text:       event.Message,
		Sections:   []teamsFacts{{Facts: facts}},
	}
	return n.postJSON(ctx, n.cfg.TeamsWebhookURL, payload)
}

// eventFields renders the event-specific attributes as vendor-agnostic
// name/value pairs shared by the Slack, Discord and Teams renderers.
func eventFields(event Event) []slackField {
	var fields []slackField
	add := func(title, value string) {
		if value != "" {
			fields = append(fields, slackField{Title: title, Value: value, Short: true})
		}
	}
	add("container", event.Container)
	add("status", event.Status)
	if event.SizeBytes > 0 {
		add("size_bytes", formatIntField(event.SizeBytes))
	}
	if event.DurationSecond > 0 {
		add("duration_seconds", formatFloatField(event.DurationSecond))
	}
	add("path", event.Path)
	add("error", event.Error)
	add("directory", event.Directory)
	if event.AvailableSpace > 0 {
		add("available_space", formatIntField(event.AvailableSpace))
	}
	return fields
}
