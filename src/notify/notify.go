package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coordworker/src/logging"
)

// Severity of a posted message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier posts a human-facing message somewhere. Delivery is best effort:
// callers log a returned error and move on, they never retry or block on it.
type Notifier interface {
	Post(ctx context.Context, title string, severity Severity, body string) error
}

// LogSink is a Notifier that writes to the worker log. Used when no webhook
// is configured.
type LogSink struct{}

func (LogSink) Post(ctx context.Context, title string, severity Severity, body string) error {
	level := slog.LevelInfo
	switch severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	logging.Log(fmt.Sprintf("[notify] %s: %s", title, body), level)
	return nil
}

// DiscordWebhook posts messages as Discord embeds.
type DiscordWebhook struct {
	URL    string
	Client *http.Client
}

func NewDiscordWebhook(url string) *DiscordWebhook {
	return &DiscordWebhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

var severityColors = map[Severity]int{
	SeverityInfo:    0x3498db,
	SeverityWarning: 0xf1c40f,
	SeverityError:   0xe74c3c,
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (d *DiscordWebhook) Post(ctx context.Context, title string, severity Severity, body string) error {
	payload := discordPayload{Embeds: []discordEmbed{{
		Title:       title,
		Description: body,
		Color:       severityColors[severity],
	}}}

	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
