// Package notify sends snatch and download notifications to a webhook
// and Pushover. Delivery failures are logged and never returned to the
// search or post-processing code.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind of notification
type Kind string

const (
	KindSnatch   Kind = "snatch"
	KindDownload Kind = "download"
	KindFailure  Kind = "failure"
)

// Event is one notification
type Event struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
	AlbumID string `json:"album_id,omitempty"`
}

// Notifier delivers events
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi fans an event out to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Webhook POSTs the event as JSON
type Webhook struct {
	URL    string
	client *http.Client
}

func NewWebhook(u string, hc *http.Client) *Webhook {
	return &Webhook{URL: u, client: hc}
}

func (w *Webhook) Notify(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	return post(ctx, w.client, "webhook", func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// Pushover sends a message through the Pushover API
type Pushover struct {
	URL    string
	Token  string
	User   string
	client *http.Client
}

func NewPushover(apiURL, token, user string, hc *http.Client) *Pushover {
	return &Pushover{URL: apiURL, Token: token, User: user, client: hc}
}

func (p *Pushover) Notify(ctx context.Context, e Event) error {
	form := url.Values{}
	form.Set("token", p.Token)
	form.Set("user", p.User)
	form.Set("title", e.Title)
	form.Set("message", e.Message)
	encoded := form.Encode()

	return post(ctx, p.client, "pushover", func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.URL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func post(ctx context.Context, hc *http.Client, service string, build func() (*http.Request, error)) error {
	_, err := util.RetryWithBackoff(ctx, util.HTTPRetryConfig(), func() (struct{}, error) {
		req, err := build()
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", config.AppName)
		resp, err := hc.Do(req.WithContext(ctx))
		if err != nil {
			return struct{}{}, fmt.Errorf("%s: %w", service, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return struct{}{}, &util.HTTPStatusError{Service: service, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return struct{}{}, nil
	}, service+" notification")
	return err
}

// Dispatcher filters events by the configured triggers and swallows
// delivery errors. The zero value and nil both drop every event.
type Dispatcher struct {
	notifier   Notifier
	onSnatch   bool
	onDownload bool
}

// New builds a dispatcher for the backends configured in cfg
func New(cfg config.NotifySettings, hc *http.Client) *Dispatcher {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	var m Multi
	if cfg.WebhookURL != "" {
		m = append(m, NewWebhook(cfg.WebhookURL, hc))
	}
	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		m = append(m, NewPushover(cfg.PushoverURL, cfg.PushoverToken, cfg.PushoverUser, hc))
	}
	return &Dispatcher{notifier: m, onSnatch: cfg.OnSnatch, onDownload: cfg.OnDownload}
}

// NewDispatcher wraps an explicit notifier with both triggers enabled
func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{notifier: n, onSnatch: true, onDownload: true}
}

// Enabled reports whether any backend is configured
func (d *Dispatcher) Enabled() bool {
	if d == nil || d.notifier == nil {
		return false
	}
	if m, ok := d.notifier.(Multi); ok {
		return len(m) > 0
	}
	return true
}

// Send delivers e when its kind is enabled. Errors are logged.
func (d *Dispatcher) Send(ctx context.Context, e Event) {
	if !d.Enabled() {
		return
	}
	switch e.Kind {
	case KindSnatch:
		if !d.onSnatch {
			return
		}
	case KindDownload, KindFailure:
		if !d.onDownload {
			return
		}
	}
	if err := d.notifier.Notify(ctx, e); err != nil {
		util.WarnLog("Notification %q failed: %v", e.Title, err)
	}
}
