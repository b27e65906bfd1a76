// pushplus backed [Notifier] implementation.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Jikexiaobai/Y2B/internal/models"
	"github.com/Jikexiaobai/Y2B/internal/shared"
)

// NewPushNotifier builds a notifier backed by pushplus when a token is
// configured. Without a token a noop implementation is returned.
func NewPushNotifier(cfg *shared.Config) Notifier {
	if cfg.Notify.Token == "" {
		return noopNotifier{}
	}

	transport := &http.Transport{}
	if cfg.Notify.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.Notify.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &PushNotifier{
		endpoint: cfg.Notify.Endpoint,
		token:    cfg.Notify.Token,
		client:   &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

// PushNotifier sends fire-and-forget notifications to a pushplus endpoint.
// The proxy configured via https_proxy applies only to these calls.
type PushNotifier struct {
	endpoint string
	token    string
	client   *http.Client
}

type pushMessage struct {
	Token   string `json:"token"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NotifySuccess reports a completed migration with the destination's
// assigned identifiers.
func (p *PushNotifier) NotifySuccess(ctx context.Context, item models.SourceItem, result *models.UploadResult) error {
	bvid := ""
	if result != nil {
		bvid = result.Data.Bvid
	}
	return p.send(ctx, pushMessage{
		Token:   p.token,
		Title:   fmt.Sprintf("Migrated: %s", item.Title),
		Content: fmt.Sprintf("Submission: %s\nBvid: %s\nOriginal video: %s", item.Title, bvid, item.Origin),
	})
}

// NotifyFailure reports a failed publish with the uploader's error detail.
func (p *PushNotifier) NotifyFailure(ctx context.Context, item models.SourceItem, detail string) error {
	return p.send(ctx, pushMessage{
		Token:   p.token,
		Title:   fmt.Sprintf("Migration failed: %s", item.Title),
		Content: fmt.Sprintf("Submission: %s\nError: %s\nOriginal video: %s", item.Title, detail, item.Origin),
	})
}

func (p *PushNotifier) send(ctx context.Context, msg pushMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification send failed: status %d", resp.StatusCode)
	}
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifySuccess(context.Context, models.SourceItem, *models.UploadResult) error {
	return nil
}

func (noopNotifier) NotifyFailure(context.Context, models.SourceItem, string) error {
	return nil
}
