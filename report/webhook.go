// Package report delivers pass reports to the upstream notification layer.
// Delivery is strictly one-way and best-effort: a failed delivery is logged
// and never fails the pass that produced the report.
package report

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
)

// Webhook POSTs each report as JSON to a configured endpoint. The body is
// signed with HMAC-SHA256 when a secret is set.
// Header: X-Dossier-Signature: sha256=<hex>
type Webhook struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewWebhook creates a Webhook notifier. A nil return means delivery is not
// configured; the scheduler accepts a nil notifier.
func NewWebhook(cfg config.WebhookConfig) *Webhook {
	if cfg.URL == "" {
		return nil
	}
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify delivers one report synchronously.
func (w *Webhook) Notify(ctx context.Context, rep models.Report) {
	body, err := json.Marshal(rep)
	if err != nil {
		slog.Error("report: marshal report", "domain", rep.Domain, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		slog.Error("report: create request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Dossier-Webhook/1.0")

	if w.cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.cfg.Secret))
		mac.Write(body)
		req.Header.Set("X-Dossier-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		slog.Warn("report: delivery failed", "domain", rep.Domain, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("report: endpoint rejected delivery",
			"domain", rep.Domain, "status", resp.StatusCode)
	}
}
