package report

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
)

func TestNewWebhook_DisabledWithoutURL(t *testing.T) {
	require.Nil(t, NewWebhook(config.WebhookConfig{}))
}

func TestNotify_SignsAndDelivers(t *testing.T) {
	const secret = "topsecret"

	var gotBody []byte
	var gotSig, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Dossier-Signature")
		gotType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	wh := NewWebhook(config.WebhookConfig{URL: srv.URL, Secret: secret})
	require.NotNil(t, wh)

	rep := models.Report{
		Domain:    "profiles",
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Checked:   8,
		Found:     3,
		Changed:   []string{"new: Ada Quinn"},
	}
	wh.Notify(context.Background(), rep)

	require.Equal(t, "application/json", gotType)

	var decoded models.Report
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	require.Equal(t, rep.Domain, decoded.Domain)
	require.Equal(t, rep.Found, decoded.Found)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	require.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestNotify_FailureDoesNotPanic(t *testing.T) {
	wh := NewWebhook(config.WebhookConfig{URL: "http://127.0.0.1:1/unreachable"})
	require.NotNil(t, wh)

	// Delivery failures are logged and swallowed.
	wh.Notify(context.Background(), models.Report{Domain: "states"})
}
