package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/driftloom/loomcore/pkg/models"
)

// Webhook posts the permission request as JSON to an external HTTP
// endpoint and expects a ChannelResponse back in the response body.
// It is the channel of choice for bridging into chat-ops style
// approval flows (Slack/Discord/Telegram bots sitting behind the
// webhook) without the core module depending on any chat SDK.
type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook builds a Webhook channel targeting url, with a default
// 30s HTTP client if client is nil.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{URL: url, Client: client}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Resolve(ctx context.Context, req models.PermissionRequest, display DisplayInfo) (models.ChannelResponse, error) {
	body, err := json.Marshal(struct {
		Request models.PermissionRequest `json:"request"`
		Display DisplayInfo              `json:"display"`
	}{Request: req, Display: display})
	if err != nil {
		return models.ChannelResponse{}, fmt.Errorf("webhook: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return models.ChannelResponse{}, fmt.Errorf("webhook: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(httpReq)
	if err != nil {
		return models.ChannelResponse{RequestID: req.RequestID, Decision: models.ChannelTimeout, Reason: err.Error()}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return models.ChannelResponse{}, fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	var out models.ChannelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.ChannelResponse{}, fmt.Errorf("webhook: decode response: %w", err)
	}
	if out.RequestID == "" {
		out.RequestID = req.RequestID
	}
	return out, nil
}
