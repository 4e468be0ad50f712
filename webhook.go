package devicecloud

import (
	"context"
)

// webhookPath is the notification callback registration endpoint.
const webhookPath = "/v2/notification/callback"

// Webhook is a registered callback URL the remote service pushes
// notification envelopes to. Headers are sent with every delivery.
type Webhook struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// GetWebhook returns the currently registered webhook.
// Returns ErrNotFound when no webhook is registered.
func (c *Client) GetWebhook(ctx context.Context) (*Webhook, error) {
	data, err := c.get(ctx, webhookPath)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[Webhook](data, "webhook")
}

// UpdateWebhook registers or overwrites the notification webhook. Webhook
// delivery and long polling are mutually exclusive server-side; registering
// a webhook does not change the local channel state.
//
// Inbound webhook deliveries arrive at the caller's own HTTP listener, which
// must feed each envelope body to Notify. Enable SetHandleNotifications
// first so async resource operations resolve through the dispatch core.
func (c *Client) UpdateWebhook(ctx context.Context, url string, headers map[string]string) error {
	if url == "" {
		return ErrEmptyWebhookURL
	}

	_, err := c.put(ctx, webhookPath, &Webhook{URL: url, Headers: headers})
	return err
}

// DeleteWebhook removes the registered webhook.
// Returns ErrNotFound when no webhook is registered. The remote service
// also drops every resource subscription when the webhook is deleted, so
// the local notification callbacks are cleared to match.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.delete(ctx, webhookPath)
	if err != nil {
		return err
	}

	c.clearSubscriptions()
	return nil
}
