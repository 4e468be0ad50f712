package devicecloud

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Presubscription asks the remote service to subscribe automatically to
// matching resources whenever a matching device registers. DeviceID and
// DeviceType accept a trailing "*" wildcard.
type Presubscription struct {
	DeviceID      string   `json:"endpoint-name,omitempty"`
	DeviceType    string   `json:"endpoint-type,omitempty"`
	ResourcePaths []string `json:"resource-path,omitempty"`
}

// AddResourceSubscription subscribes to change notifications for one device
// resource. onNotification, when non-nil, is invoked with every decoded
// notification for that exact (device, path) pair; at most one callback per
// pair is kept and re-subscribing overwrites it. The generic OnNotification
// listeners fire regardless.
//
// The callback is registered before the subscribe request is issued, so a
// notification racing the subscribe confirmation is dispatched correctly.
// If the request fails the registration is rolled back. The confirmation
// itself follows the deferred-response rules of GetResourceValue and usually
// carries the resource's current value.
func (c *Client) AddResourceSubscription(ctx context.Context, deviceID, path string, onNotification NotificationFunc, opts *ResourceValueOptions) (*ResourceValue, error) {
	if err := validateResource(deviceID, path); err != nil {
		return nil, err
	}

	key := subscriptionKey(deviceID, path)
	if onNotification != nil {
		c.subsMu.Lock()
		c.subscriptions[key] = onNotification
		c.subsMu.Unlock()
	}

	resp, err := c.doWithRetry(ctx, http.MethodPut, subscriptionEndpoint(deviceID, path)+resourceQuery(opts), "", nil)
	if err != nil {
		if onNotification != nil {
			c.subsMu.Lock()
			delete(c.subscriptions, key)
			c.subsMu.Unlock()
		}
		return nil, err
	}

	return c.completeResourceOperation(ctx, resp)
}

// GetResourceSubscription reports whether a subscription exists for the
// given device resource.
func (c *Client) GetResourceSubscription(ctx context.Context, deviceID, path string) (bool, error) {
	if err := validateResource(deviceID, path); err != nil {
		return false, err
	}

	_, err := c.get(ctx, subscriptionEndpoint(deviceID, path))
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteResourceSubscription unsubscribes from one device resource and
// removes its local notification callback.
func (c *Client) DeleteResourceSubscription(ctx context.Context, deviceID, path string) error {
	if err := validateResource(deviceID, path); err != nil {
		return err
	}

	c.subsMu.Lock()
	delete(c.subscriptions, subscriptionKey(deviceID, path))
	c.subsMu.Unlock()

	_, err := c.delete(ctx, subscriptionEndpoint(deviceID, path))
	return err
}

// DeleteDeviceSubscriptions removes every subscription of one device,
// including the local notification callbacks registered for it.
func (c *Client) DeleteDeviceSubscriptions(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}

	prefix := deviceID + "/"
	c.subsMu.Lock()
	for key := range c.subscriptions {
		if strings.HasPrefix(key, prefix) {
			delete(c.subscriptions, key)
		}
	}
	c.subsMu.Unlock()

	_, err := c.delete(ctx, "/v2/subscriptions/"+deviceID)
	return err
}

// DeleteSubscriptions removes every subscription of the account and clears
// all local notification callbacks.
func (c *Client) DeleteSubscriptions(ctx context.Context) error {
	c.clearSubscriptions()
	_, err := c.delete(ctx, "/v2/subscriptions")
	return err
}

// ListPresubscriptions returns the account's presubscription rules.
func (c *Client) ListPresubscriptions(ctx context.Context) ([]Presubscription, error) {
	data, err := c.get(ctx, "/v2/subscriptions")
	if err != nil {
		return nil, err
	}

	var presubs []Presubscription
	if err := json.Unmarshal(data, &presubs); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return presubs, nil
}

// UpdatePresubscriptions replaces the account's presubscription rules.
func (c *Client) UpdatePresubscriptions(ctx context.Context, presubscriptions []Presubscription) error {
	if presubscriptions == nil {
		presubscriptions = []Presubscription{}
	}
	_, err := c.put(ctx, "/v2/subscriptions", presubscriptions)
	return err
}

// DeletePresubscriptions removes all presubscription rules by replacing them
// with an empty set.
func (c *Client) DeletePresubscriptions(ctx context.Context) error {
	return c.UpdatePresubscriptions(ctx, []Presubscription{})
}

// subscriptionCallback returns the notification callback registered for a
// (device, path) pair, or nil.
func (c *Client) subscriptionCallback(deviceID, path string) NotificationFunc {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[subscriptionKey(deviceID, path)]
}

// clearSubscriptions drops every local notification callback.
func (c *Client) clearSubscriptions() {
	c.subsMu.Lock()
	c.subscriptions = make(map[string]NotificationFunc)
	c.subsMu.Unlock()
}

// subscriptionKey normalizes the resource path so that "3200/0/5500" and
// "/3200/0/5500" identify the same subscription.
func subscriptionKey(deviceID, path string) string {
	return deviceID + normalizeResourcePath(path)
}

// subscriptionEndpoint builds the subscription path for a device resource.
func subscriptionEndpoint(deviceID, path string) string {
	return "/v2/subscriptions/" + deviceID + normalizeResourcePath(path)
}
