package devicecloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// ConnectedDevice is a device currently connected to the cloud's device
// gateway and reachable for resource operations.
type ConnectedDevice struct {
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	QueueMode bool   `json:"q,omitempty"`
}

// Resource describes one resource exposed by a connected device.
type Resource struct {
	Path        string `json:"uri"`
	Type        string `json:"rt,omitempty"`
	ContentType string `json:"type,omitempty"`
	Observable  bool   `json:"obs,omitempty"`
}

// ResourceValueOptions modifies how a resource operation is served.
type ResourceValueOptions struct {
	// CacheOnly answers from the server-side cache without waking the
	// device. Cache hits are served synchronously.
	CacheOnly bool

	// NoResponse sends the operation without requesting a device
	// acknowledgement. No async response will be produced.
	NoResponse bool
}

// ResourceValue is the outcome of a resource operation.
//
// When the remote service answered synchronously, Payload and ContentType
// carry the result. When the operation was deferred and the client is
// handling notifications, Payload carries the decoded async payload once it
// arrives. When the operation was deferred and the client is NOT handling
// notifications, only AsyncID is set and correlating the eventual
// async-responses entry is the caller's job.
type ResourceValue struct {
	AsyncID     string
	ContentType string
	Payload     []byte
	MaxAge      int
}

// Deferred reports whether the operation result is still outstanding and
// must be correlated by the caller via AsyncID.
func (v *ResourceValue) Deferred() bool {
	return v.AsyncID != "" && v.Payload == nil
}

// Value decodes the payload according to its content type: structured JSON
// payloads unmarshal into Go values, text payloads become float64 when
// numeric and string otherwise, anything else passes through as []byte.
func (v *ResourceValue) Value() (any, error) {
	return decodeValue(v.Payload, v.ContentType)
}

// String returns the payload as text.
func (v *ResourceValue) String() string {
	return string(v.Payload)
}

// ListConnectedDevices returns the devices currently connected and reachable
// for resource operations.
func (c *Client) ListConnectedDevices(ctx context.Context) ([]ConnectedDevice, error) {
	data, err := c.get(ctx, "/v2/endpoints")
	if err != nil {
		return nil, err
	}

	var devices []ConnectedDevice
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return devices, nil
}

// ListResources returns the resources exposed by a connected device.
func (c *Client) ListResources(ctx context.Context, deviceID string) ([]Resource, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	data, err := c.get(ctx, "/v2/endpoints/"+deviceID)
	if err != nil {
		return nil, err
	}

	var resources []Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return resources, nil
}

// GetResourceValue reads the current value of a device resource.
//
// Unless served from cache, the read is deferred by the remote service and
// completed through the notification channel; see ResourceValue for how
// deferred results surface. The call blocks until the matching async
// response arrives or ctx is done. No timeout is enforced by the client:
// bound the wait with ctx.
func (c *Client) GetResourceValue(ctx context.Context, deviceID, path string, opts *ResourceValueOptions) (*ResourceValue, error) {
	if err := validateResource(deviceID, path); err != nil {
		return nil, err
	}

	resp, err := c.doWithRetry(ctx, http.MethodGet, resourceEndpoint(deviceID, path)+resourceQuery(opts), "", nil)
	if err != nil {
		return nil, err
	}
	return c.completeResourceOperation(ctx, resp)
}

// SetResourceValue writes a value to a device resource. The value travels as
// a plain-text request body. Completion follows the same deferred-response
// rules as GetResourceValue.
func (c *Client) SetResourceValue(ctx context.Context, deviceID, path, value string, opts *ResourceValueOptions) (*ResourceValue, error) {
	if err := validateResource(deviceID, path); err != nil {
		return nil, err
	}

	resp, err := c.doWithRetry(ctx, http.MethodPut, resourceEndpoint(deviceID, path)+resourceQuery(opts), "text/plain", []byte(value))
	if err != nil {
		return nil, err
	}
	return c.completeResourceOperation(ctx, resp)
}

// ExecuteResource executes a device resource. functionName is optional and
// travels as a plain-text request body when set. Completion follows the same
// deferred-response rules as GetResourceValue.
func (c *Client) ExecuteResource(ctx context.Context, deviceID, path, functionName string, opts *ResourceValueOptions) (*ResourceValue, error) {
	if err := validateResource(deviceID, path); err != nil {
		return nil, err
	}

	var body []byte
	if functionName != "" {
		body = []byte(functionName)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, resourceEndpoint(deviceID, path)+resourceQuery(opts), "text/plain", body)
	if err != nil {
		return nil, err
	}
	return c.completeResourceOperation(ctx, resp)
}

// DeleteResource deletes a device resource. Completion follows the same
// deferred-response rules as GetResourceValue.
func (c *Client) DeleteResource(ctx context.Context, deviceID, path string, opts *ResourceValueOptions) (*ResourceValue, error) {
	if err := validateResource(deviceID, path); err != nil {
		return nil, err
	}

	resp, err := c.doWithRetry(ctx, http.MethodDelete, resourceEndpoint(deviceID, path)+resourceQuery(opts), "", nil)
	if err != nil {
		return nil, err
	}
	return c.completeResourceOperation(ctx, resp)
}

// completeResourceOperation resolves the two response shapes of the resource
// proxy: a synchronous result carries the final payload, a deferred result
// carries an async ID that the notification dispatch core completes later.
func (c *Client) completeResourceOperation(ctx context.Context, resp *apiResponse) (*ResourceValue, error) {
	id, deferred := asyncResponseID(resp)
	if !deferred {
		return &ResourceValue{
			ContentType: resp.contentType,
			Payload:     resp.body,
		}, nil
	}

	if !c.HandlesNotifications() {
		return &ResourceValue{AsyncID: id}, nil
	}

	ch := c.registerPending(id)
	select {
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		return asyncOutcome(result.response)
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}
}

// asyncResponseID extracts the async ID of a deferred response, reporting
// false for synchronous results.
func asyncResponseID(resp *apiResponse) (string, bool) {
	if resp.status != http.StatusAccepted || len(resp.body) == 0 {
		return "", false
	}
	var deferred struct {
		ID string `json:"async-response-id"`
	}
	if err := json.Unmarshal(resp.body, &deferred); err != nil || deferred.ID == "" {
		return "", false
	}
	return deferred.ID, true
}

// asyncOutcome converts a matched async-responses entry into the operation
// result: an error when the entry reports one, the decoded payload otherwise.
func asyncOutcome(ar AsyncResponse) (*ResourceValue, error) {
	if ar.Error != "" || ar.Status >= 400 {
		message := ar.Error
		if message == "" {
			if payload, err := decodeBase64(ar.Payload); err == nil {
				message = string(payload)
			}
		}
		return nil, &APIError{StatusCode: ar.Status, Message: message}
	}

	payload, err := decodeBase64(ar.Payload)
	if err != nil {
		return nil, &DecodeError{ContentType: ar.ContentType, Err: err}
	}

	return &ResourceValue{
		AsyncID:     ar.ID,
		ContentType: ar.ContentType,
		Payload:     payload,
		MaxAge:      ar.MaxAge,
	}, nil
}

// validateResource checks the identifiers shared by all resource operations.
func validateResource(deviceID, path string) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}
	if path == "" {
		return ErrEmptyResourcePath
	}
	return nil
}

// normalizeResourcePath ensures a single leading slash so that
// "3200/0/5500" and "/3200/0/5500" address the same resource.
func normalizeResourcePath(path string) string {
	return "/" + strings.TrimPrefix(path, "/")
}

// resourceEndpoint builds the resource-proxy path for a device resource.
func resourceEndpoint(deviceID, path string) string {
	return "/v2/endpoints/" + deviceID + normalizeResourcePath(path)
}

// resourceQuery renders ResourceValueOptions as a query string.
func resourceQuery(opts *ResourceValueOptions) string {
	if opts == nil {
		return ""
	}
	q := url.Values{}
	if opts.CacheOnly {
		q.Set("cacheOnly", "true")
	}
	if opts.NoResponse {
		q.Set("noResp", "true")
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
