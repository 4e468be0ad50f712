package devicecloud

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// notificationPullPath is the long-poll channel endpoint. Registering the
// channel (PUT) fails remotely when a webhook callback is in use, which is
// how webhook/long-poll exclusivity is enforced.
const notificationPullPath = "/v2/notification/pull"

// channelState tracks the local notification channel lifecycle.
type channelState int

const (
	channelStopped channelState = iota
	channelStarting
	channelPolling
	channelStopping
)

// ResourceNotification is one resource value push inside a notification
// envelope. Payload is base64-encoded on the wire.
type ResourceNotification struct {
	DeviceID    string `json:"ep"`
	Path        string `json:"path"`
	ContentType string `json:"ct,omitempty"`
	Payload     string `json:"payload,omitempty"`
	MaxAge      int    `json:"max-age,omitempty"`
}

// DeviceEventResource describes one resource carried by a device lifecycle
// event.
type DeviceEventResource struct {
	Path        string `json:"path"`
	Type        string `json:"rt,omitempty"`
	ContentType string `json:"ct,omitempty"`
	Observable  bool   `json:"obs,omitempty"`
}

// DeviceEvent is one device lifecycle entry (registration, registration
// update, deregistration or expiry) inside a notification envelope.
type DeviceEvent struct {
	DeviceID   string                `json:"ep"`
	DeviceType string                `json:"ept,omitempty"`
	QueueMode  bool                  `json:"q,omitempty"`
	Resources  []DeviceEventResource `json:"resources,omitempty"`
}

// AsyncResponse is the deferred result of a resource operation, delivered
// through the notification channel instead of the original HTTP response.
type AsyncResponse struct {
	ID          string `json:"id"`
	Status      int    `json:"status"`
	ContentType string `json:"ct,omitempty"`
	Payload     string `json:"payload,omitempty"`
	MaxAge      int    `json:"max-age,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NotificationEnvelope is one inbound notification payload batch. Every
// field is independent and optional; an envelope may carry any combination
// of categories, including none.
type NotificationEnvelope struct {
	Notifications        []ResourceNotification `json:"notifications,omitempty"`
	Registrations        []DeviceEvent          `json:"registrations,omitempty"`
	RegistrationUpdates  []DeviceEvent          `json:"reg-updates,omitempty"`
	Deregistrations      []DeviceEvent          `json:"de-registrations,omitempty"`
	RegistrationsExpired []DeviceEvent          `json:"registrations-expired,omitempty"`
	AsyncResponses       []AsyncResponse        `json:"async-responses,omitempty"`
}

// NotificationEvent is the decoded form of a resource notification, as
// delivered to subscription callbacks and OnNotification listeners.
type NotificationEvent struct {
	DeviceID    string
	Path        string
	ContentType string
	Payload     []byte
}

// Value decodes the payload according to its content type. See
// ResourceValue.Value for the decoding rules.
func (e NotificationEvent) Value() (any, error) {
	return decodeValue(e.Payload, e.ContentType)
}

// NotificationFunc receives decoded resource notifications.
type NotificationFunc func(NotificationEvent)

// DeviceEventFunc receives the device lifecycle events of one envelope
// category.
type DeviceEventFunc func([]DeviceEvent)

// asyncResult completes one pending async resource operation.
type asyncResult struct {
	response AsyncResponse
	err      error
}

// NotificationOptions configures StartNotifications.
type NotificationOptions struct {
	// Interval is the delay between consecutive long-poll requests.
	// Defaults to DefaultPollInterval.
	Interval time.Duration

	// RequestCallback is invoked with every poll request failure. Failures
	// never stop the loop; callers that want to abort on errors should call
	// StopNotifications from the callback.
	RequestCallback func(error)
}

// OnNotification registers a listener for every resource notification,
// regardless of whether a per-resource subscription callback exists.
func (c *Client) OnNotification(fn NotificationFunc) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.notificationFns = append(c.notificationFns, fn)
}

// OnRegistration registers a listener for device registration events.
func (c *Client) OnRegistration(fn DeviceEventFunc) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.registrationFns = append(c.registrationFns, fn)
}

// OnReregistration registers a listener for device registration-update events.
func (c *Client) OnReregistration(fn DeviceEventFunc) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.reregistrationFns = append(c.reregistrationFns, fn)
}

// OnDeregistration registers a listener for device deregistration events.
func (c *Client) OnDeregistration(fn DeviceEventFunc) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.deregistrationFns = append(c.deregistrationFns, fn)
}

// OnExpired registers a listener for expired device registration events.
func (c *Client) OnExpired(fn DeviceEventFunc) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.expiredFns = append(c.expiredFns, fn)
}

// SetHandleNotifications controls whether the client dispatches inbound
// envelopes itself. StartNotifications enables it automatically; deployments
// that receive envelopes via webhook must enable it manually before feeding
// Notify, otherwise async resource operations return bare async IDs for the
// caller to correlate.
func (c *Client) SetHandleNotifications(handle bool) {
	c.handleNotif.Store(handle)
}

// HandlesNotifications reports whether the client dispatches inbound
// envelopes itself.
func (c *Client) HandlesNotifications() bool {
	return c.handleNotif.Load()
}

// Notify feeds one notification envelope into the dispatch core. It is the
// single entry point for both delivery mechanisms: the polling loop calls it
// with each poll response, and webhook deployments call it with each POSTed
// envelope body.
//
// Envelopes are processed one at a time: concurrent calls serialize, and
// each envelope's entries are fully dispatched before the next envelope
// begins. A malformed entry is logged and skipped without affecting the
// remaining entries. Listener callbacks run on the caller's goroutine and
// must not call Notify.
func (c *Client) Notify(envelope *NotificationEnvelope) {
	if envelope == nil {
		return
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	for _, n := range envelope.Notifications {
		payload, err := decodeBase64(n.Payload)
		if err != nil {
			c.logDispatch("notification_decode_failed", err,
				slog.String("device_id", n.DeviceID),
				slog.String("path", n.Path),
			)
			continue
		}
		event := NotificationEvent{
			DeviceID:    n.DeviceID,
			Path:        n.Path,
			ContentType: n.ContentType,
			Payload:     payload,
		}
		if fn := c.subscriptionCallback(n.DeviceID, n.Path); fn != nil {
			fn(event)
		}
		for _, fn := range c.notificationListeners() {
			fn(event)
		}
	}

	c.emitDeviceEvents(envelope.Registrations, c.registrationListeners())
	c.emitDeviceEvents(envelope.RegistrationUpdates, c.reregistrationListeners())
	c.emitDeviceEvents(envelope.Deregistrations, c.deregistrationListeners())
	c.emitDeviceEvents(envelope.RegistrationsExpired, c.expiredListeners())

	for _, ar := range envelope.AsyncResponses {
		ch := c.takePending(ar.ID)
		if ch == nil {
			// Late, duplicate or unknown response: dropped silently.
			continue
		}
		ch <- asyncResult{response: ar}
	}
}

// emitDeviceEvents fans one envelope category out to its listeners.
// Emission is fire-and-forget: zero listeners is not an error.
func (c *Client) emitDeviceEvents(events []DeviceEvent, listeners []DeviceEventFunc) {
	if len(events) == 0 {
		return
	}
	for _, fn := range listeners {
		fn(events)
	}
}

func (c *Client) notificationListeners() []NotificationFunc {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.notificationFns
}

func (c *Client) registrationListeners() []DeviceEventFunc {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.registrationFns
}

func (c *Client) reregistrationListeners() []DeviceEventFunc {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.reregistrationFns
}

func (c *Client) deregistrationListeners() []DeviceEventFunc {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.deregistrationFns
}

func (c *Client) expiredListeners() []DeviceEventFunc {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.expiredFns
}

// registerPending adds a pending async operation keyed by its server-issued
// async ID. The returned channel receives exactly one result.
func (c *Client) registerPending(id string) chan asyncResult {
	ch := make(chan asyncResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	return ch
}

// takePending removes and returns the pending entry for id, or nil when no
// operation is waiting under that id.
func (c *Client) takePending(id string) chan asyncResult {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return ch
}

// removePending discards a pending entry, used when the waiting caller's
// context expires first.
func (c *Client) removePending(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// failAllPending completes every outstanding async operation with
// ErrChannelStopped. Only called when WithFailPendingOnStop is configured.
func (c *Client) failAllPending() {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan asyncResult)
	c.pendingMu.Unlock()

	for _, ch := range pending {
		ch <- asyncResult{err: ErrChannelStopped}
	}
}

// StartNotifications registers a long-poll channel with the remote service
// and starts the polling loop. It returns ErrAlreadyActive when the channel
// is not stopped. The remote service rejects the registration when a webhook
// callback is in use; the error is surfaced and the channel returns to
// stopped.
//
// On success the client handles notifications itself (see
// SetHandleNotifications) until told otherwise. ctx governs only the
// registration request; the polling loop runs until StopNotifications.
func (c *Client) StartNotifications(ctx context.Context, opts *NotificationOptions) error {
	c.channelMu.Lock()
	if c.channelState != channelStopped {
		c.channelMu.Unlock()
		return ErrAlreadyActive
	}
	c.channelState = channelStarting
	c.channelMu.Unlock()

	if _, err := c.doWithRetry(ctx, http.MethodPut, notificationPullPath, "", nil); err != nil {
		c.channelMu.Lock()
		c.channelState = channelStopped
		c.channelMu.Unlock()
		return err
	}

	interval := DefaultPollInterval
	var requestCallback func(error)
	if opts != nil {
		if opts.Interval > 0 {
			interval = opts.Interval
		}
		requestCallback = opts.RequestCallback
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.channelMu.Lock()
	c.channelState = channelPolling
	c.pollCancel = cancel
	c.pollDone = done
	c.channelMu.Unlock()

	c.handleNotif.Store(true)

	go c.pollLoop(pollCtx, done, interval, requestCallback)
	return nil
}

// pollLoop issues sequential long-poll requests until its context is
// cancelled. At most one poll request is in flight at any time; the next
// poll is scheduled only after the previous one completes or fails.
func (c *Client) pollLoop(ctx context.Context, done chan struct{}, interval time.Duration, requestCallback func(error)) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		// No retry wrapper here: a failed poll is reported via the callback
		// and the loop itself provides the cadence.
		resp, err := c.do(ctx, http.MethodGet, notificationPullPath, "", nil)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			c.logPoll(err)
			if requestCallback != nil {
				requestCallback(err)
			}
		case len(resp.body) > 0:
			var envelope NotificationEnvelope
			if uerr := json.Unmarshal(resp.body, &envelope); uerr != nil {
				c.logPoll(uerr)
				if requestCallback != nil {
					requestCallback(uerr)
				}
			} else if c.HandlesNotifications() {
				c.Notify(&envelope)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// StopNotifications stops the polling loop and deregisters the long-poll
// channel. It resolves without error and without any HTTP call when the
// channel is not polling. The handle-notifications flag is left untouched;
// switching it off is the caller's decision.
//
// Outstanding async operations are left pending unless the client was
// created with WithFailPendingOnStop.
func (c *Client) StopNotifications(ctx context.Context) error {
	c.channelMu.Lock()
	if c.channelState != channelPolling {
		c.channelMu.Unlock()
		return nil
	}
	c.channelState = channelStopping
	cancel := c.pollCancel
	done := c.pollDone
	c.pollCancel = nil
	c.pollDone = nil
	c.channelMu.Unlock()

	cancel()
	<-done

	_, err := c.doWithRetry(ctx, http.MethodDelete, notificationPullPath, "", nil)

	if c.failPendingOnStop {
		c.failAllPending()
	}

	c.channelMu.Lock()
	c.channelState = channelStopped
	c.channelMu.Unlock()

	return err
}
