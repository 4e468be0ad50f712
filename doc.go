// Package devicecloud provides a Go client library for the device cloud
// device-management API.
//
// This library provides access to the device directory, saved device
// queries, connected-device resource operations, the notification channel
// (webhook or long-poll delivery) and account metrics.
//
// # Authentication
//
// Every request is authenticated with an account API key:
//
//	client, err := devicecloud.NewClient("your-api-key")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Device Directory
//
// List registered devices:
//
//	devices, err := client.ListAllDevices(ctx)
//	for _, device := range devices {
//	    fmt.Printf("Device: %s (%s)\n", device.Name, device.ID)
//	}
//
// Or iterate with filtering and automatic pagination:
//
//	opts := &devicecloud.ListOptions{Filter: map[string]string{"state": "registered"}}
//	for device, err := range client.Devices(ctx, opts) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(device.ID)
//	}
//
// # Resource Operations
//
// Resource reads and writes are proxied to the device and usually complete
// asynchronously through the notification channel. Start the channel first,
// then use the resource methods as ordinary blocking calls:
//
//	if err := client.StartNotifications(ctx, nil); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.StopNotifications(ctx)
//
//	value, err := client.GetResourceValue(ctx, deviceID, "/3200/0/5500", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(value.String())
//
// No timeout is imposed on the wait for an async response; bound it with the
// context. Without an active channel the same calls return only an AsyncID
// for the caller to correlate.
//
// # Subscriptions and Events
//
// Subscribe to resource change notifications:
//
//	client.AddResourceSubscription(ctx, deviceID, "/3303/0/5700", func(e devicecloud.NotificationEvent) {
//	    v, _ := e.Value()
//	    fmt.Printf("temperature: %v\n", v)
//	}, nil)
//
// Device lifecycle events are delivered to typed listeners:
//
//	client.OnRegistration(func(events []devicecloud.DeviceEvent) {
//	    for _, e := range events {
//	        fmt.Printf("registered: %s\n", e.DeviceID)
//	    }
//	})
//
// # Webhook Delivery
//
// Instead of long polling, register a webhook and feed the envelopes your
// HTTP listener receives into the client:
//
//	client.SetHandleNotifications(true)
//	client.UpdateWebhook(ctx, "https://example.com/callback", nil)
//
//	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
//	    var envelope devicecloud.NotificationEnvelope
//	    if err := json.NewDecoder(r.Body).Decode(&envelope); err == nil {
//	        client.Notify(&envelope)
//	    }
//	    w.WriteHeader(http.StatusOK)
//	})
//
// Webhook and long-poll delivery are mutually exclusive: the remote service
// rejects StartNotifications while a webhook is registered.
//
// # Error Handling
//
// Check for specific error types:
//
//	device, err := client.GetDevice(ctx, deviceID)
//	if err != nil {
//	    if devicecloud.IsUnauthorized(err) {
//	        // API key is invalid or expired
//	    } else if devicecloud.IsNotFound(err) {
//	        // Device doesn't exist
//	    } else if devicecloud.IsRateLimited(err) {
//	        // Too many requests
//	    }
//	}
//
// # Retry Configuration
//
// Enable automatic retry for transient failures:
//
//	client, err := devicecloud.NewClient("api-key",
//	    devicecloud.WithRetry(devicecloud.DefaultRetryConfig()),
//	)
//
// # API Coverage
//
//   - Device directory: list, get, add, update, delete, filters, pagination
//   - Device queries: CRUD over saved directory filters
//   - Connected devices: list endpoints and their resources
//   - Resources: get/set/execute/delete with async completion
//   - Subscriptions: per-resource callbacks and presubscription rules
//   - Webhooks: register, inspect, delete the notification callback
//   - Notifications: long-poll channel lifecycle and typed event fan-out
//   - Metrics: account usage samples with windowing and pagination
package devicecloud
