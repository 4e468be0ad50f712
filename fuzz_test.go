package devicecloud

import (
	"encoding/json"
	"testing"
)

// FuzzDecodeValue fuzzes resource payload decoding.
// Run with: go test -fuzz=FuzzDecodeValue
func FuzzDecodeValue(f *testing.F) {
	// Add seed corpus
	f.Add([]byte("21.5"), "text/plain")
	f.Add([]byte(`{"state":"open"}`), "application/json")
	f.Add([]byte(`[1,2,3]`), "application/senml+json")
	f.Add([]byte{0x00, 0xff}, "application/octet-stream")
	f.Add([]byte(""), "")
	f.Add([]byte("on"), "text/plain; charset=utf-8")

	f.Fuzz(func(t *testing.T, data []byte, contentType string) {
		// Should not panic - decode errors are acceptable
		_, _ = decodeValue(data, contentType)
	})
}

// FuzzNotify fuzzes notification envelope dispatch.
// Run with: go test -fuzz=FuzzNotify
func FuzzNotify(f *testing.F) {
	f.Add([]byte(`{"notifications":[{"ep":"dev1","path":"/3200/0/5500","payload":"Q2hhbmdlIG1lIQ=="}]}`))
	f.Add([]byte(`{"async-responses":[{"id":"x","status":200,"payload":"b24="}]}`))
	f.Add([]byte(`{"registrations":[{"ep":"dev1","ept":"sensor"}]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"notifications":[{"payload":"%%%"}]}`))

	client, _ := NewClient("key")
	client.OnNotification(func(NotificationEvent) {})
	client.OnRegistration(func([]DeviceEvent) {})

	f.Fuzz(func(t *testing.T, data []byte) {
		var envelope NotificationEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return // Invalid JSON is acceptable
		}
		// Should not panic regardless of envelope contents
		client.Notify(&envelope)
	})
}

// FuzzDeviceJSONParsing fuzzes device JSON unmarshaling.
// Run with: go test -fuzz=FuzzDeviceJSONParsing
func FuzzDeviceJSONParsing(f *testing.F) {
	f.Add([]byte(`{"id":"123","name":"Test"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"custom_attributes":{"k":"v"}}`))
	f.Add([]byte(`{"id":"","created_at":"2026-01-01T00:00:00Z"}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var device Device
		// Should not panic - errors are acceptable
		_ = json.Unmarshal(data, &device)
	})
}

// FuzzNormalizeResourcePath fuzzes resource path normalization.
// Run with: go test -fuzz=FuzzNormalizeResourcePath
func FuzzNormalizeResourcePath(f *testing.F) {
	f.Add("/3200/0/5500")
	f.Add("3200/0/5500")
	f.Add("")
	f.Add("//")

	f.Fuzz(func(t *testing.T, path string) {
		got := normalizeResourcePath(path)
		// Normalization must be idempotent
		if again := normalizeResourcePath(got); again != got {
			t.Errorf("not idempotent: %q -> %q -> %q", path, got, again)
		}
	})
}
