package devicecloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_ListConnectedDevices(t *testing.T) {
	t.Run("successful response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/endpoints" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/v2/endpoints")
			}
			json.NewEncoder(w).Encode([]ConnectedDevice{
				{Name: "dev1", Type: "thermostat", Status: "ACTIVE"},
				{Name: "dev2", QueueMode: true},
			})
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		devices, err := client.ListConnectedDevices(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(devices) != 2 {
			t.Fatalf("got %d devices, want 2", len(devices))
		}
		if devices[0].Name != "dev1" {
			t.Errorf("Name = %q, want %q", devices[0].Name, "dev1")
		}
		if !devices[1].QueueMode {
			t.Error("QueueMode = false, want true")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		_, err := client.ListConnectedDevices(context.Background())
		if !IsDecodeError(err) {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
}

func TestClient_ListResources(t *testing.T) {
	t.Run("successful response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/endpoints/dev1" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/v2/endpoints/dev1")
			}
			json.NewEncoder(w).Encode([]Resource{
				{Path: "/3200/0/5500", Type: "button", Observable: true},
				{Path: "/3303/0/5700", ContentType: "text/plain"},
			})
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		resources, err := client.ListResources(context.Background(), "dev1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resources) != 2 {
			t.Fatalf("got %d resources, want 2", len(resources))
		}
		if resources[0].Path != "/3200/0/5500" {
			t.Errorf("Path = %q, want %q", resources[0].Path, "/3200/0/5500")
		}
	})

	t.Run("empty device ID", func(t *testing.T) {
		client, _ := NewClient("key")
		_, err := client.ListResources(context.Background(), "")
		if err != ErrEmptyDeviceID {
			t.Errorf("expected ErrEmptyDeviceID, got %v", err)
		}
	})
}

func TestClient_GetResourceValue(t *testing.T) {
	t.Run("synchronous cache hit resolves immediately", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/endpoints/dev1/3200/0/5500" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/v2/endpoints/dev1/3200/0/5500")
			}
			if r.URL.Query().Get("cacheOnly") != "true" {
				t.Errorf("cacheOnly = %q, want %q", r.URL.Query().Get("cacheOnly"), "true")
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("21.5"))
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		value, err := client.GetResourceValue(context.Background(), "dev1", "/3200/0/5500", &ResourceValueOptions{CacheOnly: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value.String() != "21.5" {
			t.Errorf("value = %q, want %q", value.String(), "21.5")
		}
		decoded, err := value.Value()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decoded != 21.5 {
			t.Errorf("decoded = %v, want 21.5", decoded)
		}
	})

	t.Run("deferred without handling returns bare async ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"async-response-id":"42#node-1"}`))
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		value, err := client.GetResourceValue(context.Background(), "dev1", "/3200/0/5500", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !value.Deferred() {
			t.Fatal("expected a deferred result")
		}
		if value.AsyncID != "42#node-1" {
			t.Errorf("AsyncID = %q, want %q", value.AsyncID, "42#node-1")
		}

		// Nothing registered: the caller correlates the response themselves.
		client.pendingMu.Lock()
		pending := len(client.pending)
		client.pendingMu.Unlock()
		if pending != 0 {
			t.Errorf("registry holds %d entries, want 0", pending)
		}
	})

	t.Run("deferred with handling waits for the async response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"async-response-id":"async-7"}`))
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		client.SetHandleNotifications(true)

		type outcome struct {
			value *ResourceValue
			err   error
		}
		results := make(chan outcome, 1)
		go func() {
			v, err := client.GetResourceValue(context.Background(), "dev1", "/3303/0/5700", nil)
			results <- outcome{v, err}
		}()

		waitForPending(t, client, "async-7")
		client.Notify(&NotificationEnvelope{
			AsyncResponses: []AsyncResponse{
				{ID: "async-7", Status: 200, ContentType: "text/plain", Payload: "MjEuNQ=="}, // "21.5"
			},
		})

		select {
		case result := <-results:
			if result.err != nil {
				t.Fatalf("unexpected error: %v", result.err)
			}
			if result.value.String() != "21.5" {
				t.Errorf("value = %q, want %q", result.value.String(), "21.5")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("resource read never completed")
		}
	})

	t.Run("context cancellation removes the pending entry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"async-response-id":"abandoned"}`))
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		client.SetHandleNotifications(true)

		ctx, cancel := context.WithCancel(context.Background())
		results := make(chan error, 1)
		go func() {
			_, err := client.GetResourceValue(ctx, "dev1", "/1/0/1", nil)
			results <- err
		}()

		waitForPending(t, client, "abandoned")
		cancel()

		select {
		case err := <-results:
			if err != context.Canceled {
				t.Errorf("error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("cancelled read never returned")
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			client.pendingMu.Lock()
			pending := len(client.pending)
			client.pendingMu.Unlock()
			if pending == 0 {
				return
			}
			time.Sleep(time.Millisecond)
		}
		t.Error("pending entry was not removed after cancellation")
	})

	t.Run("validation", func(t *testing.T) {
		client, _ := NewClient("key")
		if _, err := client.GetResourceValue(context.Background(), "", "/1/0/1", nil); err != ErrEmptyDeviceID {
			t.Errorf("expected ErrEmptyDeviceID, got %v", err)
		}
		if _, err := client.GetResourceValue(context.Background(), "dev1", "", nil); err != ErrEmptyResourcePath {
			t.Errorf("expected ErrEmptyResourcePath, got %v", err)
		}
	})
}

func TestClient_SetResourceValue(t *testing.T) {
	t.Run("async write resolves via notify", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("method = %q, want PUT", r.Method)
			}
			if r.URL.Path != "/v2/endpoints/dev1/3200/0/5500" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/v2/endpoints/dev1/3200/0/5500")
			}
			if ct := r.Header.Get("Content-Type"); ct != "text/plain" {
				t.Errorf("Content-Type = %q, want text/plain", ct)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "ChangeMe!" {
				t.Errorf("body = %q, want %q", body, "ChangeMe!")
			}
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"async-response-id":"123"}`))
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		client.SetHandleNotifications(true)

		results := make(chan error, 1)
		go func() {
			_, err := client.SetResourceValue(context.Background(), "dev1", "/3200/0/5500", "ChangeMe!", nil)
			results <- err
		}()

		waitForPending(t, client, "123")
		client.Notify(&NotificationEnvelope{
			AsyncResponses: []AsyncResponse{{ID: "123", Status: 200}},
		})

		select {
		case err := <-results:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("write never completed")
		}
	})

	t.Run("async error response surfaces as APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"async-response-id":"err-1"}`))
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		client.SetHandleNotifications(true)

		results := make(chan error, 1)
		go func() {
			_, err := client.SetResourceValue(context.Background(), "dev1", "/1/0/1", "x", nil)
			results <- err
		}()

		waitForPending(t, client, "err-1")
		client.Notify(&NotificationEnvelope{
			AsyncResponses: []AsyncResponse{{ID: "err-1", Status: 410, Error: "TIMEOUT"}},
		})

		select {
		case err := <-results:
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != 410 || apiErr.Message != "TIMEOUT" {
				t.Errorf("APIError = %+v", apiErr)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("write never completed")
		}
	})
}

func TestClient_ExecuteResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "reboot" {
			t.Errorf("body = %q, want %q", body, "reboot")
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := NewClient("key", WithBaseURL(server.URL))
	value, err := client.ExecuteResource(context.Background(), "dev1", "/3/0/4", "reboot", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.String() != "ok" {
		t.Errorf("value = %q, want %q", value.String(), "ok")
	}
}

func TestClient_DeleteResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := NewClient("key", WithBaseURL(server.URL))
	if _, err := client.DeleteResource(context.Background(), "dev1", "/1/0/1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
