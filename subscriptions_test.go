package devicecloud

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_AddResourceSubscription(t *testing.T) {
	t.Run("callback registered and notification dispatched", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("method = %q, want PUT", r.Method)
			}
			if r.URL.Path != "/v2/subscriptions/dev1/3200/0/5500" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/v2/subscriptions/dev1/3200/0/5500")
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		var callbackEvents []NotificationEvent
		_, err := client.AddResourceSubscription(context.Background(), "dev1", "/3200/0/5500", func(e NotificationEvent) {
			callbackEvents = append(callbackEvents, e)
		}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var genericEvents int
		client.OnNotification(func(NotificationEvent) { genericEvents++ })

		// Wire path omits the leading slash; the registry must still match.
		client.Notify(&NotificationEnvelope{
			Notifications: []ResourceNotification{
				{DeviceID: "dev1", Path: "3200/0/5500", Payload: "Q2hhbmdlIG1lIQ=="},
			},
		})

		if len(callbackEvents) != 1 {
			t.Fatalf("callback invoked %d times, want 1", len(callbackEvents))
		}
		if string(callbackEvents[0].Payload) != "Change me!" {
			t.Errorf("Payload = %q, want %q", callbackEvents[0].Payload, "Change me!")
		}
		if genericEvents != 1 {
			t.Errorf("generic event emitted %d times, want 1", genericEvents)
		}
	})

	t.Run("re-subscribing overwrites the callback", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		var first, second int
		client.AddResourceSubscription(context.Background(), "dev1", "/1/0/1", func(NotificationEvent) { first++ }, nil)
		client.AddResourceSubscription(context.Background(), "dev1", "/1/0/1", func(NotificationEvent) { second++ }, nil)

		client.Notify(&NotificationEnvelope{
			Notifications: []ResourceNotification{{DeviceID: "dev1", Path: "/1/0/1", Payload: "MQ=="}},
		})

		if first != 0 {
			t.Errorf("old callback invoked %d times, want 0", first)
		}
		if second != 1 {
			t.Errorf("new callback invoked %d times, want 1", second)
		}
	})

	t.Run("request failure rolls back the registration", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		_, err := client.AddResourceSubscription(context.Background(), "dev1", "/1/0/1", func(NotificationEvent) {
			t.Error("callback must not survive a failed subscribe")
		}, nil)
		if !IsNotFound(err) {
			t.Fatalf("expected not found error, got %v", err)
		}

		client.Notify(&NotificationEnvelope{
			Notifications: []ResourceNotification{{DeviceID: "dev1", Path: "/1/0/1", Payload: "MQ=="}},
		})
	})

	t.Run("validation", func(t *testing.T) {
		client, _ := NewClient("key")
		if _, err := client.AddResourceSubscription(context.Background(), "", "/1/0/1", nil, nil); err != ErrEmptyDeviceID {
			t.Errorf("expected ErrEmptyDeviceID, got %v", err)
		}
		if _, err := client.AddResourceSubscription(context.Background(), "dev1", "", nil, nil); err != ErrEmptyResourcePath {
			t.Errorf("expected ErrEmptyResourcePath, got %v", err)
		}
	})
}

func TestClient_GetResourceSubscription(t *testing.T) {
	t.Run("subscribed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		subscribed, err := client.GetResourceSubscription(context.Background(), "dev1", "/1/0/1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !subscribed {
			t.Error("subscribed = false, want true")
		}
	})

	t.Run("not subscribed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		subscribed, err := client.GetResourceSubscription(context.Background(), "dev1", "/1/0/1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if subscribed {
			t.Error("subscribed = true, want false")
		}
	})
}

func TestClient_DeleteResourceSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path != "/v2/subscriptions/dev1/1/0/1" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v2/subscriptions/dev1/1/0/1")
		}
	}))
	defer server.Close()

	client, _ := NewClient("key", WithBaseURL(server.URL))
	var calls int
	client.AddResourceSubscription(context.Background(), "dev1", "/1/0/1", func(NotificationEvent) { calls++ }, nil)

	if err := client.DeleteResourceSubscription(context.Background(), "dev1", "/1/0/1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client.Notify(&NotificationEnvelope{
		Notifications: []ResourceNotification{{DeviceID: "dev1", Path: "/1/0/1", Payload: "MQ=="}},
	})
	if calls != 0 {
		t.Errorf("callback invoked %d times after unsubscribe, want 0", calls)
	}
}

func TestClient_DeleteDeviceSubscriptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path != "/v2/subscriptions/dev1" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v2/subscriptions/dev1")
		}
	}))
	defer server.Close()

	client, _ := NewClient("key", WithBaseURL(server.URL))
	var dev1Calls, dev2Calls int
	client.AddResourceSubscription(context.Background(), "dev1", "/1/0/1", func(NotificationEvent) { dev1Calls++ }, nil)
	client.AddResourceSubscription(context.Background(), "dev2", "/1/0/1", func(NotificationEvent) { dev2Calls++ }, nil)

	if err := client.DeleteDeviceSubscriptions(context.Background(), "dev1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client.Notify(&NotificationEnvelope{
		Notifications: []ResourceNotification{
			{DeviceID: "dev1", Path: "/1/0/1", Payload: "MQ=="},
			{DeviceID: "dev2", Path: "/1/0/1", Payload: "MQ=="},
		},
	})

	if dev1Calls != 0 {
		t.Errorf("dev1 callback invoked %d times, want 0", dev1Calls)
	}
	if dev2Calls != 1 {
		t.Errorf("dev2 callback invoked %d times, want 1", dev2Calls)
	}
}

func TestClient_DeleteSubscriptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path != "/v2/subscriptions" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v2/subscriptions")
		}
	}))
	defer server.Close()

	client, _ := NewClient("key", WithBaseURL(server.URL))
	var calls int
	client.AddResourceSubscription(context.Background(), "dev1", "/1/0/1", func(NotificationEvent) { calls++ }, nil)

	if err := client.DeleteSubscriptions(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client.Notify(&NotificationEnvelope{
		Notifications: []ResourceNotification{{DeviceID: "dev1", Path: "/1/0/1", Payload: "MQ=="}},
	})
	if calls != 0 {
		t.Errorf("callback invoked %d times after delete-all, want 0", calls)
	}
}

func TestClient_Presubscriptions(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/subscriptions" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/v2/subscriptions")
			}
			json.NewEncoder(w).Encode([]Presubscription{
				{DeviceID: "node-*", ResourcePaths: []string{"/3303/0/5700"}},
			})
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		presubs, err := client.ListPresubscriptions(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(presubs) != 1 || presubs[0].DeviceID != "node-*" {
			t.Errorf("presubs = %+v", presubs)
		}
	})

	t.Run("update", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("method = %q, want PUT", r.Method)
			}
			body, _ := io.ReadAll(r.Body)
			var presubs []Presubscription
			if err := json.Unmarshal(body, &presubs); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if len(presubs) != 1 || presubs[0].DeviceType != "thermostat" {
				t.Errorf("presubs = %+v", presubs)
			}
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		err := client.UpdatePresubscriptions(context.Background(), []Presubscription{
			{DeviceType: "thermostat", ResourcePaths: []string{"/3303/0/5700"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("delete sends empty rule set", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if string(body) != "[]" {
				t.Errorf("body = %q, want %q", body, "[]")
			}
		}))
		defer server.Close()

		client, _ := NewClient("key", WithBaseURL(server.URL))
		if err := client.DeletePresubscriptions(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
