package devicecloud

import (
	"context"
	"iter"
	"time"
)

// DeviceCloudClient defines the interface for device cloud API operations.
// Client implements this interface, enabling mocking for tests.
type DeviceCloudClient interface {
	// ============================================================================
	// Device Directory Operations
	// ============================================================================

	ListDevices(ctx context.Context, opts *ListOptions) (*DeviceList, error)
	ListAllDevices(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
	AddDevice(ctx context.Context, device *DeviceCreate) (*Device, error)
	UpdateDevice(ctx context.Context, deviceID string, update *DeviceUpdate) (*Device, error)
	DeleteDevice(ctx context.Context, deviceID string) error
	Devices(ctx context.Context, opts *ListOptions) iter.Seq2[Device, error]

	// ============================================================================
	// Device Query Operations
	// ============================================================================

	ListQueries(ctx context.Context, opts *ListOptions) (*QueryList, error)
	GetQuery(ctx context.Context, queryID string) (*Query, error)
	AddQuery(ctx context.Context, query *QueryCreate) (*Query, error)
	UpdateQuery(ctx context.Context, queryID string, update *QueryUpdate) (*Query, error)
	DeleteQuery(ctx context.Context, queryID string) error
	Queries(ctx context.Context, opts *ListOptions) iter.Seq2[Query, error]

	// ============================================================================
	// Connected Device / Resource Operations
	// ============================================================================

	ListConnectedDevices(ctx context.Context) ([]ConnectedDevice, error)
	ListResources(ctx context.Context, deviceID string) ([]Resource, error)
	GetResourceValue(ctx context.Context, deviceID, path string, opts *ResourceValueOptions) (*ResourceValue, error)
	SetResourceValue(ctx context.Context, deviceID, path, value string, opts *ResourceValueOptions) (*ResourceValue, error)
	ExecuteResource(ctx context.Context, deviceID, path, functionName string, opts *ResourceValueOptions) (*ResourceValue, error)
	DeleteResource(ctx context.Context, deviceID, path string, opts *ResourceValueOptions) (*ResourceValue, error)
	GetResourceValuesBatch(ctx context.Context, reads []ResourceAddress, opts *ResourceValueOptions, cfg *BatchConfig) []BatchResult

	// ============================================================================
	// Subscription Operations
	// ============================================================================

	AddResourceSubscription(ctx context.Context, deviceID, path string, onNotification NotificationFunc, opts *ResourceValueOptions) (*ResourceValue, error)
	GetResourceSubscription(ctx context.Context, deviceID, path string) (bool, error)
	DeleteResourceSubscription(ctx context.Context, deviceID, path string) error
	DeleteDeviceSubscriptions(ctx context.Context, deviceID string) error
	DeleteSubscriptions(ctx context.Context) error
	ListPresubscriptions(ctx context.Context) ([]Presubscription, error)
	UpdatePresubscriptions(ctx context.Context, presubscriptions []Presubscription) error
	DeletePresubscriptions(ctx context.Context) error

	// ============================================================================
	// Webhook Operations
	// ============================================================================

	GetWebhook(ctx context.Context) (*Webhook, error)
	UpdateWebhook(ctx context.Context, url string, headers map[string]string) error
	DeleteWebhook(ctx context.Context) error

	// ============================================================================
	// Notification Channel Operations
	// ============================================================================

	Notify(envelope *NotificationEnvelope)
	StartNotifications(ctx context.Context, opts *NotificationOptions) error
	StopNotifications(ctx context.Context) error
	SetHandleNotifications(handle bool)
	HandlesNotifications() bool
	OnNotification(fn NotificationFunc)
	OnRegistration(fn DeviceEventFunc)
	OnReregistration(fn DeviceEventFunc)
	OnDeregistration(fn DeviceEventFunc)
	OnExpired(fn DeviceEventFunc)

	// ============================================================================
	// Metrics Operations
	// ============================================================================

	ListMetrics(ctx context.Context, opts *MetricsOptions) (*MetricList, error)
	Metrics(ctx context.Context, opts *MetricsOptions) iter.Seq2[Metric, error]

	// ============================================================================
	// Rate Limiting
	// ============================================================================

	RateLimitInfo() *RateLimitInfo
	RateLimitResetTime() time.Time
	RemainingRequests() int
	ShouldThrottle(threshold int) bool
	WaitForRateLimit(ctx context.Context) error
	WaitForRateLimitErr(ctx context.Context, err error) error
}

// Compile-time check that Client implements DeviceCloudClient.
var _ DeviceCloudClient = (*Client)(nil)
