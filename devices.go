package devicecloud

import (
	"context"
	"time"
)

// Device is one record in the device directory. The directory tracks every
// device the account knows about, whether or not it is currently connected;
// see ListConnectedDevices for connectivity.
type Device struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	State            string            `json:"state,omitempty"` // unenrolled, bootstrapped, registered, deregistered
	DeviceClass      string            `json:"device_class,omitempty"`
	EndpointName     string            `json:"endpoint_name,omitempty"`
	EndpointType     string            `json:"endpoint_type,omitempty"`
	ExecutionMode    int               `json:"device_execution_mode,omitempty"`
	Mechanism        string            `json:"mechanism,omitempty"`
	SerialNumber     string            `json:"serial_number,omitempty"`
	VendorID         string            `json:"vendor_id,omitempty"`
	AccountID        string            `json:"account_id,omitempty"`
	AutoUpdate       bool              `json:"auto_update,omitempty"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
	BootstrappedAt   *time.Time        `json:"bootstrapped_timestamp,omitempty"`
	CreatedAt        *time.Time        `json:"created_at,omitempty"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}

// DeviceCreate is the request body for adding a device to the directory.
type DeviceCreate struct {
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	DeviceClass      string            `json:"device_class,omitempty"`
	EndpointName     string            `json:"endpoint_name,omitempty"`
	EndpointType     string            `json:"endpoint_type,omitempty"`
	Mechanism        string            `json:"mechanism,omitempty"`
	SerialNumber     string            `json:"serial_number,omitempty"`
	VendorID         string            `json:"vendor_id,omitempty"`
	AutoUpdate       bool              `json:"auto_update,omitempty"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
}

// DeviceUpdate is the request body for updating a device. Zero-valued
// fields are omitted and left unchanged.
type DeviceUpdate struct {
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	EndpointType     string            `json:"endpoint_type,omitempty"`
	AutoUpdate       bool              `json:"auto_update,omitempty"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
}

// DeviceList is one page of device directory results.
type DeviceList = Page[Device]

// ListDevices returns one page of the device directory. Use opts for
// filtering and cursor pagination, or Devices / ListAllDevices to walk all
// pages.
func (c *Client) ListDevices(ctx context.Context, opts *ListOptions) (*DeviceList, error) {
	data, err := c.get(ctx, "/v3/devices"+opts.query())
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[DeviceList](data, "device list")
}

// ListAllDevices returns every device in the directory, fetching all pages.
func (c *Client) ListAllDevices(ctx context.Context) ([]Device, error) {
	return collectAll(c.Devices(ctx, nil))
}

// GetDevice returns a single device from the directory.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	data, err := c.get(ctx, "/v3/devices/"+deviceID)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[Device](data, "device")
}

// AddDevice adds a device to the directory and returns the created record.
func (c *Client) AddDevice(ctx context.Context, device *DeviceCreate) (*Device, error) {
	data, err := c.post(ctx, "/v3/devices", device)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[Device](data, "created device")
}

// UpdateDevice updates a directory record and returns the updated device.
func (c *Client) UpdateDevice(ctx context.Context, deviceID string, update *DeviceUpdate) (*Device, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	data, err := c.put(ctx, "/v3/devices/"+deviceID, update)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[Device](data, "updated device")
}

// DeleteDevice removes a device from the directory.
func (c *Client) DeleteDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return ErrEmptyDeviceID
	}

	_, err := c.delete(ctx, "/v3/devices/"+deviceID)
	return err
}
