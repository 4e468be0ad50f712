package devicecloud

import (
	"context"
	"sync"
)

// ResourceAddress identifies one resource on one device.
type ResourceAddress struct {
	DeviceID string // Target device ID
	Path     string // Resource path, e.g. "/3200/0/5500"
}

// BatchResult contains the result of one resource read in a batch.
type BatchResult struct {
	ResourceAddress               // The resource that was read
	Value           *ResourceValue // The value, nil on failure
	Error           error          // Error if the read failed, nil on success
}

// BatchConfig configures batch execution behavior.
type BatchConfig struct {
	// MaxConcurrent is the maximum number of concurrent API calls.
	// Defaults to 10 if not specified.
	MaxConcurrent int

	// StopOnError determines whether to stop issuing remaining reads
	// when an error occurs. Default is false (continue processing all).
	StopOnError bool
}

// DefaultBatchConfig returns sensible defaults for batch operations.
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		MaxConcurrent: 10,
		StopOnError:   false,
	}
}

// GetResourceValuesBatch reads multiple device resources concurrently.
// It uses a worker pool to limit concurrent API calls. Each read follows the
// deferred-response rules of GetResourceValue, so with notification handling
// active a batch waits for the matching async responses; results complete in
// arrival order, not issue order.
//
// Example:
//
//	reads := []devicecloud.ResourceAddress{
//	    {DeviceID: "device1", Path: "/3200/0/5500"},
//	    {DeviceID: "device2", Path: "/3303/0/5700"},
//	}
//	results := client.GetResourceValuesBatch(ctx, reads, nil, nil)
//	for _, r := range results {
//	    if r.Error != nil {
//	        log.Printf("%s %s failed: %v", r.DeviceID, r.Path, r.Error)
//	    }
//	}
func (c *Client) GetResourceValuesBatch(ctx context.Context, reads []ResourceAddress, opts *ResourceValueOptions, cfg *BatchConfig) []BatchResult {
	if len(reads) == 0 {
		return nil
	}

	if cfg == nil {
		cfg = DefaultBatchConfig()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}

	results := make([]BatchResult, len(reads))
	var mu sync.Mutex
	var stopped bool

	// Worker pool using semaphore pattern
	sem := make(chan struct{}, cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i, addr := range reads {
		// Check if we should stop
		mu.Lock()
		if stopped {
			mu.Unlock()
			results[i] = BatchResult{ResourceAddress: addr, Error: context.Canceled}
			continue
		}
		mu.Unlock()

		// Check context
		select {
		case <-ctx.Done():
			results[i] = BatchResult{ResourceAddress: addr, Error: ctx.Err()}
			continue
		default:
		}

		wg.Add(1)
		go func(idx int, addr ResourceAddress) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = BatchResult{ResourceAddress: addr, Error: ctx.Err()}
				return
			}

			// Check if stopped
			mu.Lock()
			if stopped {
				mu.Unlock()
				results[idx] = BatchResult{ResourceAddress: addr, Error: context.Canceled}
				return
			}
			mu.Unlock()

			value, err := c.GetResourceValue(ctx, addr.DeviceID, addr.Path, opts)
			results[idx] = BatchResult{ResourceAddress: addr, Value: value, Error: err}

			// Handle stop on error
			if err != nil && cfg.StopOnError {
				mu.Lock()
				stopped = true
				mu.Unlock()
			}
		}(i, addr)
	}

	wg.Wait()
	return results
}
