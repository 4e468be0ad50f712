package devicecloud

import (
	"context"
	"iter"
	"net/url"
	"sort"
	"strconv"
)

// Page is one page of cursor-paginated list results.
type Page[T any] struct {
	Data       []T    `json:"data"`
	Limit      int    `json:"limit,omitempty"`
	After      string `json:"after,omitempty"`
	Order      string `json:"order,omitempty"`
	HasMore    bool   `json:"has_more"`
	TotalCount int    `json:"total_count,omitempty"`
}

// ListOptions controls cursor pagination and filtering of list endpoints.
type ListOptions struct {
	// Limit is the maximum number of results per page (2-1000).
	Limit int
	// After is the cursor: the ID of the last entry of the previous page.
	After string
	// Order sorts results by creation time, "ASC" (default) or "DESC".
	Order string
	// Include requests extra response fields, e.g. "total_count".
	Include string
	// Filter restricts results by field value, e.g. {"state": "registered"}.
	Filter map[string]string
}

// query renders the options as a URL query string.
func (o *ListOptions) query() string {
	if o == nil {
		return ""
	}
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.After != "" {
		q.Set("after", o.After)
	}
	if o.Order != "" {
		q.Set("order", o.Order)
	}
	if o.Include != "" {
		q.Set("include", o.Include)
	}
	if len(o.Filter) > 0 {
		keys := make([]string, 0, len(o.Filter))
		for k := range o.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			q.Set(k, o.Filter[k])
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// paginate returns an iterator that walks a cursor-paginated endpoint,
// fetching additional pages as needed. cursor extracts the after-cursor from
// the last item of a page.
func paginate[T any](ctx context.Context, opts *ListOptions, fetch func(context.Context, *ListOptions) (*Page[T], error), cursor func(T) string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		reqOpts := ListOptions{}
		if opts != nil {
			reqOpts = *opts
		}

		for {
			select {
			case <-ctx.Done():
				yield(zero, ctx.Err())
				return
			default:
			}

			page, err := fetch(ctx, &reqOpts)
			if err != nil {
				yield(zero, err)
				return
			}

			for _, item := range page.Data {
				if !yield(item, nil) {
					return // caller stopped iteration
				}
			}

			if !page.HasMore || len(page.Data) == 0 {
				return // no more pages
			}
			reqOpts.After = cursor(page.Data[len(page.Data)-1])
		}
	}
}

// collectAll drains an iterator into a slice, stopping at the first error.
func collectAll[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Devices returns an iterator over all devices with automatic pagination.
// Stops iteration early if an error occurs or the context is cancelled.
func (c *Client) Devices(ctx context.Context, opts *ListOptions) iter.Seq2[Device, error] {
	return paginate(ctx, opts, c.ListDevices, func(d Device) string { return d.ID })
}

// Queries returns an iterator over all device queries with automatic
// pagination.
func (c *Client) Queries(ctx context.Context, opts *ListOptions) iter.Seq2[Query, error] {
	return paginate(ctx, opts, c.ListQueries, func(q Query) string { return q.ID })
}
