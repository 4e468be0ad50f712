package devicecloud

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Query is a saved device directory filter.
type Query struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Filter    string     `json:"query"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// QueryCreate is the request body for saving a device query.
type QueryCreate struct {
	Name   string `json:"name"`
	Filter string `json:"query"`
}

// QueryUpdate is the request body for updating a saved query. Zero-valued
// fields are omitted and left unchanged.
type QueryUpdate struct {
	Name   string `json:"name,omitempty"`
	Filter string `json:"query,omitempty"`
}

// QueryList is one page of saved query results.
type QueryList = Page[Query]

// BuildFilter serializes a field-value map into the filter string format
// saved queries use: URL-encoded key=value pairs joined by "&", in sorted
// key order for determinism.
//
//	filter := devicecloud.BuildFilter(map[string]string{
//	    "state":         "registered",
//	    "endpoint_type": "thermostat",
//	})
func BuildFilter(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(fields[k]))
	}
	return strings.Join(pairs, "&")
}

// ListQueries returns one page of saved device queries. Use Queries to walk
// all pages.
func (c *Client) ListQueries(ctx context.Context, opts *ListOptions) (*QueryList, error) {
	data, err := c.get(ctx, "/v3/device-queries"+opts.query())
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[QueryList](data, "query list")
}

// GetQuery returns a single saved query.
func (c *Client) GetQuery(ctx context.Context, queryID string) (*Query, error) {
	if queryID == "" {
		return nil, ErrEmptyQueryID
	}

	data, err := c.get(ctx, "/v3/device-queries/"+queryID)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[Query](data, "query")
}

// AddQuery saves a device query and returns the created record.
func (c *Client) AddQuery(ctx context.Context, query *QueryCreate) (*Query, error) {
	if query == nil || query.Name == "" {
		return nil, ErrEmptyQueryName
	}
	if query.Filter == "" {
		return nil, ErrEmptyQueryFilter
	}

	data, err := c.post(ctx, "/v3/device-queries", query)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[Query](data, "created query")
}

// UpdateQuery updates a saved query and returns the updated record.
func (c *Client) UpdateQuery(ctx context.Context, queryID string, update *QueryUpdate) (*Query, error) {
	if queryID == "" {
		return nil, ErrEmptyQueryID
	}

	data, err := c.put(ctx, "/v3/device-queries/"+queryID, update)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[Query](data, "updated query")
}

// DeleteQuery removes a saved query.
func (c *Client) DeleteQuery(ctx context.Context, queryID string) error {
	if queryID == "" {
		return ErrEmptyQueryID
	}

	_, err := c.delete(ctx, "/v3/device-queries/"+queryID)
	return err
}
