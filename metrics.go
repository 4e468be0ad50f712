package devicecloud

import (
	"context"
	"iter"
	"net/url"
	"strconv"
	"time"
)

// Metric is one account-level usage sample.
type Metric struct {
	ID                   string    `json:"id,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	Transactions         int64     `json:"transactions,omitempty"`
	SuccessfulAPICalls   int64     `json:"successful_api_calls,omitempty"`
	FailedAPICalls       int64     `json:"failed_api_calls,omitempty"`
	SuccessfulHandshakes int64     `json:"successful_handshakes,omitempty"`
	PendingBootstraps    int64     `json:"pending_bootstraps,omitempty"`
	SuccessfulBootstraps int64     `json:"successful_bootstraps,omitempty"`
	FailedBootstraps     int64     `json:"failed_bootstraps,omitempty"`
	Registrations        int64     `json:"registrations,omitempty"`
	UpdatedRegistrations int64     `json:"updated_registrations,omitempty"`
	ExpiredRegistrations int64     `json:"expired_registrations,omitempty"`
	DeletedRegistrations int64     `json:"deleted_registrations,omitempty"`
}

// MetricList is one page of metric samples.
type MetricList = Page[Metric]

// MetricsOptions selects the window and resolution of metric samples.
// Either Period or the Start/End pair must be provided.
type MetricsOptions struct {
	// Include is a comma-separated list of metric fields to return.
	Include string
	// Start and End bound the sample window.
	Start time.Time
	End   time.Time
	// Period is a relative window like "30d" or "48h", exclusive with
	// Start/End.
	Period string
	// Interval is the sample resolution like "1d" or "15m".
	Interval string
	// Limit and After paginate the samples.
	Limit int
	After string
}

// query renders the options as a URL query string.
func (o *MetricsOptions) query() string {
	if o == nil {
		return ""
	}
	q := url.Values{}
	if o.Include != "" {
		q.Set("include", o.Include)
	}
	if !o.Start.IsZero() {
		q.Set("start", o.Start.UTC().Format("2006-01-02"))
	}
	if !o.End.IsZero() {
		q.Set("end", o.End.UTC().Format("2006-01-02"))
	}
	if o.Period != "" {
		q.Set("period", o.Period)
	}
	if o.Interval != "" {
		q.Set("interval", o.Interval)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.After != "" {
		q.Set("after", o.After)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListMetrics returns one page of account metric samples.
func (c *Client) ListMetrics(ctx context.Context, opts *MetricsOptions) (*MetricList, error) {
	data, err := c.get(ctx, "/v3/metrics"+opts.query())
	if err != nil {
		return nil, err
	}

	return unmarshalResponse[MetricList](data, "metric list")
}

// Metrics returns an iterator over metric samples with automatic pagination.
func (c *Client) Metrics(ctx context.Context, opts *MetricsOptions) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		reqOpts := MetricsOptions{}
		if opts != nil {
			reqOpts = *opts
		}

		for {
			select {
			case <-ctx.Done():
				yield(Metric{}, ctx.Err())
				return
			default:
			}

			page, err := c.ListMetrics(ctx, &reqOpts)
			if err != nil {
				yield(Metric{}, err)
				return
			}

			for _, m := range page.Data {
				if !yield(m, nil) {
					return
				}
			}

			if !page.HasMore || len(page.Data) == 0 {
				return
			}
			reqOpts.After = page.Data[len(page.Data)-1].ID
		}
	}
}
