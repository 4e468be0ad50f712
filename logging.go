package devicecloud

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// WithLogger configures a structured logger for the client.
// When set, the client will log API requests, responses, poll-loop failures
// and notification dispatch problems.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	client, _ := devicecloud.NewClient("api-key", devicecloud.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// LoggingTransport wraps an http.RoundTripper and logs requests/responses.
// Use it when the traffic of a custom HTTP client should be logged without
// configuring the client-level logger.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper with logging.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	if t.Logger != nil {
		t.Logger.LogAttrs(req.Context(), slog.LevelDebug, "api_request",
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()),
		)
	}

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start)

	if t.Logger != nil {
		if err != nil {
			t.Logger.LogAttrs(req.Context(), slog.LevelError, "api_error",
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.Duration("duration", duration),
				slog.String("error", err.Error()),
			)
		} else {
			level := slog.LevelDebug
			if resp.StatusCode >= 400 {
				level = slog.LevelWarn
			}
			if resp.StatusCode >= 500 {
				level = slog.LevelError
			}

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.Int("status", resp.StatusCode),
				slog.Duration("duration", duration),
			}

			if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
				attrs = append(attrs, slog.String("rate_limit_remaining", remaining))
			}

			t.Logger.LogAttrs(req.Context(), level, "api_response", attrs...)
		}
	}

	return resp, err
}

// logRequest logs an outgoing API request.
func (c *Client) logRequest(ctx context.Context, method, path string) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "api_request",
		slog.String("method", method),
		slog.String("path", path),
	)
}

// logResponse logs a completed API round trip.
func (c *Client) logResponse(ctx context.Context, method, path string, status int, duration time.Duration) {
	if c.logger == nil {
		return
	}
	level := slog.LevelDebug
	if status >= 400 {
		level = slog.LevelWarn
	}
	if status >= 500 {
		level = slog.LevelError
	}
	c.logger.LogAttrs(ctx, level, "api_response",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)
}

// logError logs a failed API round trip.
func (c *Client) logError(ctx context.Context, method, path string, duration time.Duration, err error) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelError, "api_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Duration("duration", duration),
		slog.String("error", err.Error()),
	)
}

// logDispatch logs a problem encountered while dispatching one envelope
// entry. Dispatch problems never abort the rest of the envelope, so they
// only surface here.
func (c *Client) logDispatch(msg string, err error, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	c.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// logPoll logs a poll-loop failure. Poll failures are reported via the
// notification options callback and the loop keeps running.
func (c *Client) logPoll(err error) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(context.Background(), slog.LevelWarn, "poll_failed",
		slog.String("error", err.Error()),
	)
}
