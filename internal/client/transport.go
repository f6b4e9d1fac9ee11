package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kjstillabower/company-portal/internal/observability"
)

// maxBodyBytes bounds how much of an upstream response is decoded.
const maxBodyBytes = 4 << 20

// getJSON performs a GET against rawURL and decodes a 2xx JSON body into out.
// Every failure is returned as *UpstreamError labelled with upstream.
func getJSON(ctx context.Context, hc *http.Client, upstream, rawURL string, out interface{}) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		return &UpstreamError{Upstream: upstream, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := hc.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(upstream, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return &UpstreamError{Upstream: upstream, Err: fmt.Errorf("request timeout: %w", err)}
		}
		return &UpstreamError{Upstream: upstream, Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(upstream, status).Inc()
	observability.UpstreamDuration.WithLabelValues(upstream, status).Observe(time.Since(start).Seconds())

	if err := statusError(upstream, resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return &UpstreamError{Upstream: upstream, StatusCode: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
	}
	return nil
}

func statusError(upstream string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	if code == http.StatusTooManyRequests {
		return &UpstreamError{Upstream: upstream, StatusCode: code, Err: ErrRateLimited}
	}
	return &UpstreamError{Upstream: upstream, StatusCode: code}
}
