package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/kjstillabower/company-portal/internal/circuitbreaker"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct
// ErrorCategory for metrics labeling, through UpstreamError and %w wrapping.
func TestCategorizeError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{Offset: 3}
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryTimeout},
		{"wrapped timeout", &UpstreamError{Upstream: "weather", Err: fmt.Errorf("request timeout: %w", context.DeadlineExceeded)}, ErrorCategoryTimeout},
		{"missing key", &UpstreamError{Upstream: "weather", Err: ErrMissingAPIKey}, ErrorCategoryMissingAPIKey},
		{"rate limited", &UpstreamError{Upstream: "weather", StatusCode: 429, Err: ErrRateLimited}, ErrorCategoryRateLimited},
		{"4xx", &UpstreamError{Upstream: "catalog", StatusCode: 404}, ErrorCategoryUpstream4xx},
		{"5xx", &UpstreamError{Upstream: "catalog", StatusCode: 503}, ErrorCategoryUpstream5xx},
		{"exhausted retries", fmt.Errorf("exhausted 3 attempts: %w", &UpstreamError{Upstream: "weather", StatusCode: 500}), ErrorCategoryUpstream5xx},
		{"parse", &UpstreamError{Upstream: "catalog", StatusCode: 200, Err: fmt.Errorf("parse response: %w", syntaxErr)}, ErrorCategoryParsing},
		{"network", &UpstreamError{Upstream: "catalog", Err: opErr}, ErrorCategoryNetwork},
		{"circuit open", &UpstreamError{Upstream: "catalog", Err: circuitbreaker.ErrOpen}, ErrorCategoryCircuitOpen},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpstreamError_Message(t *testing.T) {
	tests := []struct {
		err  *UpstreamError
		want string
	}{
		{&UpstreamError{Upstream: "catalog", StatusCode: 502}, "catalog upstream: HTTP 502"},
		{&UpstreamError{Upstream: "weather", Err: ErrMissingAPIKey}, "weather upstream: API key not configured"},
		{&UpstreamError{Upstream: "weather", StatusCode: 429, Err: ErrRateLimited}, "weather upstream: HTTP 429: rate limited"},
		{&UpstreamError{Upstream: "catalog"}, "catalog upstream: failure"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
		if !errors.Is(tt.err, ErrUpstream) {
			t.Errorf("errors.Is(%v, ErrUpstream) = false", tt.err)
		}
	}
}
