package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstream matches every *UpstreamError via errors.Is.
	ErrUpstream = errors.New("upstream failure")

	ErrMissingAPIKey = errors.New("API key not configured")
	ErrRateLimited   = errors.New("rate limited")
)

// UpstreamError reports a failed call to an external API. StatusCode is zero
// when no HTTP response was received.
type UpstreamError struct {
	Upstream   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s upstream: HTTP %d: %v", e.Upstream, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s upstream: HTTP %d", e.Upstream, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s upstream: %v", e.Upstream, e.Err)
	default:
		return e.Upstream + " upstream: failure"
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
