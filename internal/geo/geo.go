// Package geo resolves a caller's IP address to approximate coordinates.
package geo

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/observability"
)

// ErrUnavailable is returned when an address cannot be mapped to coordinates:
// private or reserved ranges, unparsable input, or a database miss.
var ErrUnavailable = errors.New("location unavailable")

// Locator maps a public IP address to coordinates.
type Locator interface {
	Locate(ip netip.Addr) (models.Coordinates, error)
}

// ClientIP returns the caller address: the first X-Forwarded-For entry when
// present, otherwise the host part of remoteAddr.
func ClientIP(header http.Header, remoteAddr string) (netip.Addr, error) {
	if fwd := header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return parseAddr(first)
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return parseAddr(host)
}

func parseAddr(s string) (netip.Addr, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: parse client address %q", ErrUnavailable, s)
	}
	return addr.Unmap().WithZone(""), nil
}

// Resolve determines the caller's coordinates. Non-routable addresses fail with
// ErrUnavailable without consulting loc.
func Resolve(loc Locator, header http.Header, remoteAddr string) (models.Coordinates, error) {
	addr, err := ClientIP(header, remoteAddr)
	if err != nil {
		observability.GeoLookupsTotal.WithLabelValues("invalid").Inc()
		return models.Coordinates{}, err
	}
	if !IsPublic(addr) {
		observability.GeoLookupsTotal.WithLabelValues("private").Inc()
		return models.Coordinates{}, fmt.Errorf("%w: %s is not publicly routable", ErrUnavailable, addr)
	}
	coords, err := loc.Locate(addr)
	if err != nil {
		observability.GeoLookupsTotal.WithLabelValues("miss").Inc()
		if errors.Is(err, ErrUnavailable) {
			return models.Coordinates{}, err
		}
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	observability.GeoLookupsTotal.WithLabelValues("resolved").Inc()
	return coords, nil
}

// IsPublic reports whether addr could appear in a geolocation database.
func IsPublic(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsInterfaceLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified() &&
		!cgnat.Contains(addr)
}

// cgnat is the shared address space used by carrier-grade NAT (RFC 6598).
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// NopLocator never resolves. Used when no database is configured.
type NopLocator struct{}

func (NopLocator) Locate(netip.Addr) (models.Coordinates, error) {
	return models.Coordinates{}, fmt.Errorf("%w: no geolocation database loaded", ErrUnavailable)
}
