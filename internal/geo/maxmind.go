package geo

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"

	"github.com/kjstillabower/company-portal/internal/models"
)

// MaxMindLocator looks addresses up in a local GeoLite2/GeoIP2 City database.
type MaxMindLocator struct {
	db *geoip2.Reader
}

// OpenMaxMind opens the .mmdb file at path. Close it on shutdown.
func OpenMaxMind(path string) (*MaxMindLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geolocation database %s: %w", path, err)
	}
	return &MaxMindLocator{db: db}, nil
}

func (l *MaxMindLocator) Locate(ip netip.Addr) (models.Coordinates, error) {
	rec, err := l.db.City(net.IP(ip.AsSlice()))
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geolocation lookup %s: %w", ip, err)
	}
	// The database returns a zero record for addresses it does not know.
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 && rec.Location.AccuracyRadius == 0 {
		return models.Coordinates{}, fmt.Errorf("%w: %s not in database", ErrUnavailable, ip)
	}
	return models.Coordinates{
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}, nil
}

// Close releases the memory-mapped database.
func (l *MaxMindLocator) Close() error {
	return l.db.Close()
}
