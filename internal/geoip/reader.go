package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/woozymasta/gamestat/internal/models"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Country resolves the country of an IP address. Invalid addresses, lookup
// failures and codes unknown to the country table all yield models.Unspecified.
// A nil Provider is valid and resolves nothing.
func (p *Provider) Country(ipStr string) models.Country {
	if p == nil || p.db == nil {
		return models.Unspecified
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return models.Unspecified
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return models.Unspecified
	}

	return models.DecodeCountry(record.Country.IsoCode)
}
