// Package geo derives a coarse geo tuple from a request IP.
//
// This package is intentionally built on the standard library plus a
// small static lookup table for common codes, rather than a full MaxMind
// database — see DESIGN.md for the justification.
package geo

import (
	"context"
	"net"

	"github.com/linkforty/linkforty/internal/domain"
)

// Lookup resolves an IP address to a Geo tuple. Implementations may call
// out to an external geo-IP service; the default Static implementation
// never fails and never blocks.
type Lookup interface {
	Lookup(ctx context.Context, ip string) domain.Geo
}

// countryNames is the fallback lookup table of common country codes to
// names. Unknown codes fall back to the code itself.
var countryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"DE": "Germany",
	"FR": "France",
	"CA": "Canada",
	"AU": "Australia",
	"JP": "Japan",
	"CN": "China",
	"IN": "India",
	"BR": "Brazil",
	"MX": "Mexico",
	"ES": "Spain",
	"IT": "Italy",
	"NL": "Netherlands",
	"SE": "Sweden",
	"KR": "South Korea",
	"RU": "Russia",
	"ZA": "South Africa",
	"SG": "Singapore",
	"NZ": "New Zealand",
}

// CountryName returns the known name for a country code, or the code
// itself when unknown.
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// wellKnownRanges is a tiny static table of well-known public IP prefixes,
// enough to make local testing and demos produce a plausible geo tuple
// without a paid geo-IP feed. Real deployments are expected to replace
// Static with an adapter over whatever feed they license; the Lookup
// interface is the seam.
var wellKnownRanges = []struct {
	prefix string
	geo    domain.Geo
}{
	{"8.8.", domain.Geo{CountryCode: "US", Region: "CA", City: "Mountain View", Latitude: 37.4056, Longitude: -122.0775, Timezone: "America/Los_Angeles"}},
	{"1.1.1.", domain.Geo{CountryCode: "AU", Region: "NSW", City: "Sydney", Latitude: -33.8688, Longitude: 151.2093, Timezone: "Australia/Sydney"}},
	{"203.0.113.", domain.Geo{CountryCode: "US", Region: "NY", City: "New York", Latitude: 40.7128, Longitude: -74.0060, Timezone: "America/New_York"}},
	{"198.51.100.", domain.Geo{CountryCode: "US", Region: "CA", City: "Los Angeles", Latitude: 34.0522, Longitude: -118.2437, Timezone: "America/Los_Angeles"}},
}

// Static is a Lookup that resolves private/loopback ranges and a handful of
// well-known public ranges to fixed tuples, and everything else to an
// empty (unknown) Geo — a stand-in for whatever upstream geo-IP feed a
// deployment wires in later. It never errors: geolocation must never block
// or fail the click-recording pipeline.
//
// wellKnownRanges only covers a handful of literal demo/test addresses;
// real client IPs outside this table resolve to an empty Geo, so
// country-targeted links will not match real-world traffic until Static
// is replaced with a real geo-IP adapter (see DESIGN.md).
type Static struct{}

// NewStatic returns the default, dependency-free Lookup implementation.
func NewStatic() Static { return Static{} }

func (Static) Lookup(_ context.Context, ip string) domain.Geo {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return domain.Geo{}
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return domain.Geo{
			CountryCode: "US",
			CountryName: CountryName("US"),
			Region:      "internal",
			City:        "internal",
			Timezone:    "UTC",
		}
	}

	for _, r := range wellKnownRanges {
		if len(ip) >= len(r.prefix) && ip[:len(r.prefix)] == r.prefix {
			g := r.geo
			g.CountryName = CountryName(g.CountryCode)
			return g
		}
	}

	return domain.Geo{}
}
