// Package geo resolves client network addresses to coarse locations
// using an offline MaxMind City database. Resolution never fails the
// caller: any problem yields the unknown sentinel, because pairing must
// proceed without location data.
package geo

import (
	"net"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang"

	"pairsona/internal/obs"
	"pairsona/pkg/types"
)

// cityReader is the slice of geoip2.Reader the resolver consumes.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Resolver wraps the geolocation database with a lookup cache. The
// reader is loaded once at process start and is safe for concurrent
// reads; a nil reader means resolution is disabled.
type Resolver struct {
	reader cityReader
	closer func() error
	cache  *lru.Cache[string, locationNames]
}

// New opens the database at path. An empty path returns a disabled
// resolver. An unreadable database also returns a usable (disabled)
// resolver along with the open error, so callers can log and continue.
func New(path string, cacheSize int) (*Resolver, error) {
	cache, err := lru.New[string, locationNames](cacheSize)
	if err != nil {
		return nil, err
	}

	r := &Resolver{cache: cache}
	if path == "" {
		return r, nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return r, err
	}
	r.reader = reader
	r.closer = reader.Close
	return r, nil
}

// newWithReader is the test seam.
func newWithReader(reader cityReader, cacheSize int) *Resolver {
	cache, _ := lru.New[string, locationNames](cacheSize)
	return &Resolver{reader: reader, cache: cache}
}

// Resolve maps an address (host or host:port) to a coarse location,
// localized per the langs preference order (see PreferredLanguages).
// Malformed, private and loopback addresses, database misses and lookup
// errors all return the unknown sentinel. The cache holds the raw names
// per address, so repeat lookups localize without touching the reader.
func (r *Resolver) Resolve(addr string, langs []string) types.LocationRecord {
	if len(langs) == 0 {
		langs = []string{"en"}
	}

	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}

	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		obs.LookupUnknownTotal.Inc()
		return types.UnknownLocation()
	}

	if cached, ok := r.cache.Get(ip.String()); ok {
		return cached.localize(langs)
	}

	if r.reader == nil {
		obs.LookupUnknownTotal.Inc()
		return types.UnknownLocation()
	}

	city, err := r.reader.City(ip)
	if err != nil || city == nil {
		obs.LookupUnknownTotal.Inc()
		return types.UnknownLocation()
	}

	names := namesFromCity(city)
	if names.empty() {
		obs.LookupUnknownTotal.Inc()
		return types.UnknownLocation()
	}

	r.cache.Add(ip.String(), names)
	return names.localize(langs)
}

// locationNames is the language-independent slice of a database row.
type locationNames struct {
	country     map[string]string
	countryCode string
	region      map[string]string
	city        map[string]string
	latitude    float64
	longitude   float64
}

func namesFromCity(city *geoip2.City) locationNames {
	n := locationNames{
		country:     city.Country.Names,
		countryCode: city.Country.IsoCode,
		city:        city.City.Names,
		latitude:    city.Location.Latitude,
		longitude:   city.Location.Longitude,
	}
	// The database may carry several subdivisions; the first is the
	// broadest one.
	if len(city.Subdivisions) > 0 {
		n.region = city.Subdivisions[0].Names
	}
	return n
}

func (n locationNames) empty() bool {
	return len(n.country) == 0 && n.countryCode == "" && len(n.city) == 0 &&
		len(n.region) == 0 && n.latitude == 0 && n.longitude == 0
}

func (n locationNames) localize(langs []string) types.LocationRecord {
	return types.LocationRecord{
		Country:     preferredName(langs, n.country),
		CountryCode: n.countryCode,
		Region:      preferredName(langs, n.region),
		City:        preferredName(langs, n.city),
		Latitude:    n.latitude,
		Longitude:   n.longitude,
	}
}

func (r *Resolver) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}
