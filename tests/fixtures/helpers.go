package fixtures

import (
	"testing"
	"time"

	"pairsona/pkg/types"
)

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// Location builds a record with coordinates for policy tests.
func Location(countryCode string, lat, lon float64) types.LocationRecord {
	return types.LocationRecord{
		CountryCode: countryCode,
		Country:     countryCode,
		Latitude:    lat,
		Longitude:   lon,
	}
}

// TextFrame wraps a string payload.
func TextFrame(payload string) types.Frame {
	return types.Frame{Kind: types.FrameText, Data: []byte(payload)}
}
