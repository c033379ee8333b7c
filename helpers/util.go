package helpers

import (
	"math/rand/v2"
	"net/url"
	"strings"
	"time"
)

// ResolveURL makes href absolute against base. Unparseable input is
// returned as-is.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// RandomInt returns a uniform integer in [min, max]. A nil rnd uses the
// global source.
func RandomInt(rnd *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	if rnd == nil {
		return min + rand.IntN(max-min+1)
	}
	return min + rnd.IntN(max-min+1)
}

// RandomDuration returns a uniform duration in [min, max]. A nil rnd uses
// the global source.
func RandomDuration(rnd *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	if rnd == nil {
		return min + time.Duration(rand.Int64N(int64(max-min)+1))
	}
	return min + time.Duration(rnd.Int64N(int64(max-min)+1))
}
